// ABOUTME: Notification types and the feed that synthesizes periodic updates
// ABOUTME: RandomFeed reproduces the 30%-per-poll "New Update" behaviour

package notifications

import (
	"context"
	"math/rand/v2"
	"time"
)

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeveritySuccess, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Notification is one in-app message.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
	Link      string    `json:"link,omitempty"`
}

// Draft is the caller-supplied part of a notification. The container assigns
// the id, timestamp, and unread flag.
type Draft struct {
	Title    string
	Message  string
	Severity Severity
	Link     string
}

// Feed yields new drafts on each poll.
type Feed interface {
	Poll(ctx context.Context) []Draft
}

// FeedFunc adapts a function to the Feed interface.
type FeedFunc func(ctx context.Context) []Draft

// Poll calls f.
func (f FeedFunc) Poll(ctx context.Context) []Draft {
	return f(ctx)
}

// DefaultChance is the probability that RandomFeed yields a draft per poll.
const DefaultChance = 0.3

// RandomFeed stands in for a server push channel.
type RandomFeed struct {
	Chance float64
	// Rand returns a float in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

// Poll returns one "New Update" draft with probability Chance.
func (f RandomFeed) Poll(ctx context.Context) []Draft {
	roll := f.Rand
	if roll == nil {
		roll = rand.Float64
	}
	chance := f.Chance
	if chance <= 0 {
		chance = DefaultChance
	}

	if roll() >= chance {
		return nil
	}

	severity := SeverityInfo
	if roll() < 0.5 {
		severity = SeveritySuccess
	}
	return []Draft{{
		Title:    "New Update",
		Message:  "You have a new activity to check",
		Severity: severity,
		Link:     "/dashboard",
	}}
}

// starterSet is seeded when a user authenticates. Offsets are relative to the
// seeding time.
func starterSet() []struct {
	draft Draft
	age   time.Duration
	read  bool
} {
	return []struct {
		draft Draft
		age   time.Duration
		read  bool
	}{
		{Draft{"Appointment Reminder", "Your consultation with Dr. Smith is tomorrow at 2 PM", SeverityInfo, "/appointments"}, time.Hour, false},
		{Draft{"New Article", "Check out our latest article on baby nutrition", SeveritySuccess, "/resources"}, 24 * time.Hour, false},
		{Draft{"Milestone Alert", "Time to track your baby's 6-month development milestones", SeverityWarning, "/dashboard"}, 48 * time.Hour, true},
	}
}
