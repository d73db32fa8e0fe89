// ABOUTME: Session domain types: user profile, preferences, persisted record, and state snapshot
// ABOUTME: Records live in the userData partition under the "session" key

package session

import (
	"errors"
	"time"
)

// DefaultTTL is how long a session stays valid after login or renewal.
const DefaultTTL = 24 * time.Hour

// recordKey is the userData key holding the persisted Record.
const recordKey = "session"

// Session errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSignup      = errors.New("please fill all fields with valid information")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrAccountExists      = errors.New("account already exists")
)

// MinPasswordLength is the shortest password accepted by login and signup.
const MinPasswordLength = 6

// Status is the container's authentication state.
type Status int

const (
	StatusLoading Status = iota
	StatusUnauthenticated
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Preferences holds user-tunable settings.
type Preferences struct {
	Theme        string `json:"theme,omitempty"`
	Language     string `json:"language,omitempty"`
	EmailUpdates bool   `json:"email_updates"`
	WeeklyDigest bool   `json:"weekly_digest"`
}

// PreferencesPatch is a partial update; nil fields are left unchanged.
type PreferencesPatch struct {
	Theme        *string
	Language     *string
	EmailUpdates *bool
	WeeklyDigest *bool
}

// apply merges the patch into p.
func (patch PreferencesPatch) apply(p Preferences) Preferences {
	if patch.Theme != nil {
		p.Theme = *patch.Theme
	}
	if patch.Language != nil {
		p.Language = *patch.Language
	}
	if patch.EmailUpdates != nil {
		p.EmailUpdates = *patch.EmailUpdates
	}
	if patch.WeeklyDigest != nil {
		p.WeeklyDigest = *patch.WeeklyDigest
	}
	return p
}

// UserProfile identifies the signed-in user.
type UserProfile struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	AvatarURL   string       `json:"avatar_url"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

func (u UserProfile) clone() UserProfile {
	if u.Preferences != nil {
		p := *u.Preferences
		u.Preferences = &p
	}
	return u
}

// Record is the persisted session. It is valid while now is before ExpiresAt.
type Record struct {
	User      UserProfile `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
	Token     string      `json:"token,omitempty"`
}

// Valid reports whether the record is still usable at now.
func (r Record) Valid(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// State is a snapshot of the container published to subscribers.
type State struct {
	Status    Status
	User      *UserProfile
	ExpiresAt time.Time
	Busy      bool
}

// Authenticated reports whether the snapshot has a signed-in user.
func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.User != nil
}
