// ABOUTME: Notification container scoped to the signed-in user
// ABOUTME: Seeds on login, clears on logout, polls a feed while authenticated

package notifications

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/nurture-hub/internal/pubsub"
	"github.com/2389/nurture-hub/internal/session"
)

// Defaults for the container.
const (
	DefaultPollInterval = time.Minute
	DefaultMaxRetained  = 50
)

// SessionSource is what the container follows to know who is signed in.
type SessionSource interface {
	State() session.State
	Subscribe(ctx context.Context) (<-chan session.State, string)
}

// Container owns the notification list. The list is ordered newest first.
type Container struct {
	mu       sync.Mutex
	items    []Notification
	active   bool
	feed     Feed
	interval time.Duration
	max      int
	now      func() time.Time
	logger   *slog.Logger

	broadcaster *pubsub.Broadcaster[[]Notification]
}

// Option configures a Container.
type Option func(*Container)

// WithFeed replaces the default RandomFeed.
func WithFeed(f Feed) Option {
	return func(c *Container) {
		c.feed = f
	}
}

// WithPollInterval sets how often the feed is polled.
func WithPollInterval(d time.Duration) Option {
	return func(c *Container) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithMaxRetained caps the list length; the oldest entries are dropped.
func WithMaxRetained(n int) Option {
	return func(c *Container) {
		if n > 0 {
			c.max = n
		}
	}
}

// WithClock sets the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Container) {
		c.now = now
	}
}

// WithLogger sets the container's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// New creates an empty, inactive container.
func New(opts ...Option) *Container {
	c := &Container{
		feed:     RandomFeed{},
		interval: DefaultPollInterval,
		max:      DefaultMaxRetained,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "notifications")
	c.broadcaster = pubsub.New[[]Notification](c.logger, "notifications")
	return c
}

// Run follows src until ctx ends: it activates and seeds the list when a user
// signs in, clears it on sign-out, and polls the feed while active.
//
// Session events can be dropped for a slow subscriber, so an event is only a
// cue to re-read src.State(); the ticker re-reads it as well.
func (c *Container) Run(ctx context.Context, src SessionSource) {
	states, _ := src.Subscribe(ctx)
	c.follow(src.State())

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case _, ok := <-states:
			if !ok {
				return
			}
			c.follow(src.State())
		case <-ticker.C:
			c.follow(src.State())
			c.poll(ctx, src)
		case <-ctx.Done():
			return
		}
	}
}

// Activate seeds the starter set if the container is not already active.
func (c *Container) Activate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		return
	}
	c.active = true

	now := c.now()
	c.items = c.items[:0]
	for _, s := range starterSet() {
		n := c.build(s.draft, now.Add(-s.age))
		n.Read = s.read
		c.items = append(c.items, n)
	}
	c.logger.Debug("notifications seeded", "count", len(c.items))
	c.publishLocked()
}

// Deactivate clears the list.
func (c *Container) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active && len(c.items) == 0 {
		return
	}
	c.active = false
	c.items = nil
	c.publishLocked()
}

// MarkRead marks one notification read. Unknown ids are ignored.
func (c *Container) MarkRead(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ID == id {
			if !c.items[i].Read {
				c.items[i].Read = true
				c.publishLocked()
			}
			return
		}
	}
}

// MarkAllRead marks every notification read.
func (c *Container) MarkAllRead() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		c.items[i].Read = true
	}
	c.publishLocked()
}

// Dismiss removes a notification. Unknown ids are ignored.
func (c *Container) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.items)
	c.items = slices.DeleteFunc(c.items, func(n Notification) bool { return n.ID == id })
	if len(c.items) != before {
		c.publishLocked()
	}
}

// Add prepends a new unread notification built from d. It reports false and
// does nothing while no user is signed in.
func (c *Container) Add(d Draft) (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return Notification{}, false
	}
	n := c.addLocked(d)
	c.publishLocked()
	return n, true
}

// Notifications returns a copy of the list, newest first.
func (c *Container) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// UnreadCount counts unread notifications in the current list.
func (c *Container) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return unread(c.items)
}

// Active reports whether a user is signed in as far as the container knows.
func (c *Container) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Subscribe returns a channel of list snapshots, closed when ctx ends.
func (c *Container) Subscribe(ctx context.Context) (<-chan []Notification, string) {
	return c.broadcaster.Subscribe(ctx)
}

// Close releases subscribers.
func (c *Container) Close() {
	c.broadcaster.Close()
}

func (c *Container) follow(s session.State) {
	switch s.Status {
	case session.StatusAuthenticated:
		c.Activate()
	case session.StatusUnauthenticated:
		c.Deactivate()
	}
}

func (c *Container) poll(ctx context.Context, src SessionSource) {
	if !c.Active() || !src.State().Authenticated() {
		return
	}
	drafts := c.feed.Poll(ctx)

	// The user may have signed out while the feed was running
	if s := src.State(); !s.Authenticated() {
		c.follow(s)
		return
	}
	for _, d := range drafts {
		if n, ok := c.Add(d); ok {
			c.logger.Info("notification received", "id", n.ID, "title", n.Title)
		}
	}
}

func (c *Container) addLocked(d Draft) Notification {
	n := c.build(d, c.now())
	c.items = slices.Insert(c.items, 0, n)
	if len(c.items) > c.max {
		c.items = c.items[:c.max]
	}
	return n
}

func (c *Container) build(d Draft, at time.Time) Notification {
	severity := d.Severity
	if !severity.Valid() {
		severity = SeverityInfo
	}
	return Notification{
		ID:        uuid.NewString(),
		Title:     d.Title,
		Message:   d.Message,
		Severity:  severity,
		CreatedAt: at,
		Link:      d.Link,
	}
}

func (c *Container) publishLocked() {
	c.broadcaster.Publish(slices.Clone(c.items))
}

func unread(items []Notification) int {
	count := 0
	for _, n := range items {
		if !n.Read {
			count++
		}
	}
	return count
}
