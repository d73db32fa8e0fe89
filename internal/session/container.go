// ABOUTME: Session container owning the persisted session record and auth state
// ABOUTME: Publishes State snapshots so collaborators can follow login and logout

package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/2389/nurture-hub/internal/pubsub"
	"github.com/2389/nurture-hub/internal/store"
)

// profileUpdater is implemented by authenticators that keep profiles.
type profileUpdater interface {
	UpdateProfile(ctx context.Context, profile UserProfile)
}

// Container is the sole reader and writer of the session record.
type Container struct {
	mu      sync.Mutex
	records *store.Bucket[Record]
	auth    Authenticator
	signer  *TokenSigner
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	state    State
	inflight int

	broadcaster *pubsub.Broadcaster[State]
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the container's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Container) {
		c.logger = logger
	}
}

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Container) {
		c.now = now
	}
}

// WithTokenSigner attaches a signed token to every record and rejects
// persisted records whose token does not verify.
func WithTokenSigner(s *TokenSigner) Option {
	return func(c *Container) {
		c.signer = s
	}
}

// WithTTL overrides the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Container) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// New creates a container in the Loading state. Call Load to settle it.
func New(backend store.Backend, auth Authenticator, opts ...Option) *Container {
	c := &Container{
		records: store.UserData[Record](backend),
		auth:    auth,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  slog.Default(),
		state:   State{Status: StatusLoading},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "session")
	c.records = c.records.WithLogger(c.logger)
	c.broadcaster = pubsub.New[State](c.logger, "session")
	return c
}

// Load reads the persisted record. Absent, expired, or unverifiable records are
// purged and the container settles into Unauthenticated.
func (c *Container) Load(ctx context.Context) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records.Get(ctx, recordKey)
	if !ok {
		c.setLocked(State{Status: StatusUnauthenticated})
		return c.snapshotLocked()
	}

	if !rec.Value.Valid(c.now()) {
		c.logger.Info("stored session expired", "user_id", rec.Value.User.ID)
		c.purgeLocked(ctx)
		return c.snapshotLocked()
	}

	if c.signer != nil {
		sub, err := c.signer.Verify(rec.Value.Token)
		if err != nil || sub != rec.Value.User.ID {
			c.logger.Warn("stored session token rejected", "user_id", rec.Value.User.ID, "error", err)
			c.purgeLocked(ctx)
			return c.snapshotLocked()
		}
	}

	user := rec.Value.User.clone()
	c.setLocked(State{Status: StatusAuthenticated, User: &user, ExpiresAt: rec.Value.ExpiresAt})
	c.logger.Info("session restored", "user_id", user.ID, "expires_at", rec.Value.ExpiresAt)
	return c.snapshotLocked()
}

// Login validates the inputs, asks the authenticator, and on success stores a
// fresh session. Failures leave the state unchanged.
func (c *Container) Login(ctx context.Context, email, password string) (UserProfile, error) {
	if strings.TrimSpace(email) == "" || len(password) < MinPasswordLength {
		return UserProfile{}, ErrInvalidCredentials
	}

	c.begin()
	profile, err := c.auth.Login(ctx, email, password)
	c.end()
	if err != nil {
		c.logger.Info("login failed", "error", err)
		return UserProfile{}, fmt.Errorf("login: %w", err)
	}

	if err := c.establish(ctx, profile); err != nil {
		return UserProfile{}, err
	}
	c.logger.Info("login successful", "user_id", profile.ID)
	return profile.clone(), nil
}

// Signup validates the inputs, creates the account, and signs the user in.
func (c *Container) Signup(ctx context.Context, name, email, password string) (UserProfile, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || len(password) < MinPasswordLength {
		return UserProfile{}, ErrInvalidSignup
	}

	c.begin()
	profile, err := c.auth.Signup(ctx, name, email, password)
	c.end()
	if err != nil {
		c.logger.Info("signup failed", "error", err)
		return UserProfile{}, fmt.Errorf("signup: %w", err)
	}

	if err := c.establish(ctx, profile); err != nil {
		return UserProfile{}, err
	}
	c.logger.Info("account created", "user_id", profile.ID)
	return profile.clone(), nil
}

// Logout purges the session unconditionally.
func (c *Container) Logout(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeLocked(ctx)
	c.logger.Info("logged out")
}

// UpdatePreferences merges patch into the user's preferences and renews the
// session for another full lifetime.
func (c *Container) UpdatePreferences(ctx context.Context, patch PreferencesPatch) (UserProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.liveLocked(ctx) {
		return UserProfile{}, ErrNotAuthenticated
	}

	user := c.state.User.clone()
	var prefs Preferences
	if user.Preferences != nil {
		prefs = *user.Preferences
	}
	prefs = patch.apply(prefs)
	user.Preferences = &prefs

	if err := c.storeLocked(ctx, user); err != nil {
		return UserProfile{}, err
	}
	if pu, ok := c.auth.(profileUpdater); ok {
		pu.UpdateProfile(ctx, user)
	}
	return user.clone(), nil
}

// IsAuthenticated reports whether a live session exists. An expired session is
// purged on detection.
func (c *Container) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(context.Background())
}

// User returns the signed-in user, if any.
func (c *Container) User() (UserProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.liveLocked(context.Background()) {
		return UserProfile{}, false
	}
	return c.state.User.clone(), true
}

// State returns the current snapshot.
func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Busy reports whether a login or signup is in flight.
func (c *Container) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight > 0
}

// Subscribe returns a channel of State snapshots, closed when ctx ends.
func (c *Container) Subscribe(ctx context.Context) (<-chan State, string) {
	return c.broadcaster.Subscribe(ctx)
}

// Close releases subscribers.
func (c *Container) Close() {
	c.broadcaster.Close()
}

func (c *Container) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight++
	c.publishLocked()
}

func (c *Container) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	c.publishLocked()
}

func (c *Container) establish(ctx context.Context, profile UserProfile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storeLocked(ctx, profile)
}

// storeLocked persists a record expiring one ttl from now and marks the
// container authenticated. ExpiresAt is kept to whole seconds to match the
// token's exp claim.
func (c *Container) storeLocked(ctx context.Context, profile UserProfile) error {
	rec := Record{
		User:      profile.clone(),
		ExpiresAt: c.now().Add(c.ttl).Truncate(time.Second),
	}
	if c.signer != nil {
		token, err := c.signer.Sign(profile.ID, rec.ExpiresAt)
		if err != nil {
			return err
		}
		rec.Token = token
	}

	if !c.records.Put(ctx, recordKey, rec) {
		// Still signed in for this process; the next Load starts unauthenticated
		c.logger.Warn("session not persisted", "user_id", profile.ID)
	}

	user := rec.User.clone()
	c.setLocked(State{Status: StatusAuthenticated, User: &user, ExpiresAt: rec.ExpiresAt})
	return nil
}

// liveLocked reports whether the state is authenticated and unexpired,
// purging an expired session.
func (c *Container) liveLocked(ctx context.Context) bool {
	if c.state.Status != StatusAuthenticated || c.state.User == nil {
		return false
	}
	if c.now().Before(c.state.ExpiresAt) {
		return true
	}
	c.logger.Info("session expired", "user_id", c.state.User.ID)
	c.purgeLocked(ctx)
	return false
}

func (c *Container) purgeLocked(ctx context.Context) {
	c.records.Remove(ctx, recordKey)
	c.setLocked(State{Status: StatusUnauthenticated})
}

func (c *Container) setLocked(s State) {
	c.state = s
	c.publishLocked()
}

func (c *Container) publishLocked() {
	c.broadcaster.Publish(c.snapshotLocked())
}

func (c *Container) snapshotLocked() State {
	s := c.state
	if s.User != nil {
		u := s.User.clone()
		s.User = &u
	}
	s.Busy = c.inflight > 0
	return s
}
