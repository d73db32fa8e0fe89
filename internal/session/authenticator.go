// ABOUTME: Authenticator boundary and a local, store-backed implementation
// ABOUTME: Accounts are bcrypt-hashed in the userData partition under "account:<email>"

package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/nurture-hub/internal/store"
)

// DefaultLatency simulates a remote identity service round trip.
const DefaultLatency = 1500 * time.Millisecond

// Authenticator verifies credentials and creates accounts.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (UserProfile, error)
	Signup(ctx context.Context, name, email, password string) (UserProfile, error)
}

type account struct {
	User         UserProfile `json:"user"`
	PasswordHash []byte      `json:"password_hash"`
}

// LocalAuthenticator keeps accounts in the local store.
type LocalAuthenticator struct {
	accounts            *store.Bucket[account]
	latency             time.Duration
	requireRegistration bool
	cost                int
	logger              *slog.Logger
}

// LocalOption configures a LocalAuthenticator.
type LocalOption func(*LocalAuthenticator)

// WithLatency sets the simulated round trip.
func WithLatency(d time.Duration) LocalOption {
	return func(a *LocalAuthenticator) {
		a.latency = d
	}
}

// WithRequireRegistration rejects logins for emails without an account.
func WithRequireRegistration(require bool) LocalOption {
	return func(a *LocalAuthenticator) {
		a.requireRegistration = require
	}
}

// WithBcryptCost overrides the hashing cost.
func WithBcryptCost(cost int) LocalOption {
	return func(a *LocalAuthenticator) {
		a.cost = cost
	}
}

// WithAuthLogger sets the authenticator's logger.
func WithAuthLogger(logger *slog.Logger) LocalOption {
	return func(a *LocalAuthenticator) {
		a.logger = logger
	}
}

// NewLocalAuthenticator creates an authenticator over backend.
func NewLocalAuthenticator(backend store.Backend, opts ...LocalOption) *LocalAuthenticator {
	a := &LocalAuthenticator{
		accounts: store.UserData[account](backend),
		latency:  DefaultLatency,
		cost:     bcrypt.DefaultCost,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "authenticator")
	a.accounts = a.accounts.WithLogger(a.logger)
	return a
}

// Login verifies the password when an account exists. Unknown emails are
// accepted with a generated profile unless registration is required.
func (a *LocalAuthenticator) Login(ctx context.Context, email, password string) (UserProfile, error) {
	if err := a.wait(ctx); err != nil {
		return UserProfile{}, err
	}

	email = normalizeEmail(email)
	rec, ok := a.accounts.Get(ctx, accountKey(email))
	if !ok {
		if a.requireRegistration {
			return UserProfile{}, ErrInvalidCredentials
		}
		name, _, _ := strings.Cut(email, "@")
		return newProfile(name, email), nil
	}

	if err := bcrypt.CompareHashAndPassword(rec.Value.PasswordHash, []byte(password)); err != nil {
		a.logger.Debug("password mismatch", "email", email)
		return UserProfile{}, ErrInvalidCredentials
	}
	return rec.Value.User, nil
}

// Signup creates an account and returns its profile.
func (a *LocalAuthenticator) Signup(ctx context.Context, name, email, password string) (UserProfile, error) {
	if err := a.wait(ctx); err != nil {
		return UserProfile{}, err
	}

	email = normalizeEmail(email)
	key := accountKey(email)
	if _, ok := a.accounts.Get(ctx, key); ok {
		return UserProfile{}, ErrAccountExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return UserProfile{}, fmt.Errorf("hashing password: %w", err)
	}

	profile := newProfile(strings.TrimSpace(name), email)
	if !a.accounts.Put(ctx, key, account{User: profile, PasswordHash: hash}) {
		a.logger.Warn("account not persisted", "email", email)
	}
	return profile, nil
}

// UpdateProfile stores the latest profile for an existing account.
func (a *LocalAuthenticator) UpdateProfile(ctx context.Context, profile UserProfile) {
	key := accountKey(normalizeEmail(profile.Email))
	rec, ok := a.accounts.Get(ctx, key)
	if !ok {
		return
	}
	rec.Value.User = profile.clone()
	a.accounts.Put(ctx, key, rec.Value)
}

func (a *LocalAuthenticator) wait(ctx context.Context) error {
	if a.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(a.latency)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func accountKey(email string) string {
	return "account:" + email
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newProfile(name, email string) UserProfile {
	return UserProfile{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		AvatarURL: AvatarURL(name),
	}
}

// AvatarURL returns a generated initials avatar for name.
func AvatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}
