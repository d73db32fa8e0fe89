// ABOUTME: Tests for the notification container
// ABOUTME: Covers seeding, read tracking, dismissal, retention, feed polling, and session following

package notifications

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/nurture-hub/internal/session"
	"github.com/2389/nurture-hub/internal/store"
)

func activeContainer(t *testing.T, opts ...Option) *Container {
	t.Helper()
	c := New(opts...)
	t.Cleanup(c.Close)
	c.Activate()
	return c
}

func TestInactiveContainerIsInert(t *testing.T) {
	c := New()
	defer c.Close()

	assert.Empty(t, c.Notifications())
	assert.Equal(t, 0, c.UnreadCount())

	_, ok := c.Add(Draft{Title: "x"})
	assert.False(t, ok)
	assert.Empty(t, c.Notifications())
}

func TestActivate_SeedsStarterSet(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := activeContainer(t, WithClock(func() time.Time { return now }))

	list := c.Notifications()
	require.Len(t, list, 3)
	assert.Equal(t, "Appointment Reminder", list[0].Title)
	assert.Equal(t, "Milestone Alert", list[2].Title)
	assert.True(t, list[2].Read)
	assert.Equal(t, now.Add(-time.Hour), list[0].CreatedAt)
	assert.Equal(t, 2, c.UnreadCount())

	// Seeding again while active is a no-op
	c.Dismiss(list[0].ID)
	c.Activate()
	assert.Len(t, c.Notifications(), 2)
}

func TestDismiss(t *testing.T) {
	c := activeContainer(t)
	list := c.Notifications()
	id2 := list[1].ID

	c.Dismiss(id2)

	after := c.Notifications()
	require.Len(t, after, 2)
	for _, n := range after {
		assert.NotEqual(t, id2, n.ID)
	}

	c.Dismiss("unknown")
	assert.Len(t, c.Notifications(), 2)
}

func TestMarkRead(t *testing.T) {
	c := activeContainer(t)
	list := c.Notifications()

	c.MarkRead(list[0].ID)
	assert.Equal(t, 1, c.UnreadCount())

	c.MarkRead(list[0].ID)
	c.MarkRead("missing")
	assert.Equal(t, 1, c.UnreadCount())
}

func TestMarkAllRead(t *testing.T) {
	c := activeContainer(t)
	_, ok := c.Add(Draft{Title: "A", Severity: SeverityError})
	require.True(t, ok)

	c.MarkAllRead()
	assert.Equal(t, 0, c.UnreadCount())
	for _, n := range c.Notifications() {
		assert.True(t, n.Read)
	}

	// Unread count tracks later additions without drift
	_, ok = c.Add(Draft{Title: "B"})
	require.True(t, ok)
	assert.Equal(t, 1, c.UnreadCount())
}

func TestAdd_PrependsUnread(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := activeContainer(t, WithClock(func() time.Time { return now }))

	n, ok := c.Add(Draft{Title: "Hello", Message: "World", Severity: "bogus", Link: "/x"})
	require.True(t, ok)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.Read)
	assert.Equal(t, now, n.CreatedAt)
	assert.Equal(t, SeverityInfo, n.Severity, "unknown severity falls back to info")

	list := c.Notifications()
	assert.Equal(t, n.ID, list[0].ID)
	assert.Len(t, list, 4)
}

func TestAdd_RetentionCap(t *testing.T) {
	c := activeContainer(t, WithMaxRetained(5))

	var last Notification
	for i := 0; i < 10; i++ {
		n, ok := c.Add(Draft{Title: fmt.Sprintf("n%d", i)})
		require.True(t, ok)
		last = n
	}

	list := c.Notifications()
	require.Len(t, list, 5)
	assert.Equal(t, last.ID, list[0].ID)
	assert.Equal(t, "n5", list[4].Title, "oldest entries are dropped")
}

func TestNotifications_ReturnsCopy(t *testing.T) {
	c := activeContainer(t)
	list := c.Notifications()
	list[0].Read = true
	list[1].Title = "mutated"

	fresh := c.Notifications()
	assert.False(t, fresh[0].Read)
	assert.NotEqual(t, "mutated", fresh[1].Title)
}

func TestRandomFeed(t *testing.T) {
	rolls := []float64{0.9}
	f := RandomFeed{Rand: func() float64 {
		r := rolls[0]
		rolls = rolls[1:]
		return r
	}}
	assert.Empty(t, f.Poll(context.Background()))

	rolls = []float64{0.1, 0.2}
	drafts := f.Poll(context.Background())
	require.Len(t, drafts, 1)
	assert.Equal(t, "New Update", drafts[0].Title)
	assert.Equal(t, SeveritySuccess, drafts[0].Severity)

	rolls = []float64{0.29, 0.7}
	drafts = f.Poll(context.Background())
	require.Len(t, drafts, 1)
	assert.Equal(t, SeverityInfo, drafts[0].Severity)
}

func TestRun_FollowsSession(t *testing.T) {
	backend := store.NewMemoryStore()
	auth := session.NewLocalAuthenticator(backend, session.WithLatency(0), session.WithBcryptCost(bcrypt.MinCost))
	sess := session.New(backend, auth)
	defer sess.Close()
	sess.Load(context.Background())

	feed := FeedFunc(func(ctx context.Context) []Draft {
		return []Draft{{Title: "Polled", Severity: SeverityInfo}}
	})
	c := New(WithFeed(feed), WithPollInterval(10*time.Millisecond), WithMaxRetained(4))
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, sess)
		close(done)
	}()

	// Feed is ignored while signed out
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, c.Notifications())

	_, err := sess.Login(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		list := c.Notifications()
		return len(list) == 4 && list[0].Title == "Polled"
	}, time.Second, 5*time.Millisecond)

	sess.Logout(context.Background())
	assert.Eventually(t, func() bool {
		return !c.Active() && len(c.Notifications()) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestRun_SignOutDuringSlowPollClearsList(t *testing.T) {
	backend := store.NewMemoryStore()
	auth := session.NewLocalAuthenticator(backend, session.WithLatency(0), session.WithBcryptCost(bcrypt.MinCost))
	sess := session.New(backend, auth)
	defer sess.Close()
	sess.Load(context.Background())

	polling := make(chan struct{}, 1)
	release := make(chan struct{})
	feed := FeedFunc(func(ctx context.Context) []Draft {
		select {
		case polling <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return []Draft{{Title: "Late", Severity: SeverityInfo}}
	})
	c := New(WithFeed(feed), WithPollInterval(5*time.Millisecond))
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, sess)
		close(done)
	}()

	_, err := sess.Login(context.Background(), "a@b.com", "secret1")
	require.NoError(t, err)

	select {
	case <-polling:
	case <-time.After(time.Second):
		t.Fatal("feed was never polled")
	}

	// Run is stuck in the feed while the session flaps and ends signed out
	for i := 0; i < 8; i++ {
		sess.Logout(context.Background())
		_, err := sess.Login(context.Background(), "a@b.com", "secret1")
		require.NoError(t, err)
	}
	sess.Logout(context.Background())
	require.False(t, sess.State().Authenticated())

	close(release)

	assert.Eventually(t, func() bool {
		return !c.Active() && len(c.Notifications()) == 0
	}, time.Second, 5*time.Millisecond)

	// Later ticks keep it empty
	time.Sleep(30 * time.Millisecond)
	assert.False(t, c.Active())
	assert.Empty(t, c.Notifications())

	cancel()
	<-done
}

func TestSubscribe_ReceivesSnapshots(t *testing.T) {
	c := New()
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, _ := c.Subscribe(ctx)

	c.Activate()
	select {
	case list := <-updates:
		assert.Len(t, list, 3)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after activate")
	}
}
