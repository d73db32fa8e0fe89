// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers lazy open, partition creation, CRUD, timestamps, and persistence across reopen

package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_OpenCreatesFileAndDirectories(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "cache.db")
	s := NewSQLiteStore(dbPath)
	defer s.Close()

	require.NoError(t, s.Open(context.Background()))

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestSQLiteStore_OpenIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Open(ctx))

	assert.True(t, s.Set(ctx, PartitionUserData, "k", []byte(`"v"`)))
}

func TestSQLiteStore_ConcurrentOpen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Open(ctx)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestSQLiteStore_CreatesAllPartitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))

	for _, p := range Partitions() {
		var name string
		err := s.db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name = ?", string(p)).Scan(&name)
		require.NoError(t, err, "partition %s missing", p)
		assert.Equal(t, string(p), name)
	}
}

func TestSQLiteStore_SetAndGet(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	// Lazy open on first write
	require.True(t, s.Set(ctx, PartitionImageCache, "img-1", []byte(`{"src":"a.png"}`)))

	rec, ok := s.Get(ctx, PartitionImageCache, "img-1")
	require.True(t, ok)
	assert.Equal(t, "img-1", rec.ID)
	assert.JSONEq(t, `{"src":"a.png"}`, string(rec.Payload))
	assert.True(t, rec.LastUpdated.Equal(fixed), "LastUpdated = %v, want %v", rec.LastUpdated, fixed)
}

func TestSQLiteStore_SetOverwritesAndRestamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.True(t, s.Set(ctx, PartitionUserData, "k", []byte(`1`)))
	now = now.Add(time.Hour)
	require.True(t, s.Set(ctx, PartitionUserData, "k", []byte(`2`)))

	rec, ok := s.Get(ctx, PartitionUserData, "k")
	require.True(t, ok)
	assert.Equal(t, `2`, string(rec.Payload))
	assert.True(t, rec.LastUpdated.Equal(now))

	assert.Len(t, s.GetAll(ctx, PartitionUserData), 1)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, ok := s.Get(context.Background(), PartitionArticles, "nope")
	assert.False(t, ok)
}

func TestSQLiteStore_PartitionsAreIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.True(t, s.Set(ctx, PartitionArticles, "same", []byte(`"article"`)))
	require.True(t, s.Set(ctx, PartitionMilestones, "same", []byte(`"milestone"`)))

	a, ok := s.Get(ctx, PartitionArticles, "same")
	require.True(t, ok)
	m, ok := s.Get(ctx, PartitionMilestones, "same")
	require.True(t, ok)

	assert.Equal(t, `"article"`, string(a.Payload))
	assert.Equal(t, `"milestone"`, string(m.Payload))
}

func TestSQLiteStore_GetAllRemoveClear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		require.True(t, s.Set(ctx, PartitionImageCache, k, []byte(`{}`)))
	}
	assert.Len(t, s.GetAll(ctx, PartitionImageCache), 3)

	assert.True(t, s.Remove(ctx, PartitionImageCache, "b"))
	assert.True(t, s.Remove(ctx, PartitionImageCache, "b"), "remove should be idempotent")
	assert.Len(t, s.GetAll(ctx, PartitionImageCache), 2)

	assert.True(t, s.Clear(ctx, PartitionImageCache))
	assert.True(t, s.Clear(ctx, PartitionImageCache), "clear should be idempotent")
	assert.Empty(t, s.GetAll(ctx, PartitionImageCache))
}

func TestSQLiteStore_UnknownPartitionIsBenign(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bogus := Partition("nope")

	assert.False(t, s.Set(ctx, bogus, "k", []byte(`1`)))
	_, ok := s.Get(ctx, bogus, "k")
	assert.False(t, ok)
	assert.NotNil(t, s.GetAll(ctx, bogus))
	assert.Empty(t, s.GetAll(ctx, bogus))
	assert.False(t, s.Remove(ctx, bogus, "k"))
	assert.False(t, s.Clear(ctx, bogus))
}

func TestSQLiteStore_UnopenablePathIsBenign(t *testing.T) {
	// A regular file where a directory is expected makes MkdirAll fail
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	s := NewSQLiteStore(filepath.Join(blocker, "cache.db"))
	ctx := context.Background()

	assert.Error(t, s.Open(ctx))
	assert.False(t, s.Set(ctx, PartitionUserData, "k", []byte(`1`)))
	_, ok := s.Get(ctx, PartitionUserData, "k")
	assert.False(t, ok)
	assert.Empty(t, s.GetAll(ctx, PartitionUserData))
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	first := NewSQLiteStore(dbPath)
	require.True(t, first.Set(ctx, PartitionUserData, "session", []byte(`{"user":"a"}`)))
	require.NoError(t, first.Close())

	second := NewSQLiteStore(dbPath)
	defer second.Close()

	rec, ok := second.Get(ctx, PartitionUserData, "session")
	require.True(t, ok)
	assert.JSONEq(t, `{"user":"a"}`, string(rec.Payload))
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s := NewSQLiteStore(":memory:")
	defer s.Close()
	ctx := context.Background()

	require.True(t, s.Set(ctx, PartitionMilestones, "m1", []byte(`{}`)))
	_, ok := s.Get(ctx, PartitionMilestones, "m1")
	assert.True(t, ok)
}
