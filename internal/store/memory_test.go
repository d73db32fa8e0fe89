// ABOUTME: Tests for the in-memory Backend
// ABOUTME: Covers copy semantics, stamping, and injected failures

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGetCopies(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewMemoryStore(WithClock(func() time.Time { return fixed }))
	ctx := context.Background()
	require.NoError(t, m.Open(ctx))

	payload := []byte(`"original"`)
	require.True(t, m.Set(ctx, PartitionUserData, "k", payload))
	payload[1] = 'X'

	rec, ok := m.Get(ctx, PartitionUserData, "k")
	require.True(t, ok)
	assert.Equal(t, `"original"`, string(rec.Payload))
	assert.Equal(t, fixed, rec.LastUpdated)

	rec.Payload[1] = 'Y'
	again, _ := m.Get(ctx, PartitionUserData, "k")
	assert.Equal(t, `"original"`, string(again.Payload))
}

func TestMemoryStore_Failure(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	require.True(t, m.Set(ctx, PartitionImageCache, "k", []byte(`{}`)))

	m.SetFailure(errors.New("disk on fire"))

	assert.False(t, m.Set(ctx, PartitionImageCache, "k2", []byte(`{}`)))
	_, ok := m.Get(ctx, PartitionImageCache, "k")
	assert.False(t, ok)
	assert.Empty(t, m.GetAll(ctx, PartitionImageCache))
	assert.False(t, m.Remove(ctx, PartitionImageCache, "k"))
	assert.False(t, m.Clear(ctx, PartitionImageCache))

	m.SetFailure(nil)
	_, ok = m.Get(ctx, PartitionImageCache, "k")
	assert.True(t, ok)
}

func TestMemoryStore_RemoveAndClear(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.True(t, m.Set(ctx, PartitionArticles, "a", []byte(`1`)))
	require.True(t, m.Set(ctx, PartitionArticles, "b", []byte(`2`)))

	assert.True(t, m.Remove(ctx, PartitionArticles, "a"))
	assert.True(t, m.Remove(ctx, PartitionArticles, "missing"))
	assert.Len(t, m.GetAll(ctx, PartitionArticles), 1)

	assert.True(t, m.Clear(ctx, PartitionArticles))
	assert.Empty(t, m.GetAll(ctx, PartitionArticles))
}
