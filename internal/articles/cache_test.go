// ABOUTME: Tests for the article cache
// ABOUTME: Covers markdown rendering, freshness, listing order, and pruning

package articles

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/nurture-hub/internal/store"
)

func newTestCache(t *testing.T) (*Cache, *time.Time) {
	t.Helper()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	backend := store.NewMemoryStore(store.WithClock(clock))
	return New(backend, WithClock(clock)), &now
}

func TestPut_RendersMarkdown(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	a, err := c.Put(ctx, "nutrition", store.Article{
		Title:    "Baby Nutrition",
		Markdown: "# First Foods\n\nStart with **iron-rich** purees.\n\n| Month | Food |\n|---|---|\n| 6 | Oats |\n",
	})
	require.NoError(t, err)
	assert.Contains(t, a.HTML, "<h1>First Foods</h1>")
	assert.Contains(t, a.HTML, "<strong>iron-rich</strong>")
	assert.Contains(t, a.HTML, "<table>")

	got, ok := c.Get(ctx, "nutrition")
	require.True(t, ok)
	assert.Equal(t, a.HTML, got.HTML)
	assert.Equal(t, "Baby Nutrition", got.Title)
}

func TestPut_RequiresID(t *testing.T) {
	c, _ := newTestCache(t)
	_, err := c.Put(context.Background(), "  ", store.Article{Markdown: "x"})
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestGet_StaleIsMissing(t *testing.T) {
	c, now := newTestCache(t)
	ctx := context.Background()

	_, err := c.Put(ctx, "sleep", store.Article{Markdown: "zzz"})
	require.NoError(t, err)

	*now = now.Add(24 * time.Hour)
	_, ok := c.Get(ctx, "sleep")
	assert.True(t, ok, "exactly at the threshold is still fresh")

	*now = now.Add(time.Second)
	_, ok = c.Get(ctx, "sleep")
	assert.False(t, ok)
}

func TestList_NewestFirst(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		_, err := c.Put(ctx, id, store.Article{Title: id, PublishedAt: base.AddDate(0, 0, i)})
		require.NoError(t, err)
	}

	list := c.List(ctx)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{list[0].Title, list[1].Title, list[2].Title})
}

func TestPrune(t *testing.T) {
	c, now := newTestCache(t)
	ctx := context.Background()

	_, err := c.Put(ctx, "old", store.Article{Markdown: "old"})
	require.NoError(t, err)
	*now = now.Add(25 * time.Hour)
	_, err = c.Put(ctx, "new", store.Article{Markdown: "new"})
	require.NoError(t, err)

	assert.Equal(t, 1, c.Prune(ctx))
	assert.Equal(t, 0, c.Prune(ctx))

	_, ok := c.Get(ctx, "new")
	assert.True(t, ok)
	assert.Len(t, c.List(ctx), 1)
}
