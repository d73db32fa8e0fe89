// ABOUTME: Cached article content backed by the articles partition
// ABOUTME: Renders markdown to HTML once on write and serves fresh copies for a day

package articles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/nurture-hub/internal/store"
)

// ErrEmptyID is returned by Put for an article without an id.
var ErrEmptyID = errors.New("article id is required")

// Cache stores rendered articles.
type Cache struct {
	bucket     *store.Bucket[store.Article]
	md         goldmark.Markdown
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithStaleAfter sets how long an entry stays fresh.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.staleAfter = d
		}
	}
}

// WithClock sets the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the cache's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a cache over backend.
func New(backend store.Backend, opts ...Option) *Cache {
	c := &Cache{
		bucket:     store.Articles(backend),
		md:         goldmark.New(goldmark.WithExtensions(extension.GFM)),
		staleAfter: store.DefaultStaleAfter,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "articles")
	c.bucket = c.bucket.WithLogger(c.logger)
	return c
}

// Put renders a.Markdown and stores the article under id.
func (c *Cache) Put(ctx context.Context, id string, a store.Article) (store.Article, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return store.Article{}, ErrEmptyID
	}

	var buf bytes.Buffer
	if err := c.md.Convert([]byte(a.Markdown), &buf); err != nil {
		return store.Article{}, fmt.Errorf("rendering article %s: %w", id, err)
	}
	a.HTML = buf.String()

	if !c.bucket.Put(ctx, id, a) {
		c.logger.Warn("article not cached", "id", id)
	}
	return a, nil
}

// Get returns the article if it is cached and fresh.
func (c *Cache) Get(ctx context.Context, id string) (store.Article, bool) {
	rec, ok := c.bucket.Get(ctx, id)
	if !ok {
		return store.Article{}, false
	}
	if store.IsStale(c.now(), rec.LastUpdated, c.staleAfter) {
		return store.Article{}, false
	}
	return rec.Value, true
}

// List returns every fresh article, newest publication first.
func (c *Cache) List(ctx context.Context) []store.Article {
	now := c.now()
	var out []store.Article
	for _, rec := range c.bucket.All(ctx) {
		if !store.IsStale(now, rec.LastUpdated, c.staleAfter) {
			out = append(out, rec.Value)
		}
	}
	slices.SortFunc(out, func(a, b store.Article) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	return out
}

// Prune removes stale articles and returns how many were removed.
func (c *Cache) Prune(ctx context.Context) int {
	now := c.now()
	removed := 0
	for _, rec := range c.bucket.All(ctx) {
		if store.IsStale(now, rec.LastUpdated, c.staleAfter) && c.bucket.Remove(ctx, rec.ID) {
			removed++
		}
	}
	if removed > 0 {
		c.logger.Info("pruned stale articles", "removed", removed)
	}
	return removed
}
