// ABOUTME: Image resolution service with cache lookup, bounded retry, and fallback metadata
// ABOUTME: Backs progressive image rendering; never returns an error to callers

package images

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/2389/nurture-hub/internal/store"
)

// Defaults used when a Config field is left zero.
const (
	DefaultExpiry             = 7 * 24 * time.Hour
	DefaultMaxAttempts        = 3
	DefaultFetchTimeout       = 5 * time.Second
	DefaultBackoffBase        = time.Second
	DefaultPlaceholderPath    = "/placeholder.svg"
	DefaultFallbackWidth      = 300
	DefaultFallbackHeight     = 300
	DefaultBlurWidth          = 40
	DefaultBlurQuality        = 50
	DefaultPreloadConcurrency = 6
)

// Options selects the rendition being requested. Zero means "not specified".
type Options struct {
	Width   int
	Height  int
	Quality int
}

// Metadata describes a resolved image.
type Metadata struct {
	Src         string `json:"src"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	BlurDataURL string `json:"blur_data_url"`
	CacheKey    string `json:"cache_key"`
	// Fallback is set when every attempt failed and Src points at the placeholder asset.
	Fallback bool `json:"fallback,omitempty"`
}

// Config holds the retry, expiry, and placeholder settings.
type Config struct {
	Expiry             time.Duration
	MaxAttempts        int
	FetchTimeout       time.Duration
	BackoffBase        time.Duration
	PlaceholderPath    string
	FallbackWidth      int
	FallbackHeight     int
	BlurWidth          int
	BlurQuality        int
	PreloadConcurrency int
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Expiry:             DefaultExpiry,
		MaxAttempts:        DefaultMaxAttempts,
		FetchTimeout:       DefaultFetchTimeout,
		BackoffBase:        DefaultBackoffBase,
		PlaceholderPath:    DefaultPlaceholderPath,
		FallbackWidth:      DefaultFallbackWidth,
		FallbackHeight:     DefaultFallbackHeight,
		BlurWidth:          DefaultBlurWidth,
		BlurQuality:        DefaultBlurQuality,
		PreloadConcurrency: DefaultPreloadConcurrency,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Expiry <= 0 {
		c.Expiry = d.Expiry
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.PlaceholderPath == "" {
		c.PlaceholderPath = d.PlaceholderPath
	}
	if c.FallbackWidth <= 0 {
		c.FallbackWidth = d.FallbackWidth
	}
	if c.FallbackHeight <= 0 {
		c.FallbackHeight = d.FallbackHeight
	}
	if c.BlurWidth <= 0 {
		c.BlurWidth = d.BlurWidth
	}
	if c.BlurQuality <= 0 || c.BlurQuality > 100 {
		c.BlurQuality = d.BlurQuality
	}
	if c.PreloadConcurrency <= 0 {
		c.PreloadConcurrency = d.PreloadConcurrency
	}
	return c
}

// Service resolves image sources into Metadata, caching results in the store.
type Service struct {
	cfg     Config
	fetcher Fetcher
	backend store.Backend
	cache   *store.Bucket[store.ImageEntry]
	logger  *slog.Logger
	now     func() time.Time

	inflight singleflight.Group
}

// Option customizes the service.
type Option func(*Service)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for expiry checks (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a Service over the given backend and fetcher.
func NewService(backend store.Backend, fetcher Fetcher, cfg Config, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg.withDefaults(),
		fetcher: fetcher,
		backend: backend,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "images")
	s.cache = store.ImageCache(backend).WithLogger(s.logger)
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// CacheKey derives the cache slot for a rendition. Unset options render empty,
// so identical requests share a slot and differing renditions never collide.
func CacheKey(src string, opts Options) string {
	return src + "-" + optional(opts.Width) + "-" + optional(opts.Height) + "-" + optional(opts.Quality)
}

func optional(v int) string {
	if v <= 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// Resolve returns metadata for src. A fresh cache entry is returned without
// touching the network; otherwise the image is fetched with retries and the
// result cached. If every attempt fails the fallback metadata is returned.
func (s *Service) Resolve(ctx context.Context, src string, opts Options) Metadata {
	key := CacheKey(src, opts)

	if rec, ok := s.cache.Get(ctx, key); ok {
		if !store.IsStale(s.now(), rec.LastUpdated, s.cfg.Expiry) {
			s.logger.Debug("image cache hit", "cache_key", key)
			return fromEntry(rec.Value, key)
		}
		s.logger.Debug("image cache entry expired", "cache_key", key, "last_updated", rec.LastUpdated)
	}

	if ctx.Err() != nil {
		return s.fallback(opts, key)
	}

	// Concurrent misses on the same key share one attempt loop. The loop is
	// detached from any single caller and bounded by retryBudget instead; a
	// caller whose own ctx ends leaves with the fallback.
	ch := s.inflight.DoChan(key, func() (any, error) {
		return s.resolveRemote(context.WithoutCancel(ctx), src, opts, key), nil
	})
	select {
	case r := <-ch:
		return r.Val.(Metadata)
	case <-ctx.Done():
		s.logger.Debug("image resolve abandoned by caller", "cache_key", key, "error", ctx.Err())
		return s.fallback(opts, key)
	}
}

// decoded is the outcome of one successful attempt.
type decoded struct {
	width  int
	height int
	blur   string
}

func (s *Service) resolveRemote(ctx context.Context, src string, opts Options, key string) Metadata {
	attempt := 0
	operation := func() (decoded, error) {
		attempt++
		return s.attempt(ctx, src)
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(newDoublingBackOff(s.cfg.BackoffBase)),
		backoff.WithMaxTries(uint(s.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(s.retryBudget()),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.Debug("image attempt failed, retrying",
				"src", src,
				"attempt", attempt,
				"retry_in", next,
				"error", err)
		}),
	)
	if err != nil {
		s.logger.Warn("image resolution failed, using placeholder",
			"src", src,
			"attempts", attempt,
			"error", err)
		return s.fallback(opts, key)
	}

	meta := Metadata{
		Src:         src,
		Width:       pick(opts.Width, result.width),
		Height:      pick(opts.Height, result.height),
		BlurDataURL: result.blur,
		CacheKey:    key,
	}

	if !s.cache.Put(ctx, key, toEntry(meta)) {
		s.logger.Debug("image metadata not cached", "cache_key", key)
	}
	return meta
}

// retryBudget bounds the whole loop: every attempt timing out plus every pause.
func (s *Service) retryBudget() time.Duration {
	budget := time.Duration(s.cfg.MaxAttempts) * s.cfg.FetchTimeout
	b := newDoublingBackOff(s.cfg.BackoffBase)
	for i := 1; i < s.cfg.MaxAttempts; i++ {
		budget += b.NextBackOff()
	}
	return budget + time.Second
}

// attempt performs one bounded fetch, decode, and placeholder generation.
func (s *Service) attempt(ctx context.Context, src string) (decoded, error) {
	if ctx.Err() != nil {
		return decoded{}, backoff.Permanent(ctx.Err())
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	data, err := fetchWithTimeout(attemptCtx, s.fetcher, src)
	if err != nil {
		return decoded{}, fmt.Errorf("loading %s: %w", src, err)
	}

	img, err := decodeImage(data)
	if err != nil {
		return decoded{}, fmt.Errorf("decoding %s: %w", src, err)
	}

	blur, err := Placeholder(img, s.cfg.BlurWidth, s.cfg.BlurQuality)
	if err != nil {
		return decoded{}, fmt.Errorf("generating placeholder for %s: %w", src, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return decoded{}, fmt.Errorf("decoding %s: %w", src, errEmptyImage)
	}
	return decoded{width: bounds.Dx(), height: bounds.Dy(), blur: blur}, nil
}

var errEmptyImage = errors.New("image has no pixels")

// fetchWithTimeout runs the fetch so that a fetcher ignoring ctx cannot outlive
// the attempt. A late result is dropped into a buffered channel and discarded.
func fetchWithTimeout(ctx context.Context, f Fetcher, src string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)

	go func() {
		data, err := f.Fetch(ctx, src)
		done <- result{data: data, err: err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) fallback(opts Options, key string) Metadata {
	return Metadata{
		Src:      s.cfg.PlaceholderPath,
		Width:    pick(opts.Width, s.cfg.FallbackWidth),
		Height:   pick(opts.Height, s.cfg.FallbackHeight),
		CacheKey: key,
		Fallback: true,
	}
}

func pick(requested, otherwise int) int {
	if requested > 0 {
		return requested
	}
	return otherwise
}

func toEntry(m Metadata) store.ImageEntry {
	return store.ImageEntry{
		Src:         m.Src,
		Width:       m.Width,
		Height:      m.Height,
		BlurDataURL: m.BlurDataURL,
		CacheKey:    m.CacheKey,
	}
}

func fromEntry(e store.ImageEntry, key string) Metadata {
	return Metadata{
		Src:         e.Src,
		Width:       e.Width,
		Height:      e.Height,
		BlurDataURL: e.BlurDataURL,
		CacheKey:    key,
	}
}

// PreloadReport summarizes a PreloadImages batch.
type PreloadReport struct {
	Total     int
	Fallbacks []string
}

// PreloadImages resolves every source concurrently to warm the cache. A source
// that degrades to the fallback is reported but never aborts the batch.
func (s *Service) PreloadImages(ctx context.Context, srcs []string) PreloadReport {
	report := PreloadReport{Total: len(srcs)}
	failed := make([]atomic.Bool, len(srcs))

	var g errgroup.Group
	g.SetLimit(s.cfg.PreloadConcurrency)
	for i, src := range srcs {
		g.Go(func() error {
			if s.Resolve(ctx, src, Options{}).Fallback {
				failed[i].Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, src := range srcs {
		if failed[i].Load() {
			report.Fallbacks = append(report.Fallbacks, src)
		}
	}
	return report
}

// CleanCache removes every imageCache entry older than the expiry window and
// returns how many were removed. Age is read from the stored timestamp, so an
// entry whose payload no longer decodes still expires.
func (s *Service) CleanCache(ctx context.Context) int {
	now := s.now()
	removed := 0

	for _, rec := range s.backend.GetAll(ctx, store.PartitionImageCache) {
		if !store.IsStale(now, rec.LastUpdated, s.cfg.Expiry) {
			continue
		}
		if s.backend.Remove(ctx, store.PartitionImageCache, rec.ID) {
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("cleaned image cache", "removed", removed)
	}
	return removed
}

// Entries returns every cached entry with its last update time.
func (s *Service) Entries(ctx context.Context) []store.TypedRecord[store.ImageEntry] {
	return s.cache.All(ctx)
}

// Clear drops the entire image cache.
func (s *Service) Clear(ctx context.Context) bool {
	return s.cache.Clear(ctx)
}

// doublingBackOff waits base*2^n after the n-th failed attempt.
type doublingBackOff struct {
	base time.Duration
	n    int
}

func newDoublingBackOff(base time.Duration) *doublingBackOff {
	return &doublingBackOff{base: base}
}

func (b *doublingBackOff) NextBackOff() time.Duration {
	b.n++
	return b.base << b.n
}

func (b *doublingBackOff) Reset() {
	b.n = 0
}

var _ backoff.BackOff = (*doublingBackOff)(nil)
