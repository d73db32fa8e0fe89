// ABOUTME: Composition root wiring config into the store, image, session, and notification services
// ABOUTME: Shared by serve and the one-shot cache commands

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/nurture-hub/internal/articles"
	"github.com/2389/nurture-hub/internal/config"
	"github.com/2389/nurture-hub/internal/images"
	"github.com/2389/nurture-hub/internal/notifications"
	"github.com/2389/nurture-hub/internal/preload"
	"github.com/2389/nurture-hub/internal/session"
	"github.com/2389/nurture-hub/internal/store"
)

type app struct {
	cfg    *config.Config
	logger *slog.Logger

	store         *store.SQLiteStore
	images        *images.Service
	articles      *articles.Cache
	session       *session.Container
	notifications *notifications.Container
	preload       *preload.Orchestrator
}

func imagesConfig(c config.ImagesConfig) images.Config {
	return images.Config{
		Expiry:             c.Expiry,
		MaxAttempts:        c.MaxAttempts,
		FetchTimeout:       c.FetchTimeout,
		BackoffBase:        c.BackoffBase,
		PlaceholderPath:    c.PlaceholderPath,
		FallbackWidth:      c.DefaultWidth,
		FallbackHeight:     c.DefaultHeight,
		BlurWidth:          c.BlurWidth,
		BlurQuality:        c.BlurQuality,
		PreloadConcurrency: c.PreloadConcurrency,
	}
}

func preloadConfig(c config.PreloadConfig) preload.Config {
	return preload.Config{
		Critical:         c.Critical,
		Secondary:        c.Secondary,
		SecondaryTimeout: c.SecondaryTimeout,
		CleanupInterval:  c.CleanupInterval,
	}
}

// newApp opens the store and builds every service. Call close when done.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	db := store.NewSQLiteStore(cfg.Database.Path, store.WithLogger(logger))
	if err := db.Open(ctx); err != nil {
		// Services stay usable on a broken cache; surface it to the operator anyway
		logger.Warn("cache database unavailable", "path", cfg.Database.Path, "error", err)
	}

	fetcher, err := images.NewHTTPFetcher(images.HTTPFetcherConfig{
		BaseURL:   cfg.Images.BaseURL,
		AssetDir:  cfg.Images.AssetDir,
		UserAgent: cfg.Images.UserAgent,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating image fetcher: %w", err)
	}

	imgs := images.NewService(db, fetcher, imagesConfig(cfg.Images), images.WithLogger(logger))

	authOpts := []session.LocalOption{
		session.WithLatency(cfg.Session.Latency),
		session.WithRequireRegistration(cfg.Session.RequireRegistration),
		session.WithAuthLogger(logger),
	}
	sessOpts := []session.Option{
		session.WithLogger(logger),
		session.WithTTL(cfg.Session.TTL),
	}
	if cfg.Session.Secret != "" {
		sessOpts = append(sessOpts, session.WithTokenSigner(session.NewTokenSigner([]byte(cfg.Session.Secret), nil)))
	} else {
		logger.Debug("session.secret not set, session tokens disabled")
	}
	sess := session.New(db, session.NewLocalAuthenticator(db, authOpts...), sessOpts...)

	var feed notifications.Feed = notifications.RandomFeed{Chance: cfg.Notifications.Probability}
	if cfg.Notifications.Probability == 0 {
		feed = notifications.FeedFunc(func(context.Context) []notifications.Draft { return nil })
	}
	notes := notifications.New(
		notifications.WithFeed(feed),
		notifications.WithPollInterval(cfg.Notifications.PollInterval),
		notifications.WithMaxRetained(cfg.Notifications.MaxRetained),
		notifications.WithLogger(logger),
	)

	orch := preload.New(imgs, preloadConfig(cfg.Preload), preload.DelayScheduler{Delay: cfg.Preload.IdleDelay}, logger)

	return &app{
		cfg:           cfg,
		logger:        logger,
		store:         db,
		images:        imgs,
		articles:      articles.New(db, articles.WithStaleAfter(cfg.Articles.MaxAge), articles.WithLogger(logger)),
		session:       sess,
		notifications: notes,
		preload:       orch,
	}, nil
}

func (a *app) close() {
	a.notifications.Close()
	a.session.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing cache database", "error", err)
	}
}
