// ABOUTME: Startup cache warming and periodic image cache eviction
// ABOUTME: Critical assets load immediately, secondary ones when idle, cleanup runs daily

package preload

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/nurture-hub/internal/images"
)

// Defaults matching the production schedule.
const (
	DefaultIdleDelay        = 2 * time.Second
	DefaultSecondaryTimeout = 5 * time.Second
	DefaultCleanupInterval  = 24 * time.Hour
)

// Warmer is the part of the image service the orchestrator drives.
type Warmer interface {
	PreloadImages(ctx context.Context, srcs []string) images.PreloadReport
	CleanCache(ctx context.Context) int
}

// IdleScheduler blocks until the host has spare capacity or ctx ends.
type IdleScheduler interface {
	WaitIdle(ctx context.Context) error
}

// DelayScheduler treats the host as idle after a fixed delay.
type DelayScheduler struct {
	Delay time.Duration
}

// WaitIdle waits for Delay.
func (d DelayScheduler) WaitIdle(ctx context.Context) error {
	if d.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config lists the assets to warm and the schedule.
type Config struct {
	Critical         []string
	Secondary        []string
	SecondaryTimeout time.Duration
	CleanupInterval  time.Duration
}

// Orchestrator runs the startup preload routine once per instance.
type Orchestrator struct {
	warmer    Warmer
	cfg       Config
	scheduler IdleScheduler
	logger    *slog.Logger

	once sync.Once
	wg   sync.WaitGroup
}

// New creates an orchestrator. A nil scheduler waits DefaultIdleDelay.
func New(w Warmer, cfg Config, scheduler IdleScheduler, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if scheduler == nil {
		scheduler = DelayScheduler{Delay: DefaultIdleDelay}
	}
	if cfg.SecondaryTimeout <= 0 {
		cfg.SecondaryTimeout = DefaultSecondaryTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	return &Orchestrator{
		warmer:    w,
		cfg:       cfg,
		scheduler: scheduler,
		logger:    logger.With("component", "preload"),
	}
}

// Start warms the critical assets before returning, then schedules the
// secondary batch and the cleanup loop in the background. Background work
// stops when ctx ends. Only the first call has any effect.
func (o *Orchestrator) Start(ctx context.Context) {
	o.once.Do(func() {
		o.preloadCritical(ctx)

		if len(o.cfg.Secondary) > 0 {
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				o.preloadSecondary(ctx)
			}()
		}

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.cleanupLoop(ctx)
		}()
	})
}

// Wait blocks until every background task has exited.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) preloadCritical(ctx context.Context) {
	if len(o.cfg.Critical) == 0 {
		return
	}

	report := o.warmer.PreloadImages(ctx, o.cfg.Critical)
	for _, src := range report.Fallbacks {
		o.logger.Warn("failed to preload critical image", "src", src)
	}
	o.logger.Info("critical images preloaded",
		"total", report.Total,
		"failed", len(report.Fallbacks))
}

func (o *Orchestrator) preloadSecondary(ctx context.Context) {
	if err := o.scheduler.WaitIdle(ctx); err != nil {
		o.logger.Debug("secondary preload not scheduled", "error", err)
		return
	}

	// The timeout bounds how long we wait, not the loads themselves; a batch
	// still running after it keeps filling the cache until ctx ends.
	done := make(chan struct{})
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(done)

		report := o.warmer.PreloadImages(ctx, o.cfg.Secondary)
		if len(report.Fallbacks) > 0 {
			o.logger.Warn("secondary image preload failed", "failed", report.Fallbacks)
		}
		o.logger.Debug("secondary images preloaded",
			"total", report.Total,
			"failed", len(report.Fallbacks))
	}()

	timer := time.NewTimer(o.cfg.SecondaryTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		o.logger.Warn("secondary image preload timed out", "timeout", o.cfg.SecondaryTimeout)
	case <-ctx.Done():
	}
}

func (o *Orchestrator) cleanupLoop(ctx context.Context) {
	o.cleanup(ctx)

	ticker := time.NewTicker(o.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.cleanup(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (o *Orchestrator) cleanup(ctx context.Context) {
	removed := o.warmer.CleanCache(ctx)
	o.logger.Debug("image cache cleanup finished", "removed", removed)
}
