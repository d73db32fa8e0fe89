// ABOUTME: serve command: warms the image cache, restores the session, and follows notifications
// ABOUTME: Holds a file lock so only one instance owns the cache database

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/gofrs/flock"

	"github.com/2389/nurture-hub/internal/session"
)

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Preload:   %d critical, %d secondary\n", len(cfg.Preload.Critical), len(cfg.Preload.Secondary))
	fmt.Println()

	dataDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	lock := flock.New(filepath.Join(dataDir, "hub.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another nurture-hub is already running against %s", dataDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("releasing lock", "error", err)
		}
	}()

	logger.Info("starting nurture-hub", "config", configPath, "database", cfg.Database.Path)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	// Critical images are warm before anything else starts
	a.preload.Start(ctx)

	state := a.session.Load(ctx)
	logger.Info("session loaded", "status", state.Status.String())

	if pruned := a.articles.Prune(ctx); pruned > 0 {
		logger.Info("stale articles pruned", "count", pruned)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.notifications.Run(ctx, a.session)
	}()

	watchSession(ctx, a)

	<-done
	a.preload.Wait()
	logger.Info("nurture-hub stopped")
	return nil
}

// watchSession logs session and notification changes until ctx ends.
func watchSession(ctx context.Context, a *app) {
	states, _ := a.session.Subscribe(ctx)
	notes, _ := a.notifications.Subscribe(ctx)

	for {
		select {
		case s, ok := <-states:
			if !ok {
				return
			}
			logSessionState(a, s)
		case list, ok := <-notes:
			if !ok {
				return
			}
			unread := 0
			for _, n := range list {
				if !n.Read {
					unread++
				}
			}
			a.logger.Debug("notifications updated", "count", len(list), "unread", unread)
		case <-ctx.Done():
			return
		}
	}
}

func logSessionState(a *app, s session.State) {
	if s.Authenticated() {
		a.logger.Info("session authenticated", "user_id", s.User.ID, "expires_at", s.ExpiresAt)
		return
	}
	a.logger.Debug("session state changed", "status", s.Status.String(), "busy", s.Busy)
}
