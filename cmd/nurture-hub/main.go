// ABOUTME: Entry point for nurture-hub
// ABOUTME: Runs the image cache and session core, and inspects the local cache

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/2389/nurture-hub/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                 _                        _           _
 _ __  _   _ _ _| |_ _   _ _ __ ___      | |__  _   _| |__
| '_ \| | | | '_| __| | | | '__/ _ \_____| '_ \| | | | '_ \
| | | | |_| | | | |_| |_| | | |  __/_____| | | | |_| | |_) |
|_| |_|\__,_|_|  \__|\__,_|_|  \___|     |_| |_|\__,_|_.__/
`

// getConfigPath returns the path to the config file.
// Priority: NURTURE_CONFIG env var > XDG_CONFIG_HOME/nurture/hub.yaml > ~/.config/nurture/hub.yaml
func getConfigPath() string {
	if envPath := os.Getenv("NURTURE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "hub.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "nurture", "hub.yaml")
}

// loadConfig reads path, or falls back to defaults plus environment
// overrides when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return config.FromEnv()
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

func usage() {
	fmt.Println("Usage: nurture-hub <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                              Warm the image cache and run session and notifications")
	fmt.Println("  init [--force]                     Write a default config file")
	fmt.Println("  resolve <src> [--width N] [--height N] [--quality N]")
	fmt.Println("                                     Resolve one image and print its metadata")
	fmt.Println("  cache list|clean|clear             Inspect or evict the image cache")
	fmt.Println("  articles put <id> <file.md> [--title T]")
	fmt.Println("                                     Render a Markdown article into the offline cache")
	fmt.Println("  articles get <id>|list|prune       Read or prune cached articles")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Args[2:])
	case "resolve":
		err = runResolve(ctx, os.Args[2:])
	case "cache":
		err = runCache(ctx, os.Args[2:])
	case "articles":
		err = runArticles(ctx, os.Args[2:])
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
