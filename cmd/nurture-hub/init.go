// ABOUTME: init command: writes the default configuration file
// ABOUTME: Refuses to overwrite an existing file unless --force is given

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/2389/nurture-hub/internal/config"
)

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := getConfigPath()
	if err := writeDefaultConfig(path, *force); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}

func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Config may carry the session secret
	if err := os.WriteFile(path, []byte(config.DefaultYAML), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
