// ABOUTME: resolve and cache commands for inspecting the image pipeline
// ABOUTME: Prints metadata as JSON and cache contents as a table

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/2389/nurture-hub/internal/images"
	"github.com/2389/nurture-hub/internal/store"
)

// openApp loads config and builds the services for a one-shot command.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig(getConfigPath())
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, setupLogger(cfg.Logging))
}

func parseResolveArgs(args []string) (string, images.Options, error) {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	width := fs.Int("width", 0, "requested width")
	height := fs.Int("height", 0, "requested height")
	quality := fs.Int("quality", 0, "requested quality")

	// Allow the source before or after the flags
	var src string
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		src, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", images.Options{}, err
	}
	if src == "" && fs.NArg() > 0 {
		src = fs.Arg(0)
	}
	if src == "" {
		return "", images.Options{}, fmt.Errorf("usage: nurture-hub resolve <src> [--width N] [--height N] [--quality N]")
	}

	return src, images.Options{Width: *width, Height: *height, Quality: *quality}, nil
}

func runResolve(ctx context.Context, args []string) error {
	src, opts, err := parseResolveArgs(args)
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	meta := a.images.Resolve(ctx, src, opts)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func runCache(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: nurture-hub cache list|clean|clear")
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	switch args[0] {
	case "list":
		entries := a.images.Entries(ctx)
		headers, rows, aligns := cacheTable(entries, time.Now(), a.images.Config().Expiry)
		fmt.Println(renderTable(headers, rows, aligns, fmt.Sprintf("%d entries", len(entries))))
	case "clean":
		removed := a.images.CleanCache(ctx)
		fmt.Printf("Removed %d expired entries\n", removed)
	case "clear":
		if !a.images.Clear(ctx) {
			return fmt.Errorf("clearing image cache failed, see log")
		}
		fmt.Println("Image cache cleared")
	default:
		return fmt.Errorf("unknown cache command: %s", args[0])
	}
	return nil
}

// cacheTable lays out image cache entries newest first.
func cacheTable(entries []store.TypedRecord[store.ImageEntry], now time.Time, expiry time.Duration) ([]string, [][]string, []columnAlignment) {
	headers := []string{"Key", "Source", "Size", "Placeholder", "Updated", "Status"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft}

	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b store.TypedRecord[store.ImageEntry]) int {
		return b.LastUpdated.Compare(a.LastUpdated)
	})

	rows := make([][]string, 0, len(sorted))
	for _, e := range sorted {
		status := "fresh"
		if store.IsStale(now, e.LastUpdated, expiry) {
			status = "expired"
		}
		rows = append(rows, []string{
			e.ID,
			e.Value.Src,
			strconv.Itoa(e.Value.Width) + "x" + strconv.Itoa(e.Value.Height),
			humanize.Bytes(uint64(len(e.Value.BlurDataURL))),
			humanize.RelTime(e.LastUpdated, now, "ago", "from now"),
			status,
		})
	}
	return headers, rows, aligns
}
