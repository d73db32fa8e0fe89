// ABOUTME: articles command for loading and reading the offline article cache
// ABOUTME: Renders Markdown files into the cache and lists what is fresh

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/2389/nurture-hub/internal/articles"
	"github.com/2389/nurture-hub/internal/store"
)

var errArticlesUsage = errors.New("usage: nurture-hub articles put <id> <file.md> [--title T] | get <id> | list | prune")

func runArticles(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errArticlesUsage
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	return articlesCommand(ctx, a.articles, args, os.Stdout, time.Now())
}

// articlesCommand runs one articles subcommand against cache, writing to out.
func articlesCommand(ctx context.Context, cache *articles.Cache, args []string, out io.Writer, now time.Time) error {
	if len(args) < 1 {
		return errArticlesUsage
	}

	switch args[0] {
	case "put":
		id, path, title, err := parseArticlePutArgs(args[1:])
		if err != nil {
			return err
		}
		markdown, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading article: %w", err)
		}
		if title == "" {
			title = articleTitle(string(markdown), id)
		}
		art, err := cache.Put(ctx, id, store.Article{
			Title:       title,
			Markdown:    string(markdown),
			PublishedAt: now,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Cached %q (%s of HTML)\n", art.Title, humanize.Bytes(uint64(len(art.HTML))))
	case "get":
		if len(args) < 2 {
			return errArticlesUsage
		}
		art, ok := cache.Get(ctx, args[1])
		if !ok {
			return fmt.Errorf("article %s is not cached or is stale", args[1])
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(art)
	case "list":
		list := cache.List(ctx)
		headers, rows, aligns := articlesTable(list, now)
		fmt.Fprintln(out, renderTable(headers, rows, aligns, fmt.Sprintf("%d articles", len(list))))
	case "prune":
		fmt.Fprintf(out, "Removed %d stale articles\n", cache.Prune(ctx))
	default:
		return fmt.Errorf("unknown articles command: %s", args[0])
	}
	return nil
}

func parseArticlePutArgs(args []string) (id, path, title string, err error) {
	fs := flag.NewFlagSet("articles put", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	titleFlag := fs.String("title", "", "article title")

	// Positionals first, flags after
	var positional []string
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		positional, args = append(positional, args[0]), args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", "", "", err
	}
	positional = append(positional, fs.Args()...)
	if len(positional) != 2 {
		return "", "", "", errArticlesUsage
	}
	return positional[0], positional[1], *titleFlag, nil
}

// articleTitle takes the first level-one heading, or falls back to id.
func articleTitle(markdown, id string) string {
	for _, line := range strings.Split(markdown, "\n") {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			if t := strings.TrimSpace(rest); t != "" {
				return t
			}
		}
	}
	return id
}

// articlesTable lays out cached articles in List order.
func articlesTable(list []store.Article, now time.Time) ([]string, [][]string, []columnAlignment) {
	headers := []string{"Title", "Published", "Markdown", "HTML"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight}

	rows := make([][]string, 0, len(list))
	for _, art := range list {
		rows = append(rows, []string{
			art.Title,
			humanize.RelTime(art.PublishedAt, now, "ago", "from now"),
			humanize.Bytes(uint64(len(art.Markdown))),
			humanize.Bytes(uint64(len(art.HTML))),
		})
	}
	return headers, rows, aligns
}
