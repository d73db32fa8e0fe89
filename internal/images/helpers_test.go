// ABOUTME: Shared fixtures for image service tests
// ABOUTME: Encodes synthetic PNGs and provides counting fetchers

package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

// countingFetcher serves fixed bytes per source and counts calls.
type countingFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls map[string]int
	total atomic.Int32
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{data: make(map[string][]byte), calls: make(map[string]int)}
}

func (f *countingFetcher) serve(src string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[src] = data
}

func (f *countingFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	f.total.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[src]++
	data, ok := f.data[src]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return data, nil
}

func (f *countingFetcher) callsFor(src string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[src]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BackoffBase = time.Millisecond
	cfg.FetchTimeout = 500 * time.Millisecond
	return cfg
}
