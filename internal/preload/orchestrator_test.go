// ABOUTME: Tests for the preload orchestrator schedule
// ABOUTME: Uses a recording warmer and a manual idle scheduler

package preload

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/nurture-hub/internal/images"
	"github.com/2389/nurture-hub/internal/store"
)

type recordingWarmer struct {
	mu       sync.Mutex
	batches  [][]string
	cleanups int
	block    chan struct{}
}

func (w *recordingWarmer) PreloadImages(ctx context.Context, srcs []string) images.PreloadReport {
	w.mu.Lock()
	w.batches = append(w.batches, srcs)
	block := w.block
	n := len(w.batches)
	w.mu.Unlock()

	// Only the secondary batch blocks
	if block != nil && n > 1 {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}
	return images.PreloadReport{Total: len(srcs)}
}

func (w *recordingWarmer) CleanCache(ctx context.Context) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cleanups++
	return 0
}

func (w *recordingWarmer) snapshot() ([][]string, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]string(nil), w.batches...), w.cleanups
}

type manualScheduler struct {
	idle chan struct{}
}

func (m *manualScheduler) WaitIdle(ctx context.Context) error {
	select {
	case <-m.idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestStart_CriticalBeforeReturnSecondaryWhenIdle(t *testing.T) {
	w := &recordingWarmer{}
	sched := &manualScheduler{idle: make(chan struct{})}
	o := New(w, Config{
		Critical:  []string{"/images/mom-and-baby.jpg", "/images/pregnancy.jpg"},
		Secondary: []string{"/images/nursery.jpg"},
	}, sched, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		o.Wait()
	}()

	o.Start(ctx)

	batches, _ := w.snapshot()
	require.Len(t, batches, 1, "only the critical batch runs before idle")
	assert.Equal(t, []string{"/images/mom-and-baby.jpg", "/images/pregnancy.jpg"}, batches[0])

	close(sched.idle)

	assert.Eventually(t, func() bool {
		b, _ := w.snapshot()
		return len(b) == 2
	}, time.Second, 5*time.Millisecond)
	batches, _ = w.snapshot()
	assert.Equal(t, []string{"/images/nursery.jpg"}, batches[1])
}

func TestStart_CleanupRunsImmediatelyAndPeriodically(t *testing.T) {
	w := &recordingWarmer{}
	o := New(w, Config{CleanupInterval: 10 * time.Millisecond}, DelayScheduler{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)

	assert.Eventually(t, func() bool {
		_, n := w.snapshot()
		return n >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	o.Wait()
}

func TestStart_OnlyOnce(t *testing.T) {
	w := &recordingWarmer{}
	o := New(w, Config{Critical: []string{"/a.jpg"}, CleanupInterval: time.Hour}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)
	o.Start(ctx)
	o.Start(ctx)

	cancel()
	o.Wait()

	batches, cleanups := w.snapshot()
	assert.Len(t, batches, 1)
	assert.Equal(t, 1, cleanups)
}

func TestStart_SecondaryTimeoutOnlyStopsWaiting(t *testing.T) {
	w := &recordingWarmer{block: make(chan struct{})}
	o := New(w, Config{
		Critical:         []string{"/a.jpg"},
		Secondary:        []string{"/b.jpg"},
		SecondaryTimeout: 20 * time.Millisecond,
		CleanupInterval:  time.Hour,
	}, DelayScheduler{Delay: time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.Start(ctx)

	assert.Eventually(t, func() bool {
		b, _ := w.snapshot()
		return len(b) == 2
	}, time.Second, 5*time.Millisecond)

	// Well past the timeout the batch is still running on the live context
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, ctx.Err())

	done := make(chan struct{})
	go func() {
		cancel()
		o.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not stop")
	}

	batches, _ := w.snapshot()
	assert.Len(t, batches, 2)
}

func TestStart_SlowSecondaryStillCached(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	data := tinyPNG(t)
	backend := store.NewMemoryStore()
	fetcher := images.FetcherFunc(func(ctx context.Context, src string) ([]byte, error) {
		select {
		case <-time.After(150 * time.Millisecond):
			return data, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	cfg := images.DefaultConfig()
	cfg.BackoffBase = time.Millisecond
	svc := images.NewService(backend, fetcher, cfg)

	o := New(svc, Config{
		Secondary:        []string{"/images/nursery.jpg"},
		SecondaryTimeout: 50 * time.Millisecond,
		CleanupInterval:  time.Hour,
	}, DelayScheduler{Delay: time.Millisecond}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)

	assert.Eventually(t, func() bool {
		return len(svc.Entries(context.Background())) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	o.Wait()

	assert.Contains(t, buf.String(), "secondary image preload timed out")
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStart_CancelledBeforeIdleSkipsSecondary(t *testing.T) {
	w := &recordingWarmer{}
	sched := &manualScheduler{idle: make(chan struct{})}
	o := New(w, Config{Secondary: []string{"/b.jpg"}, CleanupInterval: time.Hour}, sched, nil)

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)
	cancel()
	o.Wait()

	batches, _ := w.snapshot()
	assert.Empty(t, batches)
}

func TestDelayScheduler(t *testing.T) {
	start := time.Now()
	require.NoError(t, DelayScheduler{Delay: 10 * time.Millisecond}.WaitIdle(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, DelayScheduler{Delay: time.Hour}.WaitIdle(ctx))
}

func TestOrchestrator_WithImageService(t *testing.T) {
	backend := store.NewMemoryStore()
	fetcher := images.FetcherFunc(func(ctx context.Context, src string) ([]byte, error) {
		return nil, context.DeadlineExceeded
	})
	cfg := images.DefaultConfig()
	cfg.BackoffBase = time.Millisecond
	svc := images.NewService(backend, fetcher, cfg)

	o := New(svc, Config{Critical: []string{"/placeholder.svg"}, CleanupInterval: time.Hour}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)
	cancel()
	o.Wait()

	// Failures are logged, never surfaced, and nothing is cached
	assert.Empty(t, svc.Entries(context.Background()))
}
