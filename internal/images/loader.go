// ABOUTME: Progressive loading helper for presentational image components
// ABOUTME: Emits a placeholder frame then the resolved frame, eagerly or once visible

package images

import (
	"context"
	"sync"
)

// Resolver is the narrow interface presentational components depend on.
type Resolver interface {
	Resolve(ctx context.Context, src string, opts Options) Metadata
}

// Strategy selects when resolution starts.
type Strategy int

const (
	// Eager resolves as soon as Run is called.
	Eager Strategy = iota
	// Lazy waits for Visible before resolving.
	Lazy
)

// Phase is the rendering phase a Frame represents.
type Phase int

const (
	PhasePending Phase = iota
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Frame is one state the component should render.
type Frame struct {
	Phase    Phase
	Metadata Metadata
}

// Loader drives one image element from placeholder to final source.
type Loader struct {
	resolver Resolver
	src      string
	opts     Options
	strategy Strategy
	fallback string

	visible     chan struct{}
	visibleOnce sync.Once
}

// NewLoader creates a loader. fallback is shown while pending.
func NewLoader(r Resolver, src string, opts Options, strategy Strategy, fallback string) *Loader {
	if fallback == "" {
		fallback = DefaultPlaceholderPath
	}
	return &Loader{
		resolver: r,
		src:      src,
		opts:     opts,
		strategy: strategy,
		fallback: fallback,
		visible:  make(chan struct{}),
	}
}

// Visible signals that the element is near the viewport. Safe to call repeatedly.
func (l *Loader) Visible() {
	l.visibleOnce.Do(func() { close(l.visible) })
}

// Run emits a pending frame immediately, then a ready or failed frame once the
// source resolves. The channel is closed afterwards, or when ctx ends first.
func (l *Loader) Run(ctx context.Context) <-chan Frame {
	frames := make(chan Frame, 2)

	go func() {
		defer close(frames)

		frames <- Frame{
			Phase: PhasePending,
			Metadata: Metadata{
				Src:    l.fallback,
				Width:  l.opts.Width,
				Height: l.opts.Height,
			},
		}

		if l.src == "" {
			return
		}

		if l.strategy == Lazy {
			select {
			case <-l.visible:
			case <-ctx.Done():
				return
			}
		}

		meta := l.resolver.Resolve(ctx, l.src, l.opts)
		phase := PhaseReady
		if meta.Fallback {
			phase = PhaseFailed
		}

		select {
		case frames <- Frame{Phase: phase, Metadata: meta}:
		case <-ctx.Done():
		}
	}()

	return frames
}
