package strip

import (
	"context"
	"fmt"
	"sync"
)

// Renderer is implemented by the graph and called by a Backend from its
// render context.
type Renderer interface {
	Render(left, right []float64)
}

// Backend is the host audio device (or an offline stand-in).
type Backend interface {
	SampleRate() int
	// Open starts pulling audio from r. It fails when no device is
	// available.
	Open(r Renderer) error
	Suspended() bool
	Resume(ctx context.Context) error
	Suspend() error
	Close() error
}

// OfflineBackend is a manually clocked Backend. Nothing is rendered until
// Pull is called, which makes it suitable for tests and file rendering.
type OfflineBackend struct {
	sampleRate int

	mu        sync.Mutex
	renderer  Renderer
	suspended bool
	closed    bool
	frames    int64
}

// NewOfflineBackend returns a running offline backend.
func NewOfflineBackend(sampleRate int) *OfflineBackend {
	return &OfflineBackend{sampleRate: sampleRate}
}

func (b *OfflineBackend) SampleRate() int { return b.sampleRate }

func (b *OfflineBackend) Open(r Renderer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBackendUnavailable
	}
	if b.sampleRate <= 0 {
		return fmt.Errorf("%w: offline backend has no sample rate", ErrBackendUnavailable)
	}
	b.renderer = r
	return nil
}

func (b *OfflineBackend) Suspended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suspended
}

func (b *OfflineBackend) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBackendUnavailable
	}
	b.suspended = false
	return nil
}

func (b *OfflineBackend) Suspend() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.suspended = true
	return nil
}

func (b *OfflineBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.renderer = nil
	return nil
}

// Pull renders frames of stereo output. A suspended, closed or unopened
// backend yields silence and does not advance its clock.
func (b *OfflineBackend) Pull(frames int) (left, right []float64) {
	left = make([]float64, frames)
	right = make([]float64, frames)
	b.PullInto(left, right)
	return left, right
}

// PullInto renders into caller-owned buffers of equal length.
func (b *OfflineBackend) PullInto(left, right []float64) {
	b.mu.Lock()
	r := b.renderer
	running := r != nil && !b.suspended && !b.closed
	if running {
		b.frames += int64(len(left))
	}
	b.mu.Unlock()
	if !running {
		clear(left)
		clear(right)
		return
	}
	r.Render(left, right)
}

// FramesRendered returns the offline clock in frames.
func (b *OfflineBackend) FramesRendered() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}
