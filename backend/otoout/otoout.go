// Package otoout plays the channel strip through the host sound device
// using oto.
package otoout

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/hajimehoshi/oto/v2"

	"github.com/cwbudde/algo-strip/strip"
)

const (
	channelCount   = 2
	bytesPerSample = 4
	frameBytes     = channelCount * bytesPerSample
)

// Backend is a strip.Backend on top of an oto context. Only one oto context
// may exist per process, so a program should create one Backend.
type Backend struct {
	sampleRate int

	mu        sync.Mutex
	ctx       *oto.Context
	player    oto.Player
	suspended bool
	closed    bool
}

// New returns a backend that will open the device at sampleRate.
func New(sampleRate int) *Backend {
	return &Backend{sampleRate: sampleRate}
}

func (b *Backend) SampleRate() int { return b.sampleRate }

// Open creates the device context, waits for it to become ready and starts
// pulling float32 stereo from r.
func (b *Backend) Open(r strip.Renderer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("%w: backend closed", strip.ErrBackendUnavailable)
	}
	if b.player != nil {
		return nil
	}
	ctx, ready, err := oto.NewContext(b.sampleRate, channelCount, oto.FormatFloat32LE)
	if err != nil {
		return fmt.Errorf("%w: %v", strip.ErrBackendUnavailable, err)
	}
	<-ready
	b.ctx = ctx
	b.player = ctx.NewPlayer(newStream(r))
	b.player.Play()
	return nil
}

func (b *Backend) Suspended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.suspended
}

// Resume restarts a suspended device.
func (b *Backend) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil || b.closed {
		return fmt.Errorf("%w: backend not open", strip.ErrBackendUnavailable)
	}
	if !b.suspended {
		return nil
	}
	if err := b.ctx.Resume(); err != nil {
		return fmt.Errorf("%w: %v", strip.ErrBackendUnavailable, err)
	}
	b.suspended = false
	return nil
}

// Suspend pauses the device without tearing down the graph.
func (b *Backend) Suspend() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil || b.suspended {
		return nil
	}
	if err := b.ctx.Suspend(); err != nil {
		return err
	}
	b.suspended = true
	return nil
}

// Close stops playback. The oto context itself lives until the process
// exits.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.player == nil {
		return nil
	}
	err := b.player.Close()
	b.player = nil
	return err
}

// stream adapts a strip.Renderer to the io.Reader oto pulls from.
type stream struct {
	r           strip.Renderer
	left, right []float64
}

func newStream(r strip.Renderer) *stream {
	return &stream{r: r}
}

func (s *stream) Read(p []byte) (int, error) {
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}
	if cap(s.left) < frames {
		s.left = make([]float64, frames)
		s.right = make([]float64, frames)
	}
	left, right := s.left[:frames], s.right[:frames]
	s.r.Render(left, right)
	for i := 0; i < frames; i++ {
		o := i * frameBytes
		binary.LittleEndian.PutUint32(p[o:], math.Float32bits(float32(left[i])))
		binary.LittleEndian.PutUint32(p[o+bytesPerSample:], math.Float32bits(float32(right[i])))
	}
	return frames * frameBytes, nil
}
