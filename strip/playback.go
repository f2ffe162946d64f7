package strip

import (
	"context"
	"fmt"
	"sync"
)

// PlaybackState is the transport state of a PlaybackController.
type PlaybackState int

const (
	Stopped PlaybackState = iota
	Playing
)

func (s PlaybackState) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// PlaybackController feeds at most one looping source into the graph.
type PlaybackController struct {
	graph   *SignalGraph
	backend Backend

	mu     sync.Mutex
	buffer *Buffer
	active *sourceVoice
}

// NewPlaybackController binds a controller to graph. backend may be nil
// when the caller drives rendering directly.
func NewPlaybackController(graph *SignalGraph, backend Backend) *PlaybackController {
	return &PlaybackController{graph: graph, backend: backend}
}

// Start begins looping the assigned buffer. It does nothing when no buffer
// is assigned or playback is already running. A suspended backend is
// resumed first; ctx bounds that wait.
func (p *PlaybackController) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buffer == nil || p.active != nil {
		return nil
	}
	if p.backend != nil && p.backend.Suspended() {
		if err := p.backend.Resume(ctx); err != nil {
			return fmt.Errorf("resume backend: %w", err)
		}
	}
	v := newSourceVoice(p.buffer, true)
	p.graph.setSource(v)
	p.active = v
	return nil
}

// Stop releases the active source. Stopping a stopped controller is a
// no-op.
func (p *PlaybackController) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *PlaybackController) stopLocked() {
	if p.active == nil {
		return
	}
	p.graph.setSource(nil)
	p.active = nil
}

// SetActiveSource assigns buf. While playing, the running source is
// replaced in a single swap so the next rendered quantum already reads buf.
// A nil buf while playing stops playback.
func (p *PlaybackController) SetActiveSource(buf *Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffer = buf
	if p.active == nil {
		return
	}
	if buf == nil {
		p.stopLocked()
		return
	}
	v := newSourceVoice(buf, true)
	p.graph.setSource(v)
	p.active = v
}

// ActiveSource returns the assigned buffer.
func (p *PlaybackController) ActiveSource() *Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer
}

// State returns Playing or Stopped.
func (p *PlaybackController) State() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		return Playing
	}
	return Stopped
}

// Preview plays buf once, mixed into the input alongside the looping
// source. A new preview replaces one still sounding.
func (p *PlaybackController) Preview(buf *Buffer) {
	if buf == nil {
		return
	}
	p.graph.setPreview(newSourceVoice(buf, false))
}
