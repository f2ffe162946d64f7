package strip

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Buffer is decoded PCM audio, one slice per channel (mono or stereo).
// Buffers are immutable once handed to the engine.
type Buffer struct {
	SampleRate int
	Channels   [][]float64
}

// NewBuffer validates and wraps channel data.
func NewBuffer(sampleRate int, channels ...[]float64) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("buffer sample rate must be positive: %d", sampleRate)
	}
	if len(channels) < 1 || len(channels) > 2 {
		return nil, fmt.Errorf("buffer needs 1 or 2 channels, got %d", len(channels))
	}
	if len(channels) == 2 && len(channels[0]) != len(channels[1]) {
		return nil, fmt.Errorf("channel length mismatch: %d vs %d", len(channels[0]), len(channels[1]))
	}
	return &Buffer{SampleRate: sampleRate, Channels: channels}, nil
}

// Frames returns the length in sample frames.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// NumChannels returns 1 or 2.
func (b *Buffer) NumChannels() int {
	if b == nil {
		return 0
	}
	return len(b.Channels)
}

// Duration returns the playback length at the buffer's sample rate.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// sourceVoice reads a buffer into the graph input. After publication only
// the render path touches pos.
type sourceVoice struct {
	buf  *Buffer
	loop bool
	pos  int
	done atomic.Bool
}

func newSourceVoice(buf *Buffer, loop bool) *sourceVoice {
	return &sourceVoice{buf: buf, loop: loop}
}

func (v *sourceVoice) mixInto(left, right []float64) {
	if v.done.Load() {
		return
	}
	frames := v.buf.Frames()
	if frames == 0 {
		v.done.Store(true)
		return
	}
	l := v.buf.Channels[0]
	r := l
	if len(v.buf.Channels) > 1 {
		r = v.buf.Channels[1]
	}
	for i := range left {
		if v.pos >= frames {
			if !v.loop {
				v.done.Store(true)
				return
			}
			v.pos = 0
		}
		left[i] += l[v.pos]
		right[i] += r[v.pos]
		v.pos++
	}
}

// finished reports whether a one-shot voice has played out.
func (v *sourceVoice) finished() bool { return v.done.Load() }
