package strip

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// FilterKind selects the biquad response of a FilterNode.
type FilterKind int32

const (
	FilterHighpass FilterKind = iota
	FilterLowpass
	FilterLowShelf
	FilterHighShelf
	FilterPeaking
)

func (k FilterKind) String() string {
	switch k {
	case FilterHighpass:
		return "highpass"
	case FilterLowpass:
		return "lowpass"
	case FilterLowShelf:
		return "lowshelf"
	case FilterHighShelf:
		return "highshelf"
	case FilterPeaking:
		return "peaking"
	default:
		return "unknown"
	}
}

const (
	minFilterHz    = 1.0
	maxFilterRatio = 0.49 // of the sample rate
	passQ          = 1 / math.Sqrt2
	shelfQ         = 1 / math.Sqrt2 // shelf slope S = 1
)

// FilterNode is a stereo biquad whose frequency, gain and Q are ramped and
// applied once per render quantum. The kind can be switched while running;
// the delay-line state is kept so the switch does not click.
type FilterNode struct {
	sampleRate float64
	kind       atomic.Int32

	freq *Param
	gain *Param
	q    *Param

	sections [2]biquad.Section
	applied  filterSettings
}

type filterSettings struct {
	kind FilterKind
	freq float64
	gain float64
	q    float64
}

func newFilterNode(sampleRate float64, kind FilterKind, freq, gainDB, q float64) *FilterNode {
	f := &FilterNode{
		sampleRate: sampleRate,
		freq:       newParam(sampleRate, freq, minFilterHz, maxFilterRatio*sampleRate),
		gain:       newParam(sampleRate, gainDB, -40, 40),
		q:          newParam(sampleRate, q, 0.0001, 1000),
	}
	f.kind.Store(int32(kind))
	f.configure(filterSettings{kind: kind, freq: f.freq.Value(), gain: f.gain.Value(), q: f.q.Value()})
	return f
}

func (f *FilterNode) Kind() NodeKind { return NodeFilter }

// FilterKind returns the currently selected response.
func (f *FilterNode) FilterKind() FilterKind { return FilterKind(f.kind.Load()) }

func (f *FilterNode) setFilterKind(k FilterKind) { f.kind.Store(int32(k)) }

// Frequency, Gain and Q expose the ramped settings.
func (f *FilterNode) Frequency() *Param { return f.freq }
func (f *FilterNode) Gain() *Param      { return f.gain }
func (f *FilterNode) Q() *Param         { return f.q }

func (f *FilterNode) process(left, right []float64) {
	n := len(left)
	s := filterSettings{
		kind: f.FilterKind(),
		freq: f.freq.advance(n),
		gain: f.gain.advance(n),
		q:    f.q.advance(n),
	}
	f.freq.publish()
	f.gain.publish()
	f.q.publish()
	if s != f.applied {
		f.configure(s)
	}
	f.sections[0].ProcessBlock(left)
	f.sections[1].ProcessBlock(right)
}

func (f *FilterNode) configure(s filterSettings) {
	c := designFilter(s, f.sampleRate)
	f.sections[0].Coefficients = c
	f.sections[1].Coefficients = c
	f.applied = s
}

// ResponseDB returns the magnitude response in dB at hz for the settings
// the render path last published.
func (f *FilterNode) ResponseDB(hz float64) float64 {
	s := filterSettings{
		kind: f.FilterKind(),
		freq: f.freq.Value(),
		gain: f.gain.Value(),
		q:    f.q.Value(),
	}
	c := designFilter(s, f.sampleRate)
	return c.MagnitudeDB(hz, f.sampleRate)
}

func designFilter(s filterSettings, sampleRate float64) biquad.Coefficients {
	freq := math.Min(math.Max(s.freq, minFilterHz), maxFilterRatio*sampleRate)
	switch s.kind {
	case FilterHighpass:
		return design.Highpass(freq, passQ, sampleRate)
	case FilterLowpass:
		return design.Lowpass(freq, passQ, sampleRate)
	case FilterLowShelf:
		return design.LowShelf(freq, s.gain, shelfQ, sampleRate)
	case FilterHighShelf:
		return design.HighShelf(freq, s.gain, shelfQ, sampleRate)
	default:
		return design.Peak(freq, s.gain, s.q, sampleRate)
	}
}
