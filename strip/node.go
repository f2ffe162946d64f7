package strip

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// renderQuantum is the block size in which the graph evaluates nodes.
// Per-quantum ("k-rate") parameters are updated once per quantum.
const renderQuantum = 128

// NodeKind tags the elementary operators of the channel.
type NodeKind int

const (
	NodeGain NodeKind = iota
	NodeSaturator
	NodeFilter
	NodeCompressor
	NodeLevelAnalyzer
)

func (k NodeKind) String() string {
	switch k {
	case NodeGain:
		return "gain"
	case NodeSaturator:
		return "saturator"
	case NodeFilter:
		return "filter"
	case NodeCompressor:
		return "compressor"
	case NodeLevelAnalyzer:
		return "level-analyzer"
	default:
		return "unknown"
	}
}

// ProcessingNode is an element of the fixed signal path.
type ProcessingNode interface {
	Kind() NodeKind
}

// stage is a node that transforms the stereo signal in place.
type stage interface {
	ProcessingNode
	process(left, right []float64)
}

// GainNode multiplies both channels by a linear gain ramped per sample.
type GainNode struct {
	gain *Param
}

func newGainNode(sampleRate, initial float64) *GainNode {
	return &GainNode{gain: newParam(sampleRate, initial, 0, 16)}
}

func (g *GainNode) Kind() NodeKind { return NodeGain }

// Gain exposes the node's linear gain parameter.
func (g *GainNode) Gain() *Param { return g.gain }

func (g *GainNode) process(left, right []float64) {
	for i := range left {
		v := g.gain.next()
		left[i] *= v
		right[i] *= v
	}
	g.gain.publish()
}

// Saturator is the preamp drive stage: a soft-clip waveshaper
// y = (1+k)x / (1+k|x|) with k = 10*amount. Amount 0 is transparent.
type Saturator struct {
	amount *Param
}

func newSaturator(sampleRate float64) *Saturator {
	return &Saturator{amount: newParam(sampleRate, 0, 0, 1)}
}

func (s *Saturator) Kind() NodeKind { return NodeSaturator }

// Amount exposes the drive parameter.
func (s *Saturator) Amount() *Param { return s.amount }

func (s *Saturator) process(left, right []float64) {
	k := 10 * s.amount.advance(len(left))
	s.amount.publish()
	if k == 0 {
		return
	}
	for i := range left {
		left[i] = softClip(left[i], k)
		right[i] = softClip(right[i], k)
	}
}

func softClip(x, k float64) float64 {
	x = core.Clamp(x, -1, 1)
	return (1 + k) * x / (1 + k*math.Abs(x))
}

// LevelAnalyzer keeps the most recent samples of a mono tap. The render
// path writes, any goroutine may read; samples are stored as atomic words
// so a reader never sees a torn value.
type LevelAnalyzer struct {
	buf []atomic.Uint64
	pos atomic.Uint64
}

func newLevelAnalyzer(size int) *LevelAnalyzer {
	if size < 1 {
		size = 1
	}
	return &LevelAnalyzer{buf: make([]atomic.Uint64, size)}
}

func (a *LevelAnalyzer) Kind() NodeKind { return NodeLevelAnalyzer }

// Size returns the analysis window length in samples.
func (a *LevelAnalyzer) Size() int { return len(a.buf) }

func (a *LevelAnalyzer) write(block []float64) {
	n := uint64(len(a.buf))
	p := a.pos.Load()
	for _, x := range block {
		a.buf[p%n].Store(math.Float64bits(x))
		p++
	}
	a.pos.Store(p)
}

// TimeDomain copies the analysis window into dst, oldest sample first, and
// returns the filled slice.
func (a *LevelAnalyzer) TimeDomain(dst []float64) []float64 {
	n := len(a.buf)
	dst = core.EnsureLen(dst, n)
	start := a.pos.Load()
	for i := 0; i < n; i++ {
		dst[i] = math.Float64frombits(a.buf[(start+uint64(i))%uint64(n)].Load())
	}
	return dst
}

// RMS returns the root-mean-square of the analysis window.
func (a *LevelAnalyzer) RMS() float64 {
	var sum float64
	for i := range a.buf {
		v := math.Float64frombits(a.buf[i].Load())
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(a.buf)))
}
