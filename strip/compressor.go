package strip

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/effects/dynamics"
)

const (
	compressorKneeDB = 6.0

	// Pass-through settings used while the compressor is switched out.
	bypassThresholdDB = 20.0
	bypassRatio       = 1.0
)

// CompressorNode wraps one algo-dsp soft-knee compressor per channel. The
// threshold, ratio, attack and release are ramped and applied once per
// render quantum; the node never leaves the signal path.
type CompressorNode struct {
	threshold *Param
	ratio     *Param
	attack    *Param // ms
	release   *Param // ms

	ch      [2]*dynamics.Compressor
	applied [4]float64

	reduction atomic.Uint64 // dB, >= 0
}

func newCompressorNode(sampleRate float64) (*CompressorNode, error) {
	n := &CompressorNode{
		threshold: newParam(sampleRate, -24, -100, bypassThresholdDB),
		ratio:     newParam(sampleRate, 12, 1, 100),
		attack:    newParam(sampleRate, 3, 0.1, 1000),
		release:   newParam(sampleRate, 250, 1, 5000),
	}
	for i := range n.ch {
		c, err := dynamics.NewCompressor(sampleRate)
		if err != nil {
			return nil, err
		}
		if err := c.SetKnee(compressorKneeDB); err != nil {
			return nil, err
		}
		if err := c.SetMakeupGain(0); err != nil {
			return nil, err
		}
		n.ch[i] = c
	}
	n.apply([4]float64{n.threshold.Value(), n.ratio.Value(), n.attack.Value(), n.release.Value()})
	return n, nil
}

func (n *CompressorNode) Kind() NodeKind { return NodeCompressor }

// Threshold, Ratio, Attack and Release expose the ramped settings.
func (n *CompressorNode) Threshold() *Param { return n.threshold }
func (n *CompressorNode) Ratio() *Param     { return n.ratio }
func (n *CompressorNode) Attack() *Param    { return n.attack }
func (n *CompressorNode) Release() *Param   { return n.release }

// ReductionDB returns the largest gain reduction applied during the last
// rendered quantum, as a non-negative number of dB.
func (n *CompressorNode) ReductionDB() float64 {
	return math.Float64frombits(n.reduction.Load())
}

func (n *CompressorNode) process(left, right []float64) {
	size := len(left)
	settings := [4]float64{
		n.threshold.advance(size),
		n.ratio.advance(size),
		n.attack.advance(size),
		n.release.advance(size),
	}
	n.threshold.publish()
	n.ratio.publish()
	n.attack.publish()
	n.release.publish()
	if settings != n.applied {
		n.apply(settings)
	}

	minGain := 1.0
	for i, buf := range [2][]float64{left, right} {
		c := n.ch[i]
		c.ResetMetrics()
		c.ProcessInPlace(buf)
		if g := c.GetMetrics().GainReduction; g < minGain {
			minGain = g
		}
	}
	reduction := 0.0
	if minGain > 0 && minGain < 1 {
		reduction = -core.LinearToDB(minGain)
	}
	n.reduction.Store(math.Float64bits(reduction))
}

// apply pushes settings into the kernels. Values are already inside the
// kernel's accepted ranges, so the setter errors cannot fire.
func (n *CompressorNode) apply(s [4]float64) {
	for _, c := range n.ch {
		_ = c.SetThreshold(s[0])
		_ = c.SetRatio(s[1])
		_ = c.SetAttack(s[2])
		_ = c.SetRelease(s[3])
	}
	n.applied = s
}
