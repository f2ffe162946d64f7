package strip

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-approx"
)

const ln10 = 2.302585092994046

// levelEpsilon keeps dB conversions of silence finite.
const levelEpsilon = 1e-5

// EnvelopeState is the gate's view of the signal after its last cycle.
type EnvelopeState struct {
	LevelDB      float64
	Gain         float64
	Open         bool
	TimeConstant float64 // seconds
	Bypassed     bool
}

// GateController is the control-rate envelope follower that drives the
// GateGain node. It is the only writer of that parameter.
type GateController struct {
	graph   *SignalGraph
	scratch []float64

	envelope  atomic.Pointer[EnvelopeState]
	reduction atomic.Uint64
}

// NewGateController creates a controller for graph.
func NewGateController(graph *SignalGraph) *GateController {
	c := &GateController{graph: graph}
	c.envelope.Store(&EnvelopeState{LevelDB: toDB(0), Gain: 1, Open: true, Bypassed: true})
	return c
}

// Tick runs one gate cycle: measure the pre-gate level, pick the open or
// closed target and schedule it on the gate gain. Ticks must not overlap.
func (c *GateController) Tick() {
	c.scratch = c.graph.GateTap().TimeDomain(c.scratch)
	levelDB := toDB(rms(c.scratch))
	gain := c.graph.gateGainParam()

	sw := c.graph.Switches()
	if !(sw.Dynamics && sw.Expander) {
		tc := smoothFast.Seconds() / settleTimeConstants
		gain.SetTargetAtTime(1, tc)
		c.reduction.Store(math.Float64bits(0))
		c.envelope.Store(&EnvelopeState{LevelDB: levelDB, Gain: gain.Value(), Open: true, TimeConstant: tc, Bypassed: true})
		return
	}

	cfg := c.graph.GateConfig()
	open := levelDB > cfg.ThresholdDB
	target := 1.0
	window := gateAttack
	if !open {
		target = approx.FastExp(-cfg.RangeDB / 20 * ln10)
		window = time.Duration(cfg.ReleaseMs * float64(time.Millisecond))
	}
	tc := window.Seconds() / settleTimeConstants
	gain.SetTargetAtTime(target, tc)

	current := gain.Value()
	c.reduction.Store(math.Float64bits(-toDB(current)))
	c.envelope.Store(&EnvelopeState{LevelDB: levelDB, Gain: current, Open: open, TimeConstant: tc})
}

// GainReductionDB returns the gate attenuation in dB as of the last tick,
// 0 while the gate is bypassed.
func (c *GateController) GainReductionDB() float64 {
	return math.Float64frombits(c.reduction.Load())
}

// Envelope returns the state computed by the last tick.
func (c *GateController) Envelope() EnvelopeState {
	return *c.envelope.Load()
}

func toDB(linear float64) float64 {
	return 20 * math.Log10(linear+levelEpsilon)
}

func rms(buf []float64) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, v := range buf {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(buf)))
}
