package strip

import (
	"math"
	"sync/atomic"
	"time"
)

// settleTimeConstants is how many time constants fit in a smoothing window.
// After five time constants an exponential ramp is within 1% of its target.
const settleTimeConstants = 5

const (
	smoothFast = 50 * time.Millisecond
	smoothEQ   = 100 * time.Millisecond
	gateAttack = 5 * time.Millisecond
)

type rampTarget struct {
	value        float64
	timeConstant float64 // seconds, <= 0 jumps
}

// Param is a scheduled-ramp parameter shared between the control path and
// the render path.
//
// The control path only publishes targets. The render path owns the
// current value, moves it towards the most recent target and publishes it
// back, so readers on either side see whole float64 values and never a
// jump that was not scheduled.
type Param struct {
	sampleRate float64
	min, max   float64

	target  atomic.Pointer[rampTarget]
	current atomic.Uint64

	// render side
	value  float64
	seen   *rampTarget
	retain float64
}

func newParam(sampleRate, initial, min, max float64) *Param {
	p := &Param{sampleRate: sampleRate, min: min, max: max}
	initial = p.limit(initial)
	t := &rampTarget{value: initial}
	p.target.Store(t)
	p.seen = t
	p.value = initial
	p.current.Store(math.Float64bits(initial))
	return p
}

func (p *Param) limit(v float64) float64 {
	if v < p.min {
		return p.min
	}
	if v > p.max {
		return p.max
	}
	return v
}

// SetTargetAtTime starts an exponential approach to target with the given
// time constant in seconds, beginning at the next rendered sample. Values
// outside the parameter's limits saturate at the limit. NaN is ignored.
func (p *Param) SetTargetAtTime(target, timeConstant float64) {
	if math.IsNaN(target) {
		return
	}
	p.target.Store(&rampTarget{value: p.limit(target), timeConstant: timeConstant})
}

// RampTo schedules a ramp that settles on target within window.
func (p *Param) RampTo(target float64, window time.Duration) {
	p.SetTargetAtTime(target, window.Seconds()/settleTimeConstants)
}

// Target returns the most recently scheduled target.
func (p *Param) Target() float64 {
	return p.target.Load().value
}

// Value returns the value last published by the render path.
func (p *Param) Value() float64 {
	return math.Float64frombits(p.current.Load())
}

func (p *Param) sync() {
	t := p.target.Load()
	if t == p.seen {
		return
	}
	p.seen = t
	if t.timeConstant <= 0 || p.sampleRate <= 0 {
		p.retain = 0
		return
	}
	p.retain = math.Exp(-1 / (t.timeConstant * p.sampleRate))
}

// next advances the ramp by one sample.
func (p *Param) next() float64 {
	p.sync()
	target := p.seen.value
	if p.value != target {
		p.value = target + (p.value-target)*p.retain
		if math.Abs(p.value-target) <= 1e-9*math.Max(1, math.Abs(target)) {
			p.value = target
		}
	}
	return p.value
}

// advance moves the ramp n samples at once and returns the new value. Used
// for parameters that are evaluated once per render quantum.
func (p *Param) advance(n int) float64 {
	p.sync()
	target := p.seen.value
	if p.value != target && n > 0 {
		p.value = target + (p.value-target)*math.Pow(p.retain, float64(n))
		if math.Abs(p.value-target) <= 1e-9*math.Max(1, math.Abs(target)) {
			p.value = target
		}
	}
	return p.value
}

func (p *Param) publish() {
	p.current.Store(math.Float64bits(p.value))
}
