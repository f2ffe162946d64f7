package strip

import (
	"math"
	"testing"
	"time"
)

func runParam(p *Param, frames int) {
	for i := 0; i < frames; i++ {
		p.next()
	}
	p.publish()
}

func TestParamSettlesWithinWindow(t *testing.T) {
	p := newParam(testSampleRate, 0, -10, 10)
	p.RampTo(1, 50*time.Millisecond)
	if p.Value() != 0 {
		t.Fatalf("value moved before render: %f", p.Value())
	}
	runParam(p, framesFor(50*time.Millisecond))
	if got := p.Value(); math.Abs(got-1) > 0.01 {
		t.Fatalf("not settled after window: %f", got)
	}
	runParam(p, framesFor(200*time.Millisecond))
	if got := p.Value(); math.Abs(got-1) > 1e-6 {
		t.Fatalf("did not converge: %f", got)
	}
}

func TestParamIsMonotonic(t *testing.T) {
	p := newParam(testSampleRate, 0, 0, 1)
	p.RampTo(1, 20*time.Millisecond)
	prev := 0.0
	for i := 0; i < framesFor(40*time.Millisecond); i++ {
		v := p.next()
		if v < prev {
			t.Fatalf("ramp overshot backwards at %d: %f < %f", i, v, prev)
		}
		if v > 1 {
			t.Fatalf("ramp overshot target at %d: %f", i, v)
		}
		prev = v
	}
}

func TestParamRepeatedTargetIsIdempotent(t *testing.T) {
	p := newParam(testSampleRate, 0.25, 0, 1)
	p.RampTo(0.75, 10*time.Millisecond)
	runParam(p, framesFor(100*time.Millisecond))
	settled := p.Value()
	for i := 0; i < 5; i++ {
		p.RampTo(0.75, 10*time.Millisecond)
		runParam(p, renderQuantum)
	}
	if p.Value() != settled {
		t.Fatalf("repeated target moved the value: %f -> %f", settled, p.Value())
	}
}

func TestParamAdvanceMatchesPerSample(t *testing.T) {
	a := newParam(testSampleRate, 100, 1, 20000)
	b := newParam(testSampleRate, 100, 1, 20000)
	a.RampTo(1000, 50*time.Millisecond)
	b.RampTo(1000, 50*time.Millisecond)
	for q := 0; q < 10; q++ {
		a.advance(renderQuantum)
		for i := 0; i < renderQuantum; i++ {
			b.next()
		}
	}
	a.publish()
	b.publish()
	if math.Abs(a.Value()-b.Value()) > 1e-6*b.Value() {
		t.Fatalf("k-rate %f differs from a-rate %f", a.Value(), b.Value())
	}
}

func TestParamClampsAndIgnoresNaN(t *testing.T) {
	p := newParam(testSampleRate, 0.5, 0, 1)
	p.SetTargetAtTime(4, 0)
	if p.Target() != 1 {
		t.Fatalf("target not limited: %f", p.Target())
	}
	p.SetTargetAtTime(math.NaN(), 0)
	if p.Target() != 1 {
		t.Fatalf("NaN replaced target: %f", p.Target())
	}
	runParam(p, 1)
	if p.Value() != 1 {
		t.Fatalf("zero time constant should jump: %f", p.Value())
	}
}
