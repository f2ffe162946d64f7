package strip

import (
	"math"
	"testing"
	"time"
)

// runGate renders d in 20 ms control periods and ticks the gate after each.
func runGate(g *SignalGraph, gate *GateController, d time.Duration) {
	const period = 20 * time.Millisecond
	for elapsed := time.Duration(0); elapsed < d; elapsed += period {
		render(g, period)
		gate.Tick()
	}
}

func TestGateOpensAboveThreshold(t *testing.T) {
	g := newTestGraph(t)
	neutralDynamics(g)
	g.SetGate(GateConfig{ThresholdDB: -40, RangeDB: 30, ReleaseMs: 200})
	g.setSource(newSourceVoice(sineBuffer(t, 440, 0.5, time.Second), true))
	gate := NewGateController(g)

	runGate(g, gate, 300*time.Millisecond)
	env := gate.Envelope()
	if !env.Open || env.Bypassed {
		t.Fatalf("gate should be open: %+v", env)
	}
	if got := env.TimeConstant; math.Abs(got-0.001) > 1e-9 {
		t.Fatalf("attack time constant: %f", got)
	}
	if got := gate.GainReductionDB(); math.Abs(got) > 0.05 {
		t.Fatalf("open gate reduction: %f dB", got)
	}
}

func TestGateClosedReachesRangeDepth(t *testing.T) {
	g := newTestGraph(t)
	neutralDynamics(g)
	g.SetGate(GateConfig{ThresholdDB: -20, RangeDB: 20, ReleaseMs: 500})
	gate := NewGateController(g)

	runGate(g, gate, 600*time.Millisecond)
	env := gate.Envelope()
	if env.Open {
		t.Fatalf("silent input left the gate open: %+v", env)
	}
	if got := gate.GainReductionDB(); math.Abs(got-20) > 0.5 {
		t.Fatalf("closed gate reduction after 600 ms: got=%f want~20", got)
	}
}

func TestGateReleaseIsGradual(t *testing.T) {
	g := newTestGraph(t)
	neutralDynamics(g)
	g.SetGate(GateConfig{ThresholdDB: -20, RangeDB: 40, ReleaseMs: 1000})
	gate := NewGateController(g)

	runGate(g, gate, 100*time.Millisecond)
	mid := gate.GainReductionDB()
	if mid <= 0 || mid > 20 {
		t.Fatalf("reduction after 100 ms of a 1 s release: %f dB", mid)
	}
	runGate(g, gate, 400*time.Millisecond)
	if later := gate.GainReductionDB(); later <= mid {
		t.Fatalf("reduction did not grow: %f -> %f", mid, later)
	}
}

func TestGateBypassedWithoutExpander(t *testing.T) {
	g := newTestGraph(t)
	g.SetDynamics(DefaultState().Compressor, Switches{Dynamics: true, Compressor: false, Expander: false})
	g.SetGate(GateConfig{ThresholdDB: 0, RangeDB: 60, ReleaseMs: 10})
	gate := NewGateController(g)

	runGate(g, gate, 200*time.Millisecond)
	if got := gate.GainReductionDB(); got != 0 {
		t.Fatalf("bypassed gate reports %f dB", got)
	}
	if !gate.Envelope().Bypassed {
		t.Fatalf("envelope not marked bypassed")
	}
	if got := g.gateGainParam().Value(); math.Abs(got-1) > 1e-3 {
		t.Fatalf("bypassed gate gain: %f", got)
	}
}

func TestGateBypassReleasesClosedGate(t *testing.T) {
	g := newTestGraph(t)
	neutralDynamics(g)
	g.SetGate(GateConfig{ThresholdDB: -20, RangeDB: 30, ReleaseMs: 50})
	gate := NewGateController(g)
	runGate(g, gate, 300*time.Millisecond)
	if gate.GainReductionDB() < 25 {
		t.Fatalf("gate did not close: %f", gate.GainReductionDB())
	}

	g.SetDynamics(DefaultState().Compressor, Switches{Dynamics: false, Compressor: true, Expander: true})
	runGate(g, gate, 200*time.Millisecond)
	if got := g.gateGainParam().Value(); math.Abs(got-1) > 1e-3 {
		t.Fatalf("gain after bypass: %f", got)
	}
}

func TestToDBOfSilenceIsFinite(t *testing.T) {
	if got := toDB(0); math.IsInf(got, 0) || math.Abs(got+100) > 1e-9 {
		t.Fatalf("toDB(0): %f", got)
	}
}

func TestGateOpensWithinAttackTime(t *testing.T) {
	g := newTestGraph(t)
	neutralDynamics(g)
	g.SetGate(GateConfig{ThresholdDB: -20, RangeDB: 20, ReleaseMs: 500})
	gate := NewGateController(g)

	runGate(g, gate, 600*time.Millisecond)
	if got := g.gateGainParam().Value(); math.Abs(got-0.1) > 0.01 {
		t.Fatalf("gate not closed before onset: gain=%f", got)
	}

	g.setSource(newSourceVoice(sineBuffer(t, 440, 0.5, time.Second), true))
	render(g, 20*time.Millisecond)
	gate.Tick()
	if !gate.Envelope().Open {
		t.Fatalf("gate did not open on signal: %+v", gate.Envelope())
	}
	render(g, gateAttack)
	if got := g.gateGainParam().Value(); got < 0.99 {
		t.Fatalf("gain %v after %v, want ~1", got, gateAttack)
	}
}
