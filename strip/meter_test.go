package strip

import (
	"math"
	"testing"
	"time"
)

func TestMeterReadsPostFaderRMS(t *testing.T) {
	g := newTestGraph(t)
	g.SetDynamics(DefaultState().Compressor, Switches{Dynamics: true, Compressor: false, Expander: false})
	g.setSource(newSourceVoice(sineBuffer(t, 1000, 0.5, time.Second), true))
	m := NewMeteringService(g, nil)

	render(g, 300*time.Millisecond)
	snap := m.Poll()
	want := 0.5 / math.Sqrt2
	if math.Abs(snap.LeftRMS-want) > 0.02 || math.Abs(snap.RightRMS-want) > 0.02 {
		t.Fatalf("meter rms: %+v want~%f", snap, want)
	}

	g.SetMasterVolume(0.5)
	render(g, 300*time.Millisecond)
	if got := m.Poll().LeftRMS; math.Abs(got-want/2) > 0.02 {
		t.Fatalf("meter is not post-fader: %f", got)
	}
}

func TestMeterHidesCompressorWhenSwitchedOut(t *testing.T) {
	g := newTestGraph(t)
	g.SetDynamics(CompressorConfig{Ratio: 10, ThresholdDB: -40, AttackMs: 1, ReleaseMs: 100},
		Switches{Dynamics: true, Compressor: true, Expander: false})
	g.setSource(newSourceVoice(sineBuffer(t, 1000, 0.9, time.Second), true))
	m := NewMeteringService(g, nil)

	render(g, 200*time.Millisecond)
	if got := m.Poll().CompressorGainReductionDB; got <= 0 {
		t.Fatalf("compressor reduction not metered: %f", got)
	}

	g.SetDynamics(CompressorConfig{Ratio: 10, ThresholdDB: -40, AttackMs: 1, ReleaseMs: 100},
		Switches{Dynamics: false, Compressor: true, Expander: false})
	if got := m.Poll().CompressorGainReductionDB; got != 0 {
		t.Fatalf("switched-out compressor metered %f dB", got)
	}
}

func TestMeterReportsGateReduction(t *testing.T) {
	g := newTestGraph(t)
	neutralDynamics(g)
	g.SetGate(GateConfig{ThresholdDB: -30, RangeDB: 24, ReleaseMs: 20})
	gate := NewGateController(g)
	m := NewMeteringService(g, gate)

	runGate(g, gate, 200*time.Millisecond)
	snap := m.Poll()
	if math.Abs(snap.GateGainReductionDB-24) > 0.5 {
		t.Fatalf("gate reduction: %+v", snap)
	}
	if snap.LeftRMS != 0 {
		t.Fatalf("silent channel metered %f", snap.LeftRMS)
	}
}
