package strip

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

const (
	gateTapSize  = 256
	meterTapSize = 2048
)

// SignalGraph owns the fixed channel topology:
//
//	InputTrim → Saturator → HPF → LPF → Compressor → [gate tap] GateGain →
//	EQ HF → HMF → LMF → LF → OutputTrim → MasterFader → [L/R taps] → (+ UI cue) → sink
//
// Every setter schedules ramps; none of them touches per-sample state, so
// the render path can run concurrently with the control surface.
type SignalGraph struct {
	sampleRate float64

	inputTrim   *GainNode
	saturator   *Saturator
	hpf         *FilterNode
	lpf         *FilterNode
	compressor  *CompressorNode
	gateGain    *GainNode
	eq          [4]*FilterNode
	outputTrim  *GainNode
	masterFader *GainNode

	gateTap    *LevelAnalyzer
	leftTap    *LevelAnalyzer
	rightTap   *LevelAnalyzer
	chain      []stage
	mixScratch []float64

	source  atomic.Pointer[sourceVoice]
	preview atomic.Pointer[sourceVoice]
	cue     atomic.Pointer[sourceVoice]

	switches atomic.Pointer[Switches]
	gate     atomic.Pointer[GateConfig]

	mu       sync.Mutex
	state    ChannelStripState
	bypassed [4]bool
	eqFlat   bool
}

// NewSignalGraph builds the channel at sampleRate. The graph starts with
// the power-on defaults loaded into its stored state, but with neutral
// audio settings until the first setter call.
func NewSignalGraph(sampleRate int) (*SignalGraph, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %d", sampleRate)
	}
	sr := float64(sampleRate)
	comp, err := newCompressorNode(sr)
	if err != nil {
		return nil, fmt.Errorf("build compressor: %w", err)
	}
	g := &SignalGraph{
		sampleRate:  sr,
		inputTrim:   newGainNode(sr, 1),
		saturator:   newSaturator(sr),
		hpf:         newFilterNode(sr, FilterHighpass, 20, 0, passQ),
		lpf:         newFilterNode(sr, FilterLowpass, 20000, 0, passQ),
		compressor:  comp,
		gateGain:    newGainNode(sr, 1),
		outputTrim:  newGainNode(sr, 1),
		masterFader: newGainNode(sr, 1),
		gateTap:     newLevelAnalyzer(gateTapSize),
		leftTap:     newLevelAnalyzer(meterTapSize),
		rightTap:    newLevelAnalyzer(meterTapSize),
		mixScratch:  make([]float64, renderQuantum),
		state:       DefaultState(),
	}
	g.eq[BandHF] = newFilterNode(sr, FilterHighShelf, 8000, 0, 0.7)
	g.eq[BandHMF] = newFilterNode(sr, FilterPeaking, 3500, 0, 1.2)
	g.eq[BandLMF] = newFilterNode(sr, FilterPeaking, 800, 0, 1.2)
	g.eq[BandLF] = newFilterNode(sr, FilterLowShelf, 100, 0, 0.7)

	g.chain = []stage{g.inputTrim, g.saturator, g.hpf, g.lpf, g.compressor}

	g.switches.Store(&Switches{Dynamics: true, Compressor: true, Expander: true})
	g.gate.Store(&GateConfig{ThresholdDB: -60, RangeDB: 40, ReleaseMs: 100})
	return g, nil
}

// SampleRate returns the render rate in Hz.
func (g *SignalGraph) SampleRate() int { return int(g.sampleRate) }

// State returns a copy of the stored channel settings.
func (g *SignalGraph) State() ChannelStripState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SetInputGain ramps the input trim to db.
func (g *SignalGraph) SetInputGain(db float64) {
	db = inputGainRange.clamp(db)
	g.mu.Lock()
	g.state.InputGainDB = db
	g.mu.Unlock()
	g.inputTrim.gain.RampTo(core.DBToLinear(db), smoothFast)
}

// InputGain returns the linear input trim last applied by the render path.
func (g *SignalGraph) InputGain() float64 { return g.inputTrim.gain.Value() }

// SetSaturation ramps the preamp drive, 0 (clean) to 1 (heavy).
func (g *SignalGraph) SetSaturation(amount float64) {
	amount = saturationRange.clamp(amount)
	g.mu.Lock()
	g.state.Saturation = amount
	g.mu.Unlock()
	g.saturator.amount.RampTo(amount, smoothFast)
}

// SetFilters ramps the high- and low-pass cutoffs. Values are not clamped
// to the panel ranges; they saturate at the filters' own limits.
func (g *SignalGraph) SetFilters(hpfHz, lpfHz float64) {
	g.mu.Lock()
	g.state.HPFHz = hpfHz
	g.state.LPFHz = lpfHz
	g.mu.Unlock()
	g.hpf.freq.RampTo(hpfHz, smoothFast)
	g.lpf.freq.RampTo(lpfHz, smoothFast)
}

// SetDynamics applies the compressor controls when both the dynamics and
// compressor switches are in; otherwise it ramps the compressor to a
// pass-through setting. The expander switch is consumed by the gate.
func (g *SignalGraph) SetDynamics(cfg CompressorConfig, sw Switches) {
	cfg = cfg.clamp()
	g.mu.Lock()
	g.state.Compressor = cfg
	g.state.DynamicsIn = sw.Dynamics
	g.state.CompressorIn = sw.Compressor
	g.state.ExpanderIn = sw.Expander
	g.mu.Unlock()
	g.switches.Store(&sw)

	c := g.compressor
	if sw.Dynamics && sw.Compressor {
		c.threshold.RampTo(cfg.ThresholdDB, smoothFast)
		c.ratio.RampTo(cfg.Ratio, smoothFast)
		c.attack.RampTo(cfg.AttackMs, smoothFast)
		c.release.RampTo(cfg.ReleaseMs, smoothFast)
		return
	}
	c.threshold.RampTo(bypassThresholdDB, smoothFast)
	c.ratio.RampTo(bypassRatio, smoothFast)
}

// Switches returns the dynamics switches last set.
func (g *SignalGraph) Switches() Switches { return *g.switches.Load() }

// SetGate stores the gate controls for the GateController. A release time
// that is not positive falls back to 100 ms. The audio path is not touched.
func (g *SignalGraph) SetGate(cfg GateConfig) {
	cfg = cfg.clamp()
	g.mu.Lock()
	g.state.Gate = cfg
	g.mu.Unlock()
	g.gate.Store(&cfg)
}

// GateConfig returns the gate controls last stored.
func (g *SignalGraph) GateConfig() GateConfig { return *g.gate.Load() }

// SetEQBand sets one EQ section. HF and LF switch between shelf and bell
// according to bell; HMF and LMF are always bell. Values are clamped to
// the band's range and ramped over 100 ms. A bypassed band, or any band
// while the EQ is flattened, keeps its gain at 0 dB.
func (g *SignalGraph) SetEQBand(band Band, freqHz, gainDB, q float64, bell bool) {
	if !band.Valid() {
		return
	}
	s := BandSettings{FreqHz: freqHz, GainDB: gainDB, Q: q, Bell: bell}.clamp(band)

	g.mu.Lock()
	g.state.EQ[band] = s
	muted := g.bypassed[band] || g.eqFlat
	g.mu.Unlock()

	node := g.eq[band]
	node.setFilterKind(bandKind(band, s.Bell))
	node.freq.RampTo(s.FreqHz, smoothEQ)
	node.q.RampTo(s.Q, smoothEQ)
	if muted {
		node.gain.RampTo(0, smoothEQ)
		return
	}
	node.gain.RampTo(s.GainDB, smoothEQ)
}

func bandKind(band Band, bell bool) FilterKind {
	switch {
	case band == BandHF && !bell:
		return FilterHighShelf
	case band == BandLF && !bell:
		return FilterLowShelf
	default:
		return FilterPeaking
	}
}

// BypassBand ramps a band's gain to 0 dB while bypassed. The stored
// frequency, gain and Q are kept, so un-bypassing restores the band unless
// the EQ is flattened.
func (g *SignalGraph) BypassBand(band Band, bypassed bool) {
	if !band.Valid() {
		return
	}
	g.mu.Lock()
	g.bypassed[band] = bypassed
	gain := g.state.EQ[band].GainDB
	if bypassed || g.eqFlat {
		gain = 0
	}
	g.mu.Unlock()

	g.eq[band].gain.RampTo(gain, smoothFast)
}

// SetEQFlat switches the whole EQ section out (flat) or back in. While
// flat every band's gain is held at 0 dB; the stored settings and band
// bypasses are kept.
func (g *SignalGraph) SetEQFlat(flat bool) {
	var gains [4]float64
	g.mu.Lock()
	g.eqFlat = flat
	for _, b := range Bands() {
		if !flat && !g.bypassed[b] {
			gains[b] = g.state.EQ[b].GainDB
		}
	}
	g.mu.Unlock()

	for _, b := range Bands() {
		g.eq[b].gain.RampTo(gains[b], smoothEQ)
	}
}

// EQFlat reports whether the EQ section is switched out.
func (g *SignalGraph) EQFlat() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.eqFlat
}

// BandBypassed reports whether band is currently bypassed.
func (g *SignalGraph) BandBypassed(band Band) bool {
	if !band.Valid() {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bypassed[band]
}

// BandKind returns the filter response currently selected for band.
func (g *SignalGraph) BandKind(band Band) FilterKind {
	return g.eq[band].FilterKind()
}

// BandSettings returns the stored settings of band.
func (g *SignalGraph) BandSettings(band Band) BandSettings {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.EQ[band]
}

// BandResponseDB returns band's magnitude response at hz as last rendered.
func (g *SignalGraph) BandResponseDB(band Band, hz float64) float64 {
	return g.eq[band].ResponseDB(hz)
}

// SetOutputGain ramps the output trim to db.
func (g *SignalGraph) SetOutputGain(db float64) {
	db = outputGainRange.clamp(db)
	g.mu.Lock()
	g.state.OutputGainDB = db
	g.mu.Unlock()
	g.outputTrim.gain.RampTo(core.DBToLinear(db), smoothFast)
}

// SetMasterVolume ramps the master fader to a linear multiplier.
func (g *SignalGraph) SetMasterVolume(linear float64) {
	if linear < 0 {
		linear = 0
	}
	g.masterFader.gain.RampTo(linear, smoothFast)
}

// MasterVolume returns the linear master gain last rendered.
func (g *SignalGraph) MasterVolume() float64 { return g.masterFader.gain.Value() }

// CompressorReductionDB returns the compressor's instantaneous gain
// reduction in dB (>= 0).
func (g *SignalGraph) CompressorReductionDB() float64 {
	return g.compressor.ReductionDB()
}

// gateGainParam is written by the GateController and nothing else.
func (g *SignalGraph) gateGainParam() *Param { return g.gateGain.gain }

// GateTap returns the pre-gate analyzer.
func (g *SignalGraph) GateTap() *LevelAnalyzer { return g.gateTap }

// MeterTaps returns the post-fader left and right analyzers.
func (g *SignalGraph) MeterTaps() (left, right *LevelAnalyzer) { return g.leftTap, g.rightTap }

// Nodes lists the processing nodes in signal order, taps excluded.
func (g *SignalGraph) Nodes() []ProcessingNode {
	return []ProcessingNode{
		g.inputTrim, g.saturator, g.hpf, g.lpf, g.compressor, g.gateGain,
		g.eq[BandHF], g.eq[BandHMF], g.eq[BandLMF], g.eq[BandLF],
		g.outputTrim, g.masterFader,
	}
}

// replaceState stores s as the channel settings without touching the
// audio path. Callers apply s through the setters first.
func (g *SignalGraph) replaceState(s ChannelStripState) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

func (g *SignalGraph) setSource(v *sourceVoice)  { g.source.Store(v) }
func (g *SignalGraph) setPreview(v *sourceVoice) { g.preview.Store(v) }

// Render produces len(left) frames of output. left and right must have the
// same length. It is called from the audio backend's render context.
func (g *SignalGraph) Render(left, right []float64) {
	if len(right) < len(left) {
		left = left[:len(right)]
	}
	for off := 0; off < len(left); off += renderQuantum {
		end := off + renderQuantum
		if end > len(left) {
			end = len(left)
		}
		g.renderQuantum(left[off:end], right[off:end])
	}
}

func (g *SignalGraph) renderQuantum(left, right []float64) {
	core.Zero(left)
	core.Zero(right)
	if v := g.source.Load(); v != nil {
		v.mixInto(left, right)
	}
	if v := g.preview.Load(); v != nil {
		v.mixInto(left, right)
	}

	for _, s := range g.chain {
		s.process(left, right)
	}

	mono := g.mixScratch[:len(left)]
	for i := range mono {
		mono[i] = 0.5 * (left[i] + right[i])
	}
	g.gateTap.write(mono)

	g.gateGain.process(left, right)
	for _, b := range g.eq {
		b.process(left, right)
	}
	g.outputTrim.process(left, right)
	g.masterFader.process(left, right)

	for i := range left {
		left[i] = core.FlushDenormals(left[i])
		right[i] = core.FlushDenormals(right[i])
	}
	g.leftTap.write(left)
	g.rightTap.write(right)

	if v := g.cue.Load(); v != nil {
		v.mixInto(left, right)
	}
}
