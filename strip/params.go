package strip

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// Band identifies one of the four EQ sections.
type Band int

const (
	BandHF Band = iota
	BandHMF
	BandLMF
	BandLF
)

var bandNames = [...]string{"HF", "HMF", "LMF", "LF"}

// Bands lists the EQ sections in signal order.
func Bands() []Band {
	return []Band{BandHF, BandHMF, BandLMF, BandLF}
}

func (b Band) String() string {
	if b < 0 || int(b) >= len(bandNames) {
		return fmt.Sprintf("Band(%d)", int(b))
	}
	return bandNames[b]
}

// Valid reports whether b names one of the four sections.
func (b Band) Valid() bool {
	return b >= BandHF && b <= BandLF
}

// ParseBand maps "HF", "HMF", "LMF" or "LF" to a Band.
func ParseBand(s string) (Band, error) {
	for i, n := range bandNames {
		if n == s {
			return Band(i), nil
		}
	}
	return 0, fmt.Errorf("unknown eq band %q", s)
}

// Shelvable reports whether the band can switch between shelf and bell.
func (b Band) Shelvable() bool {
	return b == BandHF || b == BandLF
}

// CompressorConfig holds the human-facing compressor controls.
type CompressorConfig struct {
	Ratio       float64
	ThresholdDB float64
	AttackMs    float64
	ReleaseMs   float64
}

// GateConfig holds the expander/gate controls. RangeDB is the attenuation
// depth as a positive number of dB.
type GateConfig struct {
	ThresholdDB float64
	RangeDB     float64
	ReleaseMs   float64
	Enabled     bool
}

// Switches are the dynamics-section push buttons.
type Switches struct {
	Dynamics   bool
	Compressor bool
	Expander   bool
}

// BandSettings holds one EQ section. Bell only matters for HF and LF.
type BandSettings struct {
	FreqHz float64
	GainDB float64
	Q      float64
	Bell   bool
}

// ChannelStripState is the complete set of channel controls.
type ChannelStripState struct {
	InputGainDB float64
	Saturation  float64

	HPFHz float64
	LPFHz float64

	Compressor CompressorConfig
	Gate       GateConfig

	EQ [4]BandSettings

	OutputGainDB float64
	Fader        float64

	EQIn         bool
	DynamicsIn   bool
	ExpanderIn   bool
	CompressorIn bool
	MasterBypass bool
	Power        bool
}

type valueRange struct{ min, max float64 }

var (
	inputGainRange  = valueRange{-20, 20}
	saturationRange = valueRange{0, 1}
	hpfRange        = valueRange{20, 500}
	lpfRange        = valueRange{1000, 20000}
	ratioRange      = valueRange{1, 20}
	compThreshRange = valueRange{-60, 20}
	attackRange     = valueRange{0.1, 1000}
	releaseRange    = valueRange{1, 5000}
	gateThreshRange = valueRange{-90, 0}
	gateDepthRange  = valueRange{0, 80}
	eqGainRange     = valueRange{-15, 15}
	eqQRange        = valueRange{0.1, 10}
	outputGainRange = valueRange{-20, 20}
	faderRange      = valueRange{0, 2}

	bandFreqRanges = [4]valueRange{
		BandHF:  {1500, 16000},
		BandHMF: {600, 7000},
		BandLMF: {200, 2500},
		BandLF:  {30, 450},
	}
)

func (r valueRange) clamp(v float64) float64 {
	if math.IsNaN(v) {
		return r.min
	}
	return core.Clamp(v, r.min, r.max)
}

// DefaultState returns the power-on settings of the channel.
func DefaultState() ChannelStripState {
	return ChannelStripState{
		InputGainDB: 0,
		Saturation:  0,
		HPFHz:       30,
		LPFHz:       20000,
		Compressor: CompressorConfig{
			Ratio:       4,
			ThresholdDB: 0,
			AttackMs:    30,
			ReleaseMs:   500,
		},
		Gate: GateConfig{
			ThresholdDB: -20,
			RangeDB:     20,
			ReleaseMs:   500,
		},
		EQ: [4]BandSettings{
			BandHF:  {FreqHz: 8000, Q: 0.7},
			BandHMF: {FreqHz: 3500, Q: 1.2, Bell: true},
			BandLMF: {FreqHz: 800, Q: 1.2, Bell: true},
			BandLF:  {FreqHz: 100, Q: 0.7},
		},
		OutputGainDB: 0,
		Fader:        1,
		EQIn:         true,
		DynamicsIn:   true,
		ExpanderIn:   true,
		CompressorIn: true,
		Power:        true,
	}
}

// Switches returns the dynamics switches as the graph consumes them.
// Master bypass takes the whole dynamics section out.
func (s ChannelStripState) Switches() Switches {
	return Switches{
		Dynamics:   s.DynamicsIn && !s.MasterBypass,
		Compressor: s.CompressorIn,
		Expander:   s.ExpanderIn,
	}
}

// Clamp returns a copy with every value forced into its stage range.
func (s ChannelStripState) Clamp() ChannelStripState {
	out := s
	out.InputGainDB = inputGainRange.clamp(s.InputGainDB)
	out.Saturation = saturationRange.clamp(s.Saturation)
	out.HPFHz = hpfRange.clamp(s.HPFHz)
	out.LPFHz = lpfRange.clamp(s.LPFHz)
	out.Compressor = s.Compressor.clamp()
	out.Gate = s.Gate.clamp()
	for _, b := range Bands() {
		out.EQ[b] = s.EQ[b].clamp(b)
	}
	out.OutputGainDB = outputGainRange.clamp(s.OutputGainDB)
	out.Fader = faderRange.clamp(s.Fader)
	return out
}

// Validate reports the first value that is not finite or lies outside its
// stage range. Clamp repairs the latter; callers loading user data should
// reject them instead.
func (s ChannelStripState) Validate() error {
	type field struct {
		name string
		v    float64
		r    valueRange
	}
	fields := []field{
		{"input_gain_db", s.InputGainDB, inputGainRange},
		{"saturation", s.Saturation, saturationRange},
		{"hpf_hz", s.HPFHz, hpfRange},
		{"lpf_hz", s.LPFHz, lpfRange},
		{"compressor.ratio", s.Compressor.Ratio, ratioRange},
		{"compressor.threshold_db", s.Compressor.ThresholdDB, compThreshRange},
		{"compressor.attack_ms", s.Compressor.AttackMs, attackRange},
		{"compressor.release_ms", s.Compressor.ReleaseMs, releaseRange},
		{"gate.threshold_db", s.Gate.ThresholdDB, gateThreshRange},
		{"gate.range_db", s.Gate.RangeDB, gateDepthRange},
		{"gate.release_ms", s.Gate.ReleaseMs, releaseRange},
		{"output_gain_db", s.OutputGainDB, outputGainRange},
		{"fader", s.Fader, faderRange},
	}
	for _, b := range Bands() {
		eq := s.EQ[b]
		fields = append(fields,
			field{"eq." + b.String() + ".freq_hz", eq.FreqHz, bandFreqRanges[b]},
			field{"eq." + b.String() + ".gain_db", eq.GainDB, eqGainRange},
			field{"eq." + b.String() + ".q", eq.Q, eqQRange},
		)
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s must be finite: %v", f.name, f.v)
		}
		if f.v < f.r.min || f.v > f.r.max {
			return fmt.Errorf("%s must be in [%g, %g]: %g", f.name, f.r.min, f.r.max, f.v)
		}
	}
	return nil
}

func (c CompressorConfig) clamp() CompressorConfig {
	return CompressorConfig{
		Ratio:       ratioRange.clamp(c.Ratio),
		ThresholdDB: compThreshRange.clamp(c.ThresholdDB),
		AttackMs:    attackRange.clamp(c.AttackMs),
		ReleaseMs:   releaseRange.clamp(c.ReleaseMs),
	}
}

// defaultGateReleaseMs replaces a release time that is not positive.
const defaultGateReleaseMs = 100

func (g GateConfig) clamp() GateConfig {
	out := g
	if !(g.ReleaseMs > 0) {
		g.ReleaseMs = defaultGateReleaseMs
	}
	out.ThresholdDB = gateThreshRange.clamp(g.ThresholdDB)
	out.RangeDB = gateDepthRange.clamp(math.Abs(g.RangeDB))
	out.ReleaseMs = releaseRange.clamp(g.ReleaseMs)
	return out
}

func (b BandSettings) clamp(band Band) BandSettings {
	out := b
	out.FreqHz = bandFreqRanges[band].clamp(b.FreqHz)
	out.GainDB = eqGainRange.clamp(b.GainDB)
	out.Q = eqQRange.clamp(b.Q)
	if !band.Shelvable() {
		out.Bell = true
	}
	return out
}
