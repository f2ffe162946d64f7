// Package preset reads and writes channel-strip settings as JSON.
package preset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwbudde/algo-strip/strip"
)

// File is the JSON schema for channel presets. Every field is optional;
// absent fields keep the value they are applied onto.
type File struct {
	InputGainDB  *float64               `json:"input_gain_db,omitempty"`
	Saturation   *float64               `json:"saturation,omitempty"`
	HPFHz        *float64               `json:"hpf_hz,omitempty"`
	LPFHz        *float64               `json:"lpf_hz,omitempty"`
	Compressor   *CompressorSetting     `json:"compressor,omitempty"`
	Gate         *GateSetting           `json:"gate,omitempty"`
	EQ           map[string]BandSetting `json:"eq,omitempty"`
	OutputGainDB *float64               `json:"output_gain_db,omitempty"`
	Fader        *float64               `json:"fader,omitempty"`
	EQIn         *bool                  `json:"eq_in,omitempty"`
	DynamicsIn   *bool                  `json:"dynamics_in,omitempty"`
	ExpanderIn   *bool                  `json:"expander_in,omitempty"`
	CompressorIn *bool                  `json:"compressor_in,omitempty"`
	MasterBypass *bool                  `json:"master_bypass,omitempty"`
	Power        *bool                  `json:"power,omitempty"`
}

// CompressorSetting is a partial compressor override.
type CompressorSetting struct {
	Ratio       *float64 `json:"ratio,omitempty"`
	ThresholdDB *float64 `json:"threshold_db,omitempty"`
	AttackMs    *float64 `json:"attack_ms,omitempty"`
	ReleaseMs   *float64 `json:"release_ms,omitempty"`
}

// GateSetting is a partial gate override. RangeDB is a positive depth.
type GateSetting struct {
	ThresholdDB *float64 `json:"threshold_db,omitempty"`
	RangeDB     *float64 `json:"range_db,omitempty"`
	ReleaseMs   *float64 `json:"release_ms,omitempty"`
	Enabled     *bool    `json:"enabled,omitempty"`
}

// BandSetting is a partial EQ band override, keyed by band name ("HF",
// "HMF", "LMF", "LF") in File.EQ.
type BandSetting struct {
	FreqHz *float64 `json:"freq_hz,omitempty"`
	GainDB *float64 `json:"gain_db,omitempty"`
	Q      *float64 `json:"q,omitempty"`
	Bell   *bool    `json:"bell,omitempty"`
}

// LoadJSON loads a preset file and applies it on top of the default state.
func LoadJSON(path string) (strip.ChannelStripState, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return strip.ChannelStripState{}, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return strip.ChannelStripState{}, fmt.Errorf("%s: %w", path, err)
	}

	s := strip.DefaultState()
	if err := ApplyFile(&s, &f); err != nil {
		return strip.ChannelStripState{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ApplyFile applies a parsed preset onto dst. The result is validated; on
// error dst is left unchanged.
func ApplyFile(dst *strip.ChannelStripState, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination state")
	}
	if f == nil {
		return nil
	}
	s := *dst

	setFloat(&s.InputGainDB, f.InputGainDB)
	setFloat(&s.Saturation, f.Saturation)
	setFloat(&s.HPFHz, f.HPFHz)
	setFloat(&s.LPFHz, f.LPFHz)
	if c := f.Compressor; c != nil {
		setFloat(&s.Compressor.Ratio, c.Ratio)
		setFloat(&s.Compressor.ThresholdDB, c.ThresholdDB)
		setFloat(&s.Compressor.AttackMs, c.AttackMs)
		setFloat(&s.Compressor.ReleaseMs, c.ReleaseMs)
	}
	if g := f.Gate; g != nil {
		setFloat(&s.Gate.ThresholdDB, g.ThresholdDB)
		setFloat(&s.Gate.RangeDB, g.RangeDB)
		setFloat(&s.Gate.ReleaseMs, g.ReleaseMs)
		setBool(&s.Gate.Enabled, g.Enabled)
	}

	keys := make([]string, 0, len(f.EQ))
	for k := range f.EQ {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		band, err := strip.ParseBand(strings.ToUpper(strings.TrimSpace(k)))
		if err != nil {
			return fmt.Errorf("invalid eq key %q (expected HF, HMF, LMF or LF)", k)
		}
		o := f.EQ[k]
		eq := &s.EQ[band]
		setFloat(&eq.FreqHz, o.FreqHz)
		setFloat(&eq.GainDB, o.GainDB)
		setFloat(&eq.Q, o.Q)
		if o.Bell != nil {
			if !*o.Bell && !band.Shelvable() {
				return fmt.Errorf("eq.%s cannot be a shelf", band)
			}
			eq.Bell = *o.Bell
		}
	}

	setFloat(&s.OutputGainDB, f.OutputGainDB)
	setFloat(&s.Fader, f.Fader)
	setBool(&s.EQIn, f.EQIn)
	setBool(&s.DynamicsIn, f.DynamicsIn)
	setBool(&s.ExpanderIn, f.ExpanderIn)
	setBool(&s.CompressorIn, f.CompressorIn)
	setBool(&s.MasterBypass, f.MasterBypass)
	setBool(&s.Power, f.Power)

	if err := s.Validate(); err != nil {
		return err
	}
	*dst = s
	return nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// FromState returns a File with every field of s set.
func FromState(s strip.ChannelStripState) *File {
	f := &File{
		InputGainDB: ptr(s.InputGainDB),
		Saturation:  ptr(s.Saturation),
		HPFHz:       ptr(s.HPFHz),
		LPFHz:       ptr(s.LPFHz),
		Compressor: &CompressorSetting{
			Ratio:       ptr(s.Compressor.Ratio),
			ThresholdDB: ptr(s.Compressor.ThresholdDB),
			AttackMs:    ptr(s.Compressor.AttackMs),
			ReleaseMs:   ptr(s.Compressor.ReleaseMs),
		},
		Gate: &GateSetting{
			ThresholdDB: ptr(s.Gate.ThresholdDB),
			RangeDB:     ptr(s.Gate.RangeDB),
			ReleaseMs:   ptr(s.Gate.ReleaseMs),
			Enabled:     ptr(s.Gate.Enabled),
		},
		EQ:           make(map[string]BandSetting, 4),
		OutputGainDB: ptr(s.OutputGainDB),
		Fader:        ptr(s.Fader),
		EQIn:         ptr(s.EQIn),
		DynamicsIn:   ptr(s.DynamicsIn),
		ExpanderIn:   ptr(s.ExpanderIn),
		CompressorIn: ptr(s.CompressorIn),
		MasterBypass: ptr(s.MasterBypass),
		Power:        ptr(s.Power),
	}
	for _, b := range strip.Bands() {
		eq := s.EQ[b]
		f.EQ[b.String()] = BandSetting{
			FreqHz: ptr(eq.FreqHz),
			GainDB: ptr(eq.GainDB),
			Q:      ptr(eq.Q),
			Bell:   ptr(eq.Bell),
		}
	}
	return f
}

func ptr[T any](v T) *T { return &v }

// SaveJSON writes s to path. The file is replaced atomically.
func SaveJSON(path string, s strip.ChannelStripState) error {
	b, err := json.MarshalIndent(FromState(s), "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Store persists the channel state in a single JSON file.
type Store struct {
	Path string
}

// LoadState reads the saved state. A missing file is not an error; it
// reports false.
func (s Store) LoadState() (strip.ChannelStripState, bool, error) {
	st, err := LoadJSON(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return strip.ChannelStripState{}, false, nil
	}
	if err != nil {
		return strip.ChannelStripState{}, false, err
	}
	return st, true, nil
}

// SaveState writes st to the store's file, clamped so that it loads back.
func (s Store) SaveState(st strip.ChannelStripState) error {
	return SaveJSON(s.Path, st.Clamp())
}
