package strip

import (
	"fmt"
	"strings"
)

// Instrument is a factory sample source.
type Instrument int

const (
	Kick Instrument = iota + 1
	Snare
	HiHatClosed
	HiHatOpen
	TomHigh
	TomMid
	TomLow
	Crash
	Ride
	Percussion
	Vocals
	Bass
	AcousticGuitar
	Brass
	Violins
	ElectricGuitar
	FullDrums
	Strings
	Piano
	SynthLead
	SynthPad
	PinkNoise
	WhiteNoise
)

var instrumentNames = map[Instrument]string{
	Kick:           "KICK",
	Snare:          "SNARE",
	HiHatClosed:    "HIHAT_CLOSE",
	HiHatOpen:      "HIHAT_OPEN",
	TomHigh:        "TOM_HIGH",
	TomMid:         "TOM_MID",
	TomLow:         "TOM_LOW",
	Crash:          "CRASH",
	Ride:           "RIDE",
	Percussion:     "PERCUSSION",
	Vocals:         "VOCALS",
	Bass:           "BASS",
	AcousticGuitar: "ACOUSTIC_GUITAR",
	Brass:          "BRASS",
	Violins:        "VIOLINS",
	ElectricGuitar: "ELECTRIC_GUITAR",
	FullDrums:      "FULL_DRUMS",
	Strings:        "STRINGS",
	Piano:          "PIANO",
	SynthLead:      "SYNTH_LEAD",
	SynthPad:       "SYNTH_PAD",
	PinkNoise:      "PINK_NOISE",
	WhiteNoise:     "WHITE_NOISE",
}

const customName = "CUSTOM"

// AllInstruments lists every factory instrument in declaration order.
func AllInstruments() []Instrument {
	out := make([]Instrument, 0, len(instrumentNames))
	for i := Kick; i <= WhiteNoise; i++ {
		out = append(out, i)
	}
	return out
}

func (i Instrument) String() string {
	if n, ok := instrumentNames[i]; ok {
		return n
	}
	return fmt.Sprintf("Instrument(%d)", int(i))
}

// Valid reports whether i is a declared instrument.
func (i Instrument) Valid() bool {
	_, ok := instrumentNames[i]
	return ok
}

// InstrumentKey identifies a sample slot: either a factory instrument or
// the user's custom slot. The zero value is invalid.
type InstrumentKey struct {
	instrument Instrument
	custom     bool
}

// Named returns the key of a factory instrument.
func Named(i Instrument) InstrumentKey { return InstrumentKey{instrument: i} }

// Custom returns the key of the user slot.
func Custom() InstrumentKey { return InstrumentKey{custom: true} }

// Instrument returns the factory instrument, or false for the custom slot.
func (k InstrumentKey) Instrument() (Instrument, bool) {
	if k.custom {
		return 0, false
	}
	return k.instrument, k.instrument.Valid()
}

// IsCustom reports whether k is the user slot.
func (k InstrumentKey) IsCustom() bool { return k.custom }

// Valid reports whether k names a slot.
func (k InstrumentKey) Valid() bool { return k.custom || k.instrument.Valid() }

func (k InstrumentKey) String() string {
	if k.custom {
		return customName
	}
	return k.instrument.String()
}

// FileName is the sample file name for a factory instrument, for example
// "hihat-close.wav". The custom slot has no file name.
func (k InstrumentKey) FileName() string {
	if k.custom || !k.instrument.Valid() {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(k.instrument.String()), "_", "-") + ".wav"
}

// ParseInstrumentKey accepts "CUSTOM" or an instrument name such as
// "HIHAT_CLOSE", case-insensitive, with '-' accepted for '_'.
func ParseInstrumentKey(s string) (InstrumentKey, error) {
	name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	if name == customName {
		return Custom(), nil
	}
	for i, n := range instrumentNames {
		if n == name {
			return Named(i), nil
		}
	}
	return InstrumentKey{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, s)
}
