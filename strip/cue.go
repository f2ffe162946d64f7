package strip

import (
	"math"
	"time"
)

// UISound selects a confirmation beep.
type UISound int

const (
	UISoundInit UISound = iota
	UISoundSave
)

const (
	cueLength    = 100 * time.Millisecond
	cueStartGain = 0.1
	cueEndGain   = 0.001
)

func (s UISound) String() string {
	if s == UISoundSave {
		return "save"
	}
	return "init"
}

func (s UISound) frequency() float64 {
	if s == UISoundSave {
		return 880
	}
	return 440
}

// newCueBuffer renders a short sine beep whose gain falls exponentially
// from cueStartGain to cueEndGain over cueLength.
func newCueBuffer(sound UISound, sampleRate float64) *Buffer {
	n := int(cueLength.Seconds() * sampleRate)
	data := make([]float64, n)
	decay := math.Log(cueEndGain/cueStartGain) / float64(n)
	w := 2 * math.Pi * sound.frequency() / sampleRate
	for i := range data {
		data[i] = cueStartGain * math.Exp(decay*float64(i)) * math.Sin(w*float64(i))
	}
	return &Buffer{SampleRate: int(sampleRate), Channels: [][]float64{data}}
}

// PlayUISound mixes a confirmation beep straight into the output. The cue
// skips the channel and the meters, so it sounds even with the fader down.
func (g *SignalGraph) PlayUISound(sound UISound) {
	g.cue.Store(newSourceVoice(newCueBuffer(sound, g.sampleRate), false))
}
