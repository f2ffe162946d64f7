// Package wavio reads and writes the WAV files the channel strip consumes
// and produces.
package wavio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// ErrInvalid is returned for data that is not a decodable WAV stream.
var ErrInvalid = errors.New("invalid wav data")

// Decode reads a WAV stream into per-channel float samples. Streams with
// more than two channels keep the first two.
func Decode(r io.ReadSeeker) ([][]float64, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, ErrInvalid
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("%w: missing format", ErrInvalid)
	}
	if buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("%w: sample rate %d", ErrInvalid, buf.Format.SampleRate)
	}
	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	if frames == 0 {
		return nil, 0, fmt.Errorf("%w: no sample frames", ErrInvalid)
	}
	keep := ch
	if keep > 2 {
		keep = 2
	}
	out := make([][]float64, keep)
	for c := range out {
		out[c] = make([]float64, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < keep; c++ {
			out[c][i] = float64(buf.Data[i*ch+c])
		}
	}
	return out, buf.Format.SampleRate, nil
}

// ReadFile decodes the WAV file at path.
func ReadFile(path string) ([][]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	chans, rate, err := Decode(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return chans, rate, nil
}

// ResampleChannels converts every channel from fromRate to toRate. Each
// channel gets its own filter state; the outputs are trimmed to a common
// length so stereo frames stay aligned. At equal rates the input is
// returned as is.
func ResampleChannels(chans [][]float64, fromRate, toRate int) ([][]float64, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("resample %d->%d: rates must be positive", fromRate, toRate)
	}
	if fromRate == toRate || len(chans) == 0 {
		return chans, nil
	}
	out := make([][]float64, len(chans))
	frames := -1
	for i, c := range chans {
		r, err := dspresample.NewForRates(
			float64(fromRate),
			float64(toRate),
			dspresample.WithQuality(dspresample.QualityBest),
		)
		if err != nil {
			return nil, fmt.Errorf("resample %d->%d: %w", fromRate, toRate, err)
		}
		out[i] = r.Process(c)
		if frames < 0 || len(out[i]) < frames {
			frames = len(out[i])
		}
	}
	for i := range out {
		out[i] = out[i][:frames]
	}
	return out, nil
}

// Write encodes one or two channels as 16-bit PCM.
func Write(w io.WriteSeeker, channels [][]float64, sampleRate int) error {
	if len(channels) < 1 || len(channels) > 2 {
		return fmt.Errorf("wav writer needs 1 or 2 channels, got %d", len(channels))
	}
	frames := len(channels[0])
	for _, c := range channels[1:] {
		if len(c) != frames {
			return fmt.Errorf("channel length mismatch")
		}
	}
	n := len(channels)
	data := make([]float32, frames*n)
	for i := 0; i < frames; i++ {
		for c := 0; c < n; c++ {
			data[i*n+c] = float32(channels[c][i])
		}
	}
	enc := wav.NewEncoder(w, sampleRate, 16, n, 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: n,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// WriteFile writes channels to path, creating parent directories.
func WriteFile(path string, channels [][]float64, sampleRate int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Write(f, channels, sampleRate)
}
