// Package analysis turns the channel's output taps into display data: a
// smoothed magnitude spectrum and log-spaced bands for a bar analyzer.
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-dsp/dsp/window"
)

const (
	DefaultSize      = 2048
	DefaultSmoothing = 0.8
	DefaultMinDB     = -100.0
	DefaultMaxDB     = -30.0
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithSmoothing sets the averaging constant between frames, 0 (none) to
// just below 1.
func WithSmoothing(s float64) Option {
	return func(a *Analyzer) {
		a.smoothing = math.Min(math.Max(s, 0), 0.99)
	}
}

// WithRange sets the dB range that Normalize maps onto 0..1.
func WithRange(minDB, maxDB float64) Option {
	return func(a *Analyzer) {
		if maxDB > minDB {
			a.minDB, a.maxDB = minDB, maxDB
		}
	}
}

// Analyzer computes a Blackman-windowed magnitude spectrum with
// exponential smoothing across frames. It is not safe for concurrent use.
type Analyzer struct {
	size    int
	forward func(dst []complex128, src []float64)
	window  []float64

	frame    []float64
	spec     []complex128
	smoothed []float64
	out      []float64

	smoothing    float64
	minDB, maxDB float64
}

// NewAnalyzer creates an analyzer over frames of size samples. size must be
// a power of two of at least 32.
func NewAnalyzer(size int, opts ...Option) (*Analyzer, error) {
	if size < 32 || size&(size-1) != 0 {
		return nil, fmt.Errorf("analyzer size must be a power of two >= 32: %d", size)
	}
	plan, err := algofft.NewPlanReal64(size)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}
	win, err := window.Blackman(size, window.WithPeriodic())
	if err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}
	a := &Analyzer{
		size:      size,
		forward:   func(dst []complex128, src []float64) { plan.Forward(dst, src) },
		window:    win,
		frame:     make([]float64, size),
		spec:      make([]complex128, size/2+1),
		smoothed:  make([]float64, size/2),
		out:       make([]float64, size/2),
		smoothing: DefaultSmoothing,
		minDB:     DefaultMinDB,
		maxDB:     DefaultMaxDB,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Size returns the frame length.
func (a *Analyzer) Size() int { return a.size }

// Bins returns the number of frequency bins Process reports.
func (a *Analyzer) Bins() int { return a.size / 2 }

// BinHz returns the centre frequency of bin k.
func (a *Analyzer) BinHz(k, sampleRate int) float64 {
	return float64(k) * float64(sampleRate) / float64(a.size)
}

// Process analyzes the most recent Size samples of x (zero-padded in front
// when x is shorter) and returns the smoothed magnitude of each bin in dB.
// The returned slice is reused by the next call.
func (a *Analyzer) Process(x []float64) []float64 {
	clear(a.frame)
	if len(x) > a.size {
		x = x[len(x)-a.size:]
	}
	off := a.size - len(x)
	for i, v := range x {
		a.frame[off+i] = v * a.window[off+i]
	}
	a.forward(a.spec, a.frame)

	scale := 1 / float64(a.size)
	for k := range a.smoothed {
		mag := cmplx.Abs(a.spec[k]) * scale
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		a.out[k] = 20 * math.Log10(a.smoothed[k]+1e-12)
	}
	return a.out
}

// Reset clears the smoothing history.
func (a *Analyzer) Reset() { clear(a.smoothed) }

// Normalize maps db onto 0..1 over the analyzer's display range.
func (a *Analyzer) Normalize(db float64) float64 {
	v := (db - a.minDB) / (a.maxDB - a.minDB)
	return math.Min(math.Max(v, 0), 1)
}

// Bands groups a spectrum from Process into n log-spaced bands between
// loHz and hiHz and returns each band's loudest bin normalized to 0..1.
// Bands narrower than one bin take the nearest bin.
func (a *Analyzer) Bands(db []float64, sampleRate, n int, loHz, hiHz float64) []float64 {
	out := make([]float64, n)
	if n <= 0 || len(db) == 0 || sampleRate <= 0 || loHz <= 0 || hiHz <= loHz {
		return out
	}
	binHz := float64(sampleRate) / float64(a.size)
	ratio := math.Pow(hiHz/loHz, 1/float64(n))
	lo := loHz
	for b := range out {
		hi := lo * ratio
		k0 := int(math.Round(lo / binHz))
		k1 := int(math.Round(hi / binHz))
		k0 = min(max(k0, 0), len(db)-1)
		k1 = min(max(k1, k0), len(db)-1)
		peak := math.Inf(-1)
		for k := k0; k <= k1; k++ {
			peak = math.Max(peak, db[k])
		}
		out[b] = a.Normalize(peak)
		lo = hi
	}
	return out
}
