package strip

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/algo-strip/internal/wavio"
)

const testSampleRate = 48000

func newTestGraph(t *testing.T) *SignalGraph {
	t.Helper()
	g, err := NewSignalGraph(testSampleRate)
	if err != nil {
		t.Fatalf("NewSignalGraph: %v", err)
	}
	return g
}

func framesFor(d time.Duration) int {
	return int(math.Round(d.Seconds() * testSampleRate))
}

// render pulls d of audio through g in 10 ms blocks and returns the output.
func render(g *SignalGraph, d time.Duration) (left, right []float64) {
	n := framesFor(d)
	left = make([]float64, n)
	right = make([]float64, n)
	const block = testSampleRate / 100
	for off := 0; off < n; off += block {
		end := min(off+block, n)
		g.Render(left[off:end], right[off:end])
	}
	return left, right
}

func sine(hz, amp float64, d time.Duration) []float64 {
	n := framesFor(d)
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*hz*float64(i)/testSampleRate)
	}
	return out
}

func sineBuffer(t *testing.T, hz, amp float64, d time.Duration) *Buffer {
	t.Helper()
	b, err := NewBuffer(testSampleRate, sine(hz, amp, d))
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	return b
}

func silentBuffer(t *testing.T, d time.Duration) *Buffer {
	t.Helper()
	b, err := NewBuffer(testSampleRate, make([]float64, framesFor(d)))
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	return b
}

func writeTestWAV(t *testing.T, dir, name string, rate int, channels ...[]float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := wavio.WriteFile(path, channels, rate); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func readTestFile(t *testing.T, path string) []byte {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return raw
}

// neutralDynamics switches the compressor out and leaves the expander in.
func neutralDynamics(g *SignalGraph) {
	g.SetDynamics(DefaultState().Compressor, Switches{Dynamics: true, Compressor: false, Expander: true})
}
