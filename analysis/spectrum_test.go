package analysis

import (
	"math"
	"testing"
)

func tone(hz float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*hz*float64(i)/float64(sampleRate))
	}
	return out
}

func TestNewAnalyzerRejectsBadSize(t *testing.T) {
	for _, n := range []int{0, 16, 1000} {
		if _, err := NewAnalyzer(n); err == nil {
			t.Fatalf("expected error for size %d", n)
		}
	}
}

func TestAnalyzerFindsTone(t *testing.T) {
	const sr = 48000
	a, err := NewAnalyzer(2048, WithSmoothing(0))
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	bin := 43
	hz := a.BinHz(bin, sr)
	db := a.Process(tone(hz, sr, 4096))

	peak := 0
	for k := range db {
		if db[k] > db[peak] {
			peak = k
		}
	}
	if peak != bin {
		t.Fatalf("peak bin: got=%d want=%d", peak, bin)
	}
	if far := db[bin*4]; db[bin]-far < 40 {
		t.Fatalf("poor separation: peak=%f far=%f", db[bin], far)
	}
}

func TestAnalyzerSilenceIsFloor(t *testing.T) {
	a, err := NewAnalyzer(256)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	db := a.Process(make([]float64, 100))
	for k, v := range db {
		if a.Normalize(v) != 0 {
			t.Fatalf("bin %d of silence normalized to %f", k, a.Normalize(v))
		}
	}
}

func TestAnalyzerSmoothingLags(t *testing.T) {
	const sr = 48000
	a, err := NewAnalyzer(1024, WithSmoothing(0.8))
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	x := tone(a.BinHz(20, sr), sr, 1024)
	first := a.Process(x)[20]
	second := a.Process(x)[20]
	if second <= first {
		t.Fatalf("smoothed level did not rise: %f -> %f", first, second)
	}
	a.Reset()
	if again := a.Process(x)[20]; math.Abs(again-first) > 1e-9 {
		t.Fatalf("reset did not clear history: %f vs %f", again, first)
	}
}

func TestBandsAreNormalized(t *testing.T) {
	const sr = 48000
	a, err := NewAnalyzer(2048, WithSmoothing(0), WithRange(-90, -10))
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	db := a.Process(tone(1000, sr, 2048))
	bands := a.Bands(db, sr, 31, 20, 20000)
	if len(bands) != 31 {
		t.Fatalf("band count: %d", len(bands))
	}
	loudest := 0
	for i, v := range bands {
		if v < 0 || v > 1 {
			t.Fatalf("band %d out of range: %f", i, v)
		}
		if v > bands[loudest] {
			loudest = i
		}
	}
	// 1 kHz sits in band floor(31*log(1000/20)/log(1000)) = 17.
	if loudest < 16 || loudest > 18 {
		t.Fatalf("loudest band: %d", loudest)
	}
}
