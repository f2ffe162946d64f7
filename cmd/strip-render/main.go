package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/cwbudde/algo-strip/internal/wavio"
	"github.com/cwbudde/algo-strip/preset"
	"github.com/cwbudde/algo-strip/strip"
)

func main() {
	input := flag.String("input", "", "Input WAV file (mono or stereo)")
	presetPath := flag.String("preset", "", "Channel preset JSON file (optional)")
	duration := flag.Float64("duration", 0, "Render duration in seconds; 0 renders the input once")
	sampleRate := flag.Int("sample-rate", 48000, "Render sample rate in Hz")
	controlMs := flag.Int("control-ms", 20, "Gate and meter period in milliseconds")
	output := flag.String("output", "output.wav", "Output WAV file path")
	verbose := flag.Bool("v", false, "Verbose engine logging")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: -input is required")
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, options{
		input:      *input,
		preset:     *presetPath,
		duration:   *duration,
		sampleRate: *sampleRate,
		control:    time.Duration(*controlMs) * time.Millisecond,
		output:     *output,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	input      string
	preset     string
	duration   float64
	sampleRate int
	control    time.Duration
	output     string
}

type summary struct {
	frames        int
	peakCompGR    float64
	peakGateGR    float64
	finalLevels   strip.LevelsSnapshot
	outputRMSdBFS float64
}

func run(logger *slog.Logger, opt options) error {
	if opt.control <= 0 {
		return fmt.Errorf("control period must be positive")
	}
	state := strip.DefaultState()
	if opt.preset != "" {
		s, err := preset.LoadJSON(opt.preset)
		if err != nil {
			return fmt.Errorf("load preset: %w", err)
		}
		state = s
	}

	lib := strip.NewSampleLibrary(opt.sampleRate, logger)
	raw, err := os.ReadFile(opt.input)
	if err != nil {
		return err
	}

	backend := strip.NewOfflineBackend(opt.sampleRate)
	engine := strip.NewEngine(backend, lib, nil, strip.WithLogger(logger), strip.WithControlPeriod(0))
	if err := engine.Initialize(context.Background()); err != nil {
		return err
	}
	defer engine.Close()

	engine.ApplyState(state)
	info, err := engine.AssignFileToInstrument(strip.Custom(), raw)
	if err != nil {
		return fmt.Errorf("%s: %w", opt.input, err)
	}
	if err := engine.Start(context.Background()); err != nil {
		return err
	}

	total := info.Frames
	if opt.duration > 0 {
		total = int(opt.duration * float64(opt.sampleRate))
	}
	fmt.Printf("Rendering %s (%d frames, %d ch) for %.2fs at %d Hz...\n",
		opt.input, info.Frames, info.Channels, float64(total)/float64(opt.sampleRate), opt.sampleRate)

	sum, left, right := render(engine, backend, total, int(opt.control.Seconds()*float64(opt.sampleRate)))
	if err := wavio.WriteFile(opt.output, [][]float64{left, right}, opt.sampleRate); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	fmt.Printf("Wrote %s: %d frames, %.1f dBFS RMS\n", opt.output, sum.frames, sum.outputRMSdBFS)
	fmt.Printf("Peak gain reduction: compressor %.1f dB, gate %.1f dB\n", sum.peakCompGR, sum.peakGateGR)
	fmt.Printf("Final meter: L %.3f  R %.3f\n", sum.finalLevels.LeftRMS, sum.finalLevels.RightRMS)
	return nil
}

func render(engine *strip.Engine, backend *strip.OfflineBackend, total, period int) (summary, []float64, []float64) {
	if period < 1 {
		period = 1
	}
	left := make([]float64, total)
	right := make([]float64, total)
	var sum summary
	for off := 0; off < total; off += period {
		end := min(off+period, total)
		backend.PullInto(left[off:end], right[off:end])
		snap := engine.Tick()
		sum.peakCompGR = math.Max(sum.peakCompGR, snap.CompressorGainReductionDB)
		sum.peakGateGR = math.Max(sum.peakGateGR, snap.GateGainReductionDB)
		sum.finalLevels = snap
	}
	sum.frames = total

	var acc float64
	for i := range left {
		acc += left[i]*left[i] + right[i]*right[i]
	}
	rms := 0.0
	if total > 0 {
		rms = math.Sqrt(acc / float64(2*total))
	}
	sum.outputRMSdBFS = 20 * math.Log10(rms+1e-12)
	return sum, left, right
}
