package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cwbudde/algo-strip/backend/otoout"
	"github.com/cwbudde/algo-strip/internal/monitor"
	"github.com/cwbudde/algo-strip/preset"
	"github.com/cwbudde/algo-strip/strip"
)

// CLI defines the command-line interface.
type CLI struct {
	Samples    string `short:"s" type:"path" default:"samples" help:"Directory of instrument samples (kick.wav, hihat-close.wav, ...)"`
	File       string `short:"f" type:"existingfile" optional:"" help:"WAV file to load into the custom slot"`
	Source     string `default:"KICK" help:"Instrument to play first"`
	State      string `type:"path" default:"strip.json" help:"Channel state file, restored on start and written on save"`
	SampleRate int    `default:"48000" help:"Device sample rate in Hz"`
	Log        string `type:"path" default:"strip-monitor.log" help:"Log file"`
	Debug      bool   `help:"Log at debug level"`
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("strip-monitor"),
		kong.Description("Play samples through the analog channel strip and watch its meters"),
		kong.UsageOnError(),
	)
	if err := run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		kctx.Exit(1)
	}
}

func run(cli *CLI) error {
	logFile, err := os.Create(cli.Log)
	if err != nil {
		return err
	}
	defer logFile.Close()
	level := slog.LevelInfo
	if cli.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level}))

	first, err := strip.ParseInstrumentKey(cli.Source)
	if err != nil {
		return err
	}

	ctx := context.Background()
	lib := strip.NewSampleLibrary(cli.SampleRate, logger)
	lib.LoadDir(ctx, cli.Samples)

	engine := strip.NewEngine(otoout.New(cli.SampleRate), lib, preset.Store{Path: cli.State},
		strip.WithLogger(logger))
	if err := engine.Initialize(ctx); err != nil {
		return err
	}
	defer engine.Close()
	engine.PlayUISound(strip.UISoundInit)

	if cli.File != "" {
		raw, err := os.ReadFile(cli.File)
		if err != nil {
			return err
		}
		if _, err := engine.AssignFileToInstrument(strip.Custom(), raw); err != nil {
			return fmt.Errorf("%s: %w", cli.File, err)
		}
		first = strip.Custom()
	}
	if err := engine.SetActiveSource(first); err != nil {
		return err
	}

	sources := []strip.InstrumentKey{strip.Custom()}
	for _, inst := range strip.AllInstruments() {
		sources = append(sources, strip.Named(inst))
	}
	model := monitor.NewModel(engine, cli.SampleRate, sources)
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}
