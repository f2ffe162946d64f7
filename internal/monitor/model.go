// Package monitor is the terminal control surface for a running channel
// strip: meters, gain-reduction read-outs, a spectrum and key bindings for
// the panel switches.
package monitor

import (
	"context"
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cwbudde/algo-strip/analysis"
	"github.com/cwbudde/algo-strip/strip"
)

// RefreshInterval is the display frame period.
const RefreshInterval = 50 * time.Millisecond

// Peak meters fall by this many dB per frame.
const peakFallDB = 1.5

const spectrumBands = 31

// Engine is the part of strip.Engine the monitor drives.
type Engine interface {
	State() strip.ChannelStripState
	ApplyState(strip.ChannelStripState)
	Start(ctx context.Context) error
	Stop()
	PlaybackState() strip.PlaybackState
	SetActiveSource(key strip.InstrumentKey) error
	IsInstrumentLoaded(key strip.InstrumentKey) bool
	GetLevels() strip.LevelsSnapshot
	Waveform(dst []float64) []float64
	CommitPreset() error
	PlayUISound(strip.UISound)
}

type frameMsg time.Time

// Model is the bubbletea model of the monitor.
type Model struct {
	engine     Engine
	sampleRate int
	analyzer   *analysis.Analyzer
	wave       []float64

	state   strip.ChannelStripState
	levels  strip.LevelsSnapshot
	peakDB  [2]float64
	bands   []float64
	sources []strip.InstrumentKey
	source  int
	status  string
	err     error
}

// NewModel builds a monitor over engine. sources lists the slots the user
// can cycle through; only loaded ones are offered.
func NewModel(engine Engine, sampleRate int, sources []strip.InstrumentKey) Model {
	m := Model{
		engine:     engine,
		sampleRate: sampleRate,
		state:      engine.State(),
		peakDB:     [2]float64{meterFloorDB, meterFloorDB},
	}
	for _, k := range sources {
		if engine.IsInstrumentLoaded(k) {
			m.sources = append(m.sources, k)
		}
	}
	if a, err := analysis.NewAnalyzer(analysis.DefaultSize); err == nil {
		m.analyzer = a
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return frame()
}

func frame() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case frameMsg:
		m.refresh()
		return m, frame()
	}
	return m, nil
}

func (m *Model) refresh() {
	m.levels = m.engine.GetLevels()
	for i, v := range [2]float64{m.levels.LeftRMS, m.levels.RightRMS} {
		db := toDB(v)
		m.peakDB[i] = math.Max(db, m.peakDB[i]-peakFallDB)
	}
	if m.analyzer != nil {
		m.wave = m.engine.Waveform(m.wave)
		db := m.analyzer.Process(m.wave)
		m.bands = m.analyzer.Bands(db, m.sampleRate, spectrumBands, 20, 20000)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.state
	switch msg.String() {
	case "q", "ctrl+c":
		m.engine.Stop()
		return m, tea.Quit
	case " ", "space":
		if m.engine.PlaybackState() == strip.Playing {
			m.engine.Stop()
			m.status = "stopped"
		} else if err := m.engine.Start(context.Background()); err != nil {
			m.err = err
		} else {
			m.status = "playing"
		}
		return m, nil
	case "tab":
		if len(m.sources) > 0 {
			m.source = (m.source + 1) % len(m.sources)
			key := m.sources[m.source]
			if err := m.engine.SetActiveSource(key); err != nil {
				m.err = err
			} else {
				m.status = "source " + key.String()
			}
		}
		return m, nil
	case "w":
		if err := m.engine.CommitPreset(); err != nil {
			m.err = err
		} else {
			m.engine.PlayUISound(strip.UISoundSave)
			m.status = "preset saved"
		}
		return m, nil
	case "up":
		s.InputGainDB++
	case "down":
		s.InputGainDB--
	case "right":
		s.Fader += 0.05
	case "left":
		s.Fader -= 0.05
	case "s":
		s.Saturation += 0.1
		if s.Saturation > 1.0001 {
			s.Saturation = 0
		}
	case "b":
		s.MasterBypass = !s.MasterBypass
	case "p":
		s.Power = !s.Power
	case "e":
		s.EQIn = !s.EQIn
	case "d":
		s.DynamicsIn = !s.DynamicsIn
	case "c":
		s.CompressorIn = !s.CompressorIn
	case "x":
		s.ExpanderIn = !s.ExpanderIn
	default:
		return m, nil
	}
	m.engine.ApplyState(s)
	m.state = m.engine.State()
	m.err = nil
	return m, nil
}

// State returns the settings the monitor last applied.
func (m Model) State() strip.ChannelStripState { return m.state }

func toDB(linear float64) float64 {
	if linear <= 0 {
		return meterFloorDB
	}
	return math.Max(20*math.Log10(linear), meterFloorDB)
}
