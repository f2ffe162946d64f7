package strip

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

type memPersistence struct {
	mu    sync.Mutex
	state *ChannelStripState
	saves int
	err   error
}

func (m *memPersistence) LoadState() (ChannelStripState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return ChannelStripState{}, false, m.err
	}
	if m.state == nil {
		return ChannelStripState{}, false, nil
	}
	return *m.state, true, nil
}

func (m *memPersistence) SaveState(s ChannelStripState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = &s
	m.saves++
	return nil
}

type readOnlyProvider struct{}

func (readOnlyProvider) Buffer(InstrumentKey) (*Buffer, bool) { return nil, false }
func (readOnlyProvider) IsLoaded(InstrumentKey) bool          { return false }

func newTestEngine(t *testing.T, p Persistence, opts ...Option) (*Engine, *OfflineBackend, *SampleLibrary) {
	t.Helper()
	backend := NewOfflineBackend(testSampleRate)
	lib := NewSampleLibrary(testSampleRate, nil)
	opts = append([]Option{WithControlPeriod(0)}, opts...)
	e := NewEngine(backend, lib, p, opts...)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e, backend, lib
}

// pump renders d through the backend in 20 ms periods, ticking after each.
func pump(e *Engine, b *OfflineBackend, d time.Duration) LevelsSnapshot {
	const period = 20 * time.Millisecond
	var snap LevelsSnapshot
	for elapsed := time.Duration(0); elapsed < d; elapsed += period {
		b.Pull(framesFor(period))
		snap = e.Tick()
	}
	return snap
}

func TestEngineSettersBeforeInitializeAreIgnored(t *testing.T) {
	e := NewEngine(NewOfflineBackend(testSampleRate), nil, nil)
	e.SetInputGain(6)
	e.SetEQBand(BandHF, 8000, 3, 0.7, false)
	e.ApplyState(DefaultState())
	if e.Graph() != nil {
		t.Fatalf("graph built before Initialize")
	}
	if snap := e.Tick(); snap != (LevelsSnapshot{}) {
		t.Fatalf("tick before Initialize: %+v", snap)
	}
	if err := e.SetActiveSource(Named(Kick)); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestEngineInitializeIsIdempotent(t *testing.T) {
	e, _, _ := newTestEngine(t, nil)
	g := e.Graph()
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	if e.Graph() != g {
		t.Fatalf("second Initialize rebuilt the graph")
	}
}

func TestEngineInitializeFailsWithoutBackend(t *testing.T) {
	b := NewOfflineBackend(testSampleRate)
	_ = b.Close()
	e := NewEngine(b, nil, nil)
	err := e.Initialize(context.Background())
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if e.Graph() != nil {
		t.Fatalf("graph kept after failed Initialize")
	}
}

func TestEngineRestoresPersistedState(t *testing.T) {
	saved := DefaultState()
	saved.InputGainDB = 12
	saved.EQ[BandLF].GainDB = -6
	e, b, _ := newTestEngine(t, &memPersistence{state: &saved})
	if !e.WasRestored() {
		t.Fatalf("restored flag not set")
	}
	if e.State().InputGainDB != 12 {
		t.Fatalf("restored input gain: %f", e.State().InputGainDB)
	}
	pump(e, b, 200*time.Millisecond)
	if got := e.Graph().InputGain(); math.Abs(got-math.Pow(10, 12.0/20)) > 1e-2 {
		t.Fatalf("restored gain not applied: %f", got)
	}
}

func TestEngineFreshStartUsesDefaults(t *testing.T) {
	p := &memPersistence{}
	e, _, _ := newTestEngine(t, p)
	if e.WasRestored() {
		t.Fatalf("restored flag set without saved state")
	}
	if e.State() != DefaultState() {
		t.Fatalf("state differs from defaults")
	}
	if p.saves != 0 {
		t.Fatalf("restore wrote back %d times", p.saves)
	}
}

func TestEngineApplyStatePersists(t *testing.T) {
	p := &memPersistence{}
	e, _, _ := newTestEngine(t, p)
	s := DefaultState()
	s.Saturation = 0.3
	e.ApplyState(s)
	if p.saves != 1 || p.state.Saturation != 0.3 {
		t.Fatalf("state not saved: saves=%d", p.saves)
	}
	if e.State().Saturation != 0.3 {
		t.Fatalf("state not stored: %+v", e.State())
	}
}

func TestEnginePowerOffMutes(t *testing.T) {
	e, b, _ := newTestEngine(t, nil)
	s := DefaultState()
	s.Power = false
	e.ApplyState(s)
	pump(e, b, 200*time.Millisecond)
	if got := e.Graph().MasterVolume(); got > 1e-3 {
		t.Fatalf("power off master: %f", got)
	}
	s.Power = true
	s.Fader = 0.8
	e.ApplyState(s)
	pump(e, b, 200*time.Millisecond)
	if got := e.Graph().MasterVolume(); math.Abs(got-0.8) > 1e-3 {
		t.Fatalf("power on master: %f", got)
	}
}

func TestEngineMasterBypassFlattensChannel(t *testing.T) {
	e, b, _ := newTestEngine(t, nil)
	s := DefaultState()
	s.EQ[BandHMF].GainDB = 10
	s.MasterBypass = true
	e.ApplyState(s)
	pump(e, b, 300*time.Millisecond)
	g := e.Graph()
	if g.Switches().Dynamics {
		t.Fatalf("master bypass left dynamics in")
	}
	if got := g.BandResponseDB(BandHMF, s.EQ[BandHMF].FreqHz); math.Abs(got) > 0.1 {
		t.Fatalf("master bypass left EQ shaping: %f dB", got)
	}
	if e.State().EQ[BandHMF].GainDB != 10 {
		t.Fatalf("stored EQ gain lost: %+v", e.State().EQ[BandHMF])
	}
	if snap := e.GetLevels(); snap.GateGainReductionDB != 0 || snap.CompressorGainReductionDB != 0 {
		t.Fatalf("bypassed dynamics metered: %+v", snap)
	}
}

func TestEngineAssignAndPlay(t *testing.T) {
	e, b, _ := newTestEngine(t, nil)
	e.SetDynamics(DefaultState().Compressor, Switches{Dynamics: false})
	path := writeTestWAV(t, t.TempDir(), "custom.wav", testSampleRate, sine(1000, 0.5, 200*time.Millisecond))

	info, err := e.AssignFileToInstrument(Custom(), readTestFile(t, path))
	if err != nil {
		t.Fatalf("AssignFileToInstrument: %v", err)
	}
	if info.Frames != framesFor(200*time.Millisecond) || info.Channels != 1 || info.SampleRate != testSampleRate {
		t.Fatalf("buffer info: %+v", info)
	}
	if !e.IsInstrumentLoaded(Custom()) {
		t.Fatalf("custom slot not loaded")
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if e.PlaybackState() != Playing {
		t.Fatalf("not playing")
	}
	snap := pump(e, b, 300*time.Millisecond)
	if snap.LeftRMS < 0.2 || snap.RightRMS < 0.2 {
		t.Fatalf("assigned sample not heard: %+v", snap)
	}
	if wave := e.Waveform(nil); len(wave) != meterTapSize || rms(wave) < 0.2 {
		t.Fatalf("waveform: len=%d", len(wave))
	}

	e.Stop()
	e.Stop()
	if e.PlaybackState() != Stopped {
		t.Fatalf("still playing after stop")
	}
}

func TestEngineAssignNeedsWritableProvider(t *testing.T) {
	e := NewEngine(NewOfflineBackend(testSampleRate), readOnlyProvider{}, nil, WithControlPeriod(0))
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer e.Close()
	if _, err := e.AssignFileToInstrument(Custom(), nil); !errors.Is(err, ErrReadOnlyProvider) {
		t.Fatalf("expected ErrReadOnlyProvider, got %v", err)
	}
}

func TestEngineSetActiveSourceIgnoresEmptySlot(t *testing.T) {
	e, _, lib := newTestEngine(t, nil)
	kick := sineBuffer(t, 60, 0.5, 100*time.Millisecond)
	lib.Put(Named(Kick), kick)
	if err := e.SetActiveSource(Named(Kick)); err != nil {
		t.Fatalf("SetActiveSource: %v", err)
	}
	if err := e.SetActiveSource(Named(Snare)); err != nil {
		t.Fatalf("SetActiveSource: %v", err)
	}
	if e.playback.ActiveSource() != kick {
		t.Fatalf("empty slot replaced the active source")
	}
}

func TestEngineCommitPreset(t *testing.T) {
	p := &memPersistence{}
	e, _, _ := newTestEngine(t, p)
	e.SetInputGain(3)
	if err := e.CommitPreset(); err != nil {
		t.Fatalf("CommitPreset: %v", err)
	}
	if !e.WasRestored() || p.state == nil || p.state.InputGainDB != 3 {
		t.Fatalf("preset not committed: %+v", p.state)
	}
}

func TestEngineControlLoopDeliversLevels(t *testing.T) {
	levels := make(chan LevelsSnapshot, 16)
	backend := NewOfflineBackend(testSampleRate)
	e := NewEngine(backend, nil, nil,
		WithControlPeriod(5*time.Millisecond),
		WithLevelsHandler(func(s LevelsSnapshot) {
			select {
			case levels <- s:
			default:
			}
		}))
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	select {
	case <-levels:
	case <-time.After(2 * time.Second):
		t.Fatalf("control loop produced no levels")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestEngineEQOutStaysOutAcrossBandBypass(t *testing.T) {
	e, b, _ := newTestEngine(t, nil)
	s := DefaultState()
	s.EQ[BandHMF].GainDB = 12
	s.EQIn = false
	e.ApplyState(s)
	pump(e, b, 300*time.Millisecond)

	e.BypassBand(BandHMF, true)
	pump(e, b, 300*time.Millisecond)
	e.BypassBand(BandHMF, false)
	pump(e, b, 300*time.Millisecond)

	g := e.Graph()
	if got := g.BandResponseDB(BandHMF, s.EQ[BandHMF].FreqHz); math.Abs(got) > 0.1 {
		t.Fatalf("EQ out, HMF response after bypass toggle: %f dB", got)
	}

	s.EQIn = true
	e.ApplyState(s)
	pump(e, b, 500*time.Millisecond)
	if got := g.BandResponseDB(BandHMF, s.EQ[BandHMF].FreqHz); math.Abs(got-12) > 0.2 {
		t.Fatalf("EQ in, HMF response: got=%f want=12", got)
	}
}
