package strip

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DefaultControlPeriod is the gate and metering cycle of the control loop.
const DefaultControlPeriod = 20 * time.Millisecond

// Persistence loads and stores channel settings.
type Persistence interface {
	LoadState() (ChannelStripState, bool, error)
	SaveState(ChannelStripState) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithControlPeriod sets the control loop period. A period <= 0 disables
// the loop; the caller then drives the engine with Tick.
func WithControlPeriod(d time.Duration) Option {
	return func(e *Engine) { e.period = d }
}

// WithLevelsHandler registers a callback that receives every snapshot the
// control loop polls. It runs on the control goroutine and must not block.
func WithLevelsHandler(fn func(LevelsSnapshot)) Option {
	return func(e *Engine) { e.onLevels = fn }
}

// Engine is the channel-strip service: it owns the graph, the playback
// transport, the gate loop and the meters, and talks to the backend,
// sample provider and persistence collaborators.
type Engine struct {
	backend     Backend
	samples     SampleProvider
	persistence Persistence
	logger      *slog.Logger
	period      time.Duration
	onLevels    func(LevelsSnapshot)

	mu       sync.Mutex
	graph    *SignalGraph
	playback *PlaybackController
	gate     *GateController
	meter    *MeteringService
	restored bool
	closed   bool

	tickMu sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine wires an engine to its collaborators. samples and persistence
// may be nil.
func NewEngine(backend Backend, samples SampleProvider, persistence Persistence, opts ...Option) *Engine {
	e := &Engine{
		backend:     backend,
		samples:     samples,
		persistence: persistence,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		period:      DefaultControlPeriod,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize builds the graph, opens the backend, restores saved settings
// and starts the control loop. A second call is a no-op. A backend that
// cannot be opened is fatal and returned to the caller.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.graph != nil {
		return nil
	}
	if e.closed {
		return ErrNotInitialized
	}
	if e.backend == nil {
		return fmt.Errorf("%w: no backend", ErrBackendUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	graph, err := NewSignalGraph(e.backend.SampleRate())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := e.backend.Open(graph); err != nil {
		return fmt.Errorf("open backend: %w", err)
	}

	e.graph = graph
	e.playback = NewPlaybackController(graph, e.backend)
	e.gate = NewGateController(graph)
	e.meter = NewMeteringService(graph, e.gate)

	state := DefaultState()
	if e.persistence != nil {
		saved, ok, err := e.persistence.LoadState()
		switch {
		case err != nil:
			e.logger.Warn("restore channel state", "err", err)
		case ok:
			state = saved
			e.restored = true
		}
	}
	e.applyLocked(state, false)

	if e.period > 0 {
		loopCtx, cancel := context.WithCancel(context.Background())
		e.cancel = cancel
		e.wg.Add(1)
		go e.run(loopCtx)
	}
	e.logger.Info("engine initialized", "sample_rate", graph.SampleRate(), "restored", e.restored)
	return nil
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()
	t := time.NewTicker(e.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			snap := e.Tick()
			if e.onLevels != nil {
				e.onLevels(snap)
			}
		}
	}
}

// Tick runs one control cycle (gate update, then a meter poll) and returns
// the snapshot. Before Initialize it returns a zero snapshot.
func (e *Engine) Tick() LevelsSnapshot {
	gate, meter := e.controlPath()
	if gate == nil {
		return LevelsSnapshot{}
	}
	e.tickMu.Lock()
	gate.Tick()
	e.tickMu.Unlock()
	return meter.Poll()
}

func (e *Engine) controlPath() (*GateController, *MeteringService) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate, e.meter
}

// Close stops the control loop and playback and closes the backend. It is
// safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	cancel := e.cancel
	e.cancel = nil
	playback := e.playback
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	if playback != nil {
		playback.Stop()
	}
	if e.backend != nil {
		return e.backend.Close()
	}
	return nil
}

// Graph returns the signal graph, or nil before Initialize.
func (e *Engine) Graph() *SignalGraph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph
}

// Gate returns the gate controller, or nil before Initialize.
func (e *Engine) Gate() *GateController {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate
}

func (e *Engine) withGraph(fn func(g *SignalGraph)) {
	if g := e.Graph(); g != nil {
		fn(g)
	}
}

// Start begins playback of the active source.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	p := e.playback
	e.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Start(ctx)
}

// Stop halts playback. It is a no-op when stopped.
func (e *Engine) Stop() {
	e.mu.Lock()
	p := e.playback
	e.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

// PlaybackState reports the transport state.
func (e *Engine) PlaybackState() PlaybackState {
	e.mu.Lock()
	p := e.playback
	e.mu.Unlock()
	if p == nil {
		return Stopped
	}
	return p.State()
}

// SetActiveSource selects the slot that feeds the channel. Selecting a slot
// without a buffer leaves the current source in place.
func (e *Engine) SetActiveSource(key InstrumentKey) error {
	e.mu.Lock()
	p := e.playback
	e.mu.Unlock()
	if p == nil {
		return ErrNotInitialized
	}
	if e.samples == nil {
		return nil
	}
	buf, ok := e.samples.Buffer(key)
	if !ok {
		return nil
	}
	p.SetActiveSource(buf)
	return nil
}

// AssignFileToInstrument decodes raw audio into slot key and makes it the
// active source.
func (e *Engine) AssignFileToInstrument(key InstrumentKey, raw []byte) (BufferInfo, error) {
	e.mu.Lock()
	p := e.playback
	e.mu.Unlock()
	if p == nil {
		return BufferInfo{}, ErrNotInitialized
	}
	a, ok := e.samples.(SampleAssigner)
	if !ok {
		return BufferInfo{}, ErrReadOnlyProvider
	}
	buf, err := a.Assign(key, raw)
	if err != nil {
		return BufferInfo{}, err
	}
	p.SetActiveSource(buf)
	return infoOf(buf), nil
}

// Preview plays slot key once over whatever is playing.
func (e *Engine) Preview(key InstrumentKey) {
	e.mu.Lock()
	p := e.playback
	e.mu.Unlock()
	if p == nil || e.samples == nil {
		return
	}
	if buf, ok := e.samples.Buffer(key); ok {
		p.Preview(buf)
	}
}

// IsInstrumentLoaded reports whether slot key has a decoded buffer.
func (e *Engine) IsInstrumentLoaded(key InstrumentKey) bool {
	if e.samples == nil {
		return false
	}
	return e.samples.IsLoaded(key)
}

// GetLevels polls the meters.
func (e *Engine) GetLevels() LevelsSnapshot {
	_, meter := e.controlPath()
	if meter == nil {
		return LevelsSnapshot{}
	}
	return meter.Poll()
}

// Waveform copies the most recent post-fader mono signal into dst, oldest
// sample first.
func (e *Engine) Waveform(dst []float64) []float64 {
	g := e.Graph()
	if g == nil {
		return dst[:0]
	}
	l, r := g.MeterTaps()
	dst = l.TimeDomain(dst)
	right := r.TimeDomain(nil)
	for i := range dst {
		dst[i] = 0.5 * (dst[i] + right[i])
	}
	return dst
}

// WasRestored reports whether settings came from persistence or were
// committed with CommitPreset.
func (e *Engine) WasRestored() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.restored
}

// CommitPreset saves the current settings and marks them as restored.
func (e *Engine) CommitPreset() error {
	g := e.Graph()
	if g == nil {
		return ErrNotInitialized
	}
	if e.persistence != nil {
		if err := e.persistence.SaveState(g.State()); err != nil {
			return fmt.Errorf("commit preset: %w", err)
		}
	}
	e.mu.Lock()
	e.restored = true
	e.mu.Unlock()
	return nil
}

// State returns the stored channel settings.
func (e *Engine) State() ChannelStripState {
	if g := e.Graph(); g != nil {
		return g.State()
	}
	return DefaultState()
}

// ApplyState pushes a whole set of panel settings through the setters and
// saves them.
func (e *Engine) ApplyState(s ChannelStripState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.graph == nil {
		return
	}
	e.applyLocked(s, true)
}

func (e *Engine) applyLocked(s ChannelStripState, save bool) {
	g := e.graph
	s = s.Clamp()

	if !s.Power {
		g.SetMasterVolume(0)
		g.replaceState(s)
		e.save(s, save)
		return
	}

	g.SetInputGain(s.InputGainDB)
	g.SetSaturation(s.Saturation)
	g.SetFilters(s.HPFHz, s.LPFHz)
	g.SetDynamics(s.Compressor, s.Switches())
	g.SetGate(s.Gate)
	g.SetEQFlat(!s.EQIn || s.MasterBypass)
	for _, b := range Bands() {
		eq := s.EQ[b]
		g.SetEQBand(b, eq.FreqHz, eq.GainDB, eq.Q, eq.Bell)
	}
	g.SetOutputGain(s.OutputGainDB)
	g.SetMasterVolume(s.Fader)
	g.replaceState(s)
	e.save(s, save)
}

func (e *Engine) save(s ChannelStripState, save bool) {
	if !save || e.persistence == nil {
		return
	}
	if err := e.persistence.SaveState(s); err != nil {
		e.logger.Warn("save channel state", "err", err)
	}
}

// SetInputGain ramps the input trim. Before Initialize the call is
// ignored, as are the other setters.
func (e *Engine) SetInputGain(db float64) {
	e.withGraph(func(g *SignalGraph) { g.SetInputGain(db) })
}

// SetSaturation ramps the preamp drive.
func (e *Engine) SetSaturation(amount float64) {
	e.withGraph(func(g *SignalGraph) { g.SetSaturation(amount) })
}

// SetFilters ramps the high- and low-pass cutoffs.
func (e *Engine) SetFilters(hpfHz, lpfHz float64) {
	e.withGraph(func(g *SignalGraph) { g.SetFilters(hpfHz, lpfHz) })
}

// SetDynamics sets the compressor and the dynamics switches.
func (e *Engine) SetDynamics(cfg CompressorConfig, sw Switches) {
	e.withGraph(func(g *SignalGraph) { g.SetDynamics(cfg, sw) })
}

// SetGate stores the gate controls.
func (e *Engine) SetGate(cfg GateConfig) {
	e.withGraph(func(g *SignalGraph) { g.SetGate(cfg) })
}

// SetEQBand sets one EQ section.
func (e *Engine) SetEQBand(band Band, freqHz, gainDB, q float64, bell bool) {
	e.withGraph(func(g *SignalGraph) { g.SetEQBand(band, freqHz, gainDB, q, bell) })
}

// BypassBand mutes one EQ section's gain while keeping its settings.
func (e *Engine) BypassBand(band Band, bypassed bool) {
	e.withGraph(func(g *SignalGraph) { g.BypassBand(band, bypassed) })
}

// SetOutputGain ramps the output trim.
func (e *Engine) SetOutputGain(db float64) {
	e.withGraph(func(g *SignalGraph) { g.SetOutputGain(db) })
}

// SetMasterVolume ramps the master fader.
func (e *Engine) SetMasterVolume(linear float64) {
	e.withGraph(func(g *SignalGraph) { g.SetMasterVolume(linear) })
}

// SetEQFlat switches the EQ section out or back in without touching the
// stored band settings.
func (e *Engine) SetEQFlat(flat bool) {
	e.withGraph(func(g *SignalGraph) { g.SetEQFlat(flat) })
}

// PlayUISound plays a confirmation beep past the channel. Before Initialize
// it does nothing.
func (e *Engine) PlayUISound(sound UISound) {
	e.withGraph(func(g *SignalGraph) { g.PlayUISound(sound) })
}
