package strip

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/cwbudde/algo-strip/internal/wavio"
)

// SampleProvider supplies decoded source buffers by instrument.
type SampleProvider interface {
	Buffer(key InstrumentKey) (*Buffer, bool)
	IsLoaded(key InstrumentKey) bool
}

// SampleAssigner accepts user audio for a slot.
type SampleAssigner interface {
	Assign(key InstrumentKey, raw []byte) (*Buffer, error)
}

// BufferInfo describes a decoded buffer.
type BufferInfo struct {
	Frames     int
	Channels   int
	SampleRate int
}

func infoOf(b *Buffer) BufferInfo {
	return BufferInfo{Frames: b.Frames(), Channels: b.NumChannels(), SampleRate: b.SampleRate}
}

// SampleLibrary is an in-memory SampleProvider. Every buffer it holds has
// been resampled to the library's rate.
type SampleLibrary struct {
	sampleRate int
	logger     *slog.Logger

	mu      sync.RWMutex
	buffers map[InstrumentKey]*Buffer
}

// NewSampleLibrary creates an empty library at sampleRate. A nil logger
// discards.
func NewSampleLibrary(sampleRate int, logger *slog.Logger) *SampleLibrary {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SampleLibrary{
		sampleRate: sampleRate,
		logger:     logger,
		buffers:    make(map[InstrumentKey]*Buffer),
	}
}

// Buffer returns the slot's buffer.
func (l *SampleLibrary) Buffer(key InstrumentKey) (*Buffer, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.buffers[key]
	return b, ok
}

// IsLoaded reports whether the slot holds a decoded buffer.
func (l *SampleLibrary) IsLoaded(key InstrumentKey) bool {
	_, ok := l.Buffer(key)
	return ok
}

// Assign decodes raw WAV bytes into the slot, replacing what was there.
func (l *SampleLibrary) Assign(key InstrumentKey, raw []byte) (*Buffer, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnknownInstrument, key)
	}
	buf, err := l.decode(raw)
	if err != nil {
		return nil, err
	}
	l.Put(key, buf)
	return buf, nil
}

// Put stores an already decoded buffer. It must be at the library rate.
func (l *SampleLibrary) Put(key InstrumentKey, buf *Buffer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buffers[key] = buf
}

// LoadDir loads every factory instrument's sample from dir in parallel,
// using InstrumentKey.FileName. A missing or undecodable file leaves that
// instrument unloaded and is logged; it never stops the batch. It returns
// the number of instruments loaded.
func (l *SampleLibrary) LoadDir(ctx context.Context, dir string) int {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		loaded int
	)
	for _, inst := range AllInstruments() {
		key := Named(inst)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			path := filepath.Join(dir, key.FileName())
			raw, err := os.ReadFile(path)
			if err != nil {
				l.logger.Debug("sample unavailable", "instrument", key, "path", path, "err", err)
				return
			}
			if _, err := l.Assign(key, raw); err != nil {
				l.logger.Warn("sample decode failed", "instrument", key, "path", path, "err", err)
				return
			}
			mu.Lock()
			loaded++
			mu.Unlock()
		}()
	}
	wg.Wait()
	l.logger.Info("samples loaded", "dir", dir, "loaded", loaded, "total", len(AllInstruments()))
	return loaded
}

func (l *SampleLibrary) decode(raw []byte) (*Buffer, error) {
	chans, rate, err := wavio.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	chans, err = wavio.ResampleChannels(chans, rate, l.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return NewBuffer(l.sampleRate, chans...)
}
