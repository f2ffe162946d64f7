package strip

import "errors"

var (
	// ErrBackendUnavailable is returned when the audio device cannot be
	// opened. It is fatal for Initialize; the engine does not retry.
	ErrBackendUnavailable = errors.New("audio backend unavailable")
	// ErrNotInitialized is returned by operations that need the graph.
	ErrNotInitialized = errors.New("engine not initialized")
	// ErrDecode marks audio data that could not be decoded.
	ErrDecode = errors.New("decode audio")
	// ErrUnknownInstrument marks an invalid instrument key.
	ErrUnknownInstrument = errors.New("unknown instrument")
	// ErrReadOnlyProvider is returned when the sample provider cannot
	// accept user files.
	ErrReadOnlyProvider = errors.New("sample provider does not accept assignments")
)
