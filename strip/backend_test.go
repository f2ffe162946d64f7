package strip

import (
	"context"
	"errors"
	"testing"
)

type constRenderer float64

func (c constRenderer) Render(left, right []float64) {
	for i := range left {
		left[i] = float64(c)
		right[i] = -float64(c)
	}
}

func TestOfflineBackendPull(t *testing.T) {
	b := NewOfflineBackend(testSampleRate)
	left, _ := b.Pull(64)
	if left[0] != 0 || b.FramesRendered() != 0 {
		t.Fatalf("unopened backend rendered")
	}
	if err := b.Open(constRenderer(0.25)); err != nil {
		t.Fatalf("Open: %v", err)
	}
	left, right := b.Pull(64)
	if left[63] != 0.25 || right[63] != -0.25 || b.FramesRendered() != 64 {
		t.Fatalf("pull: %f %f frames=%d", left[63], right[63], b.FramesRendered())
	}

	_ = b.Suspend()
	left, _ = b.Pull(64)
	if left[0] != 0 || b.FramesRendered() != 64 {
		t.Fatalf("suspended backend advanced")
	}
	if err := b.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if b.Suspended() {
		t.Fatalf("still suspended")
	}
}

func TestOfflineBackendClosed(t *testing.T) {
	b := NewOfflineBackend(testSampleRate)
	_ = b.Close()
	if err := b.Open(constRenderer(1)); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewOfflineBackend(testSampleRate).Resume(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := NewOfflineBackend(0).Open(constRenderer(1)); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable for zero rate, got %v", err)
	}
}
