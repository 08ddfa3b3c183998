package commands

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cortexswarm/vadplus-go"
)

func TestFeedSession_TransientInferenceErrorSucceeds(t *testing.T) {
	t.Parallel()

	calls := 0
	scorer := vadplus.ScorerFunc(func(_ []float32, _ int, _ []float32) (float32, []float32, error) {
		calls++
		if calls == 1 {
			return 0, nil, errors.New("transient")
		}
		return 0.1, make([]float32, vadplus.StateSize), nil
	})
	var errorEvents int
	sink := vadplus.SinkFunc(func(ev vadplus.Event) {
		if ev.Type == vadplus.EventError {
			errorEvents++
		}
	})
	sess, err := vadplus.New(scorer, sink)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sess.Close()
	cfg := vadplus.DefaultConfig()
	if err := sess.Init(cfg); err != nil {
		t.Fatalf("Init: %v", err)
	}

	core, logs := observer.New(zapcore.WarnLevel)
	samples := make([]float32, 4*cfg.FrameSamples)
	if err := feedSession(context.Background(), sess, samples, 1600, zap.New(core)); err != nil {
		t.Fatalf("feedSession = %v, want nil after a transient error", err)
	}
	if sess.LastError() == nil {
		t.Error("LastError is nil, want the inference error")
	}
	if errorEvents != 1 {
		t.Errorf("error events = %d, want 1", errorEvents)
	}
	if calls != 4 {
		t.Errorf("scorer calls = %d, want 4", calls)
	}
	if n := logs.FilterMessage("inference errors during run").Len(); n != 1 {
		t.Errorf("warn logs = %d, want 1", n)
	}
}

func TestFeedSession_CancelledContextStops(t *testing.T) {
	t.Parallel()

	calls := 0
	scorer := vadplus.ScorerFunc(func(_ []float32, _ int, _ []float32) (float32, []float32, error) {
		calls++
		return 0.1, make([]float32, vadplus.StateSize), nil
	})
	sess, err := vadplus.New(scorer, vadplus.SinkFunc(func(vadplus.Event) {}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sess.Close()
	cfg := vadplus.DefaultConfig()
	if err := sess.Init(cfg); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := feedSession(ctx, sess, make([]float32, 4*cfg.FrameSamples), 1600, zap.NewNop()); err != nil {
		t.Fatalf("feedSession: %v", err)
	}
	if calls != 0 {
		t.Errorf("scorer calls = %d, want 0 after cancel", calls)
	}
	if sess.State() != vadplus.StateInitialized {
		t.Errorf("state = %v, want initialized", sess.State())
	}
}
