package vadplus

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMeterProvider(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumInt64 returns the int64 sum data point matching attrs, or the total
// across points when attrs is empty.
func sumInt64(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is %T, want Sum[int64]", name, m.Data)
	}
	want := attribute.NewSet(attrs...)
	var total int64
	for _, dp := range sum.DataPoints {
		if len(attrs) == 0 || dp.Attributes.Equals(&want) {
			total += dp.Value
		}
	}
	return total
}

func TestMetrics_SessionRecords(t *testing.T) {
	mp, reader := newTestMeterProvider(t)
	cfg := testConfig()
	cfg.MinSpeechFrames = 3

	// speech x3 + silence x2 -> speech_end; speech x1 + silence x2 -> misfire;
	// then one failing call.
	probs := []float32{0.9, 0.9, 0.9, 0.1, 0.1, 0.9, 0.1, 0.1, 0.1}
	sc := newScriptedScorer(probs...)
	sc.fail[len(probs)] = errScorer
	s, _ := newTestSession(t, sc, WithMeterProvider(mp))
	mustInit(t, s, cfg)

	if err := s.ProcessAudio(make([]float32, (len(probs)+1)*cfg.FrameSamples)); err != nil {
		t.Fatalf("ProcessAudio: %v", err)
	}

	rm := collect(t, reader)
	if got := sumInt64(t, rm, "vadplus.frames.processed"); got != int64(len(probs)) {
		t.Errorf("frames.processed = %d, want %d", got, len(probs))
	}
	if got := sumInt64(t, rm, "vadplus.segments", attribute.String("outcome", OutcomeSpeechEnd)); got != 1 {
		t.Errorf("segments{speech_end} = %d, want 1", got)
	}
	if got := sumInt64(t, rm, "vadplus.segments", attribute.String("outcome", OutcomeMisfire)); got != 1 {
		t.Errorf("segments{misfire} = %d, want 1", got)
	}
	if got := sumInt64(t, rm, "vadplus.inference.errors"); got != 1 {
		t.Errorf("inference.errors = %d, want 1", got)
	}
	if got := sumInt64(t, rm, "vadplus.active_sessions"); got != 1 {
		t.Errorf("active_sessions = %d, want 1", got)
	}

	hist := findMetric(rm, "vadplus.inference.duration")
	if hist == nil {
		t.Fatal("inference.duration not recorded")
	}
	h, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok || len(h.DataPoints) != 1 || h.DataPoints[0].Count != uint64(len(probs)+1) {
		t.Errorf("inference.duration = %+v, want %d observations", hist.Data, len(probs)+1)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	rm = collect(t, reader)
	if got := sumInt64(t, rm, "vadplus.active_sessions"); got != 0 {
		t.Errorf("active_sessions after Close = %d, want 0", got)
	}
}

func TestMetrics_ForceEndDropCounted(t *testing.T) {
	mp, reader := newTestMeterProvider(t)
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	cfg := testConfig()
	cfg.MinSpeechFrames = 5
	s, _ := newTestSession(t, newScriptedScorer(0.9), WithMetrics(m))
	mustInit(t, s, cfg)
	_ = s.ProcessAudio(make([]float32, cfg.FrameSamples))
	_ = s.ForceEndSpeech()

	rm := collect(t, reader)
	if got := sumInt64(t, rm, "vadplus.segments", attribute.String("outcome", OutcomeDiscarded)); got != 1 {
		t.Errorf("segments{discarded} = %d, want 1", got)
	}
}

func TestMetrics_NilIsSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	ctx := context.Background()
	m.recordFrame(ctx)
	m.recordInferenceError(ctx)
	m.recordInferenceDuration(ctx, 0)
	m.recordSegment(ctx, OutcomeSpeechEnd, &SpeechSegment{})
	m.addActiveSession(ctx, 1)
}
