package vadplus

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all vadplus metrics.
const meterName = "github.com/cortexswarm/vadplus-go"

// Segment outcomes recorded on vadplus.segments.
const (
	OutcomeSpeechEnd = "speech_end"
	OutcomeMisfire   = "misfire"
	OutcomeDiscarded = "discarded"
)

// Metrics holds the OpenTelemetry instruments used by sessions. All fields
// are safe for concurrent use.
type Metrics struct {
	FramesProcessed metric.Int64Counter
	// Segments counts closed segments by attribute "outcome".
	Segments        metric.Int64Counter
	InferenceErrors metric.Int64Counter

	InferenceDuration metric.Float64Histogram
	SegmentDuration   metric.Float64Histogram

	ActiveSessions metric.Int64UpDownCounter
}

// inferenceBuckets are in seconds, sized for a 32 ms frame budget.
var inferenceBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
}

var segmentBuckets = []float64{
	0.25, 0.5, 1, 2, 5, 10, 30, 60, 120,
}

// NewMetrics creates the instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesProcessed, err = m.Int64Counter("vadplus.frames.processed",
		metric.WithDescription("Frames scored and run through the segmenter."),
	); err != nil {
		return nil, err
	}
	if met.Segments, err = m.Int64Counter("vadplus.segments",
		metric.WithDescription("Closed speech segments by outcome."),
	); err != nil {
		return nil, err
	}
	if met.InferenceErrors, err = m.Int64Counter("vadplus.inference.errors",
		metric.WithDescription("Frames whose scorer call failed."),
	); err != nil {
		return nil, err
	}
	if met.InferenceDuration, err = m.Float64Histogram("vadplus.inference.duration",
		metric.WithDescription("Latency of one scorer call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(inferenceBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SegmentDuration, err = m.Float64Histogram("vadplus.segment.duration",
		metric.WithDescription("Audio duration of emitted speech segments."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(segmentBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("vadplus.active_sessions",
		metric.WithDescription("Initialized sessions that are not disposed."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

// The record helpers accept a nil receiver so components can run without
// instruments.

func (m *Metrics) recordInferenceDuration(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.InferenceDuration.Record(ctx, d.Seconds())
}

func (m *Metrics) recordInferenceError(ctx context.Context) {
	if m == nil {
		return
	}
	m.InferenceErrors.Add(ctx, 1)
}

func (m *Metrics) recordFrame(ctx context.Context) {
	if m == nil {
		return
	}
	m.FramesProcessed.Add(ctx, 1)
}

func (m *Metrics) recordSegment(ctx context.Context, outcome string, seg *SpeechSegment) {
	if m == nil {
		return
	}
	m.Segments.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if seg != nil {
		m.SegmentDuration.Record(ctx, float64(seg.DurationMs)/1000)
	}
}

func (m *Metrics) addActiveSession(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveSessions.Add(ctx, delta)
}
