package vadplus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Lifecycle states reported by Session.State.
const (
	StateCreated     = "created"
	StateInitialized = "initialized"
	StateRunning     = "running"
	StateDisposed    = "disposed"
)

const (
	evInit  = "init"
	evStart = "start"
	evStop  = "stop"
	evClose = "close"
)

// Source is an audio producer such as a microphone. Start must return
// without calling deliver or fail synchronously; afterwards both are called
// from a single goroutine until Stop returns. Samples are normalized mono
// floats at the session sample rate.
type Source interface {
	Start(deliver func(samples []float32), fail func(err error)) error
	Stop() error
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMeterProvider creates the session's instruments from mp instead of the
// global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Session) { s.meterProvider = mp }
}

// WithMetrics shares an existing instrument set between sessions.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithSource attaches an audio source that Start and Stop drive.
func WithSource(src Source) Option {
	return func(s *Session) { s.source = src }
}

// WithID sets the session identifier used in logs.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// Session is one voice-activity pipeline: frames, scoring, segmentation and
// event delivery. All methods are safe for concurrent use; they are
// serialized behind one mutex, including deliveries from the Source.
type Session struct {
	id            string
	scorer        Scorer
	sink          EventSink
	source        Source
	logger        *zap.Logger
	metrics       *Metrics
	meterProvider metric.MeterProvider

	mu        sync.Mutex
	lifecycle *fsm.FSM
	cfg       Config
	frames    *frameAccumulator
	infer     *inferenceContext
	seg       *segmenter
	lastErr   error
	// stopping is set while Stop waits for the source with s.mu released.
	stopping bool
}

// New creates a session in the created state. Call Init before feeding
// audio. A nil sink discards events.
func New(scorer Scorer, sink EventSink, opts ...Option) (*Session, error) {
	if scorer == nil {
		return nil, errors.New("vadplus: scorer is required")
	}
	if sink == nil {
		sink = nopSink{}
	}
	s := &Session{
		id:     uuid.NewString(),
		scorer: scorer,
		sink:   sink,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		mp := s.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		m, err := NewMetrics(mp)
		if err != nil {
			return nil, fmt.Errorf("vadplus: create metrics: %w", err)
		}
		s.metrics = m
	}
	s.logger = s.logger.Named("vadplus").With(zap.String("session_id", s.id))
	s.lifecycle = fsm.NewFSM(StateCreated, fsm.Events{
		{Name: evInit, Src: []string{StateCreated}, Dst: StateInitialized},
		{Name: evStart, Src: []string{StateInitialized}, Dst: StateRunning},
		{Name: evStop, Src: []string{StateInitialized, StateRunning}, Dst: StateInitialized},
		{Name: evClose, Src: []string{StateCreated, StateInitialized, StateRunning}, Dst: StateDisposed},
	}, fsm.Callbacks{})
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the lifecycle state name.
func (s *Session) State() string { return s.lifecycle.Current() }

// Config returns the configuration passed to Init.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Init validates cfg, allocates the pipeline and emits Initialized.
func (s *Session) Init(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(evInit); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.transition(evInit); err != nil {
		return err
	}
	s.cfg = cfg
	s.frames = newFrameAccumulator(cfg.FrameSamples)
	s.infer = newInferenceContext(s.scorer, cfg.SampleRate, cfg.ContextSize(), cfg.FrameSamples, s.metrics)
	s.seg = newSegmenter(cfg)
	s.metrics.addActiveSession(context.Background(), 1)

	s.logger.Info("session initialized",
		zap.Int("sample_rate", cfg.SampleRate),
		zap.Int("frame_samples", cfg.FrameSamples),
		zap.Float32("positive_threshold", cfg.PositiveSpeechThreshold),
		zap.Float32("negative_threshold", cfg.NegativeSpeechThreshold),
	)
	s.emit(Event{Type: EventInitialized})
	return nil
}

// Start begins processing audio from the attached Source. Without a source
// it only marks the session running; ProcessAudio works either way.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guard(evStart); err != nil {
		return err
	}
	if s.source != nil {
		if err := s.source.Start(s.deliver, s.fail); err != nil {
			cerr := &CaptureError{Err: err}
			s.lastErr = cerr
			return cerr
		}
	}
	if err := s.transition(evStart); err != nil {
		return err
	}
	s.logger.Info("session started", zap.Bool("source", s.source != nil))
	return nil
}

// ProcessAudio injects normalized samples directly. Frames are scored and
// segmented before it returns. Inference failures are reported as Error
// events and through LastError; they do not fail the call.
func (s *Session) ProcessAudio(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return err
	}
	s.frames.push(samples, s.processFrame)
	return nil
}

// Reset returns the session to silence with empty buffers and zeroed
// inference state. No events are emitted.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return err
	}
	s.resetLocked()
	s.logger.Debug("session reset")
	return nil
}

// ForceEndSpeech closes the current segment now. Segments shorter than
// MinSpeechFrames are dropped without a Misfire.
func (s *Session) ForceEndSpeech() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireActive(); err != nil {
		return err
	}
	if dropped := s.seg.forceEnd(s.emit); dropped {
		s.metrics.recordSegment(context.Background(), OutcomeDiscarded, nil)
		s.logger.Debug("forced end dropped short segment")
	}
	return nil
}

// Stop stops the source, emits SpeechEnd for any in-flight segment, resets
// and emits Stopped. The session can be started again.
func (s *Session) Stop() error {
	s.mu.Lock()
	if err := s.guard(evStop); err != nil {
		s.mu.Unlock()
		return err
	}
	wasRunning := s.lifecycle.Is(StateRunning)
	if err := s.transition(evStop); err != nil {
		s.mu.Unlock()
		return err
	}
	src := s.source
	s.stopping = true
	s.mu.Unlock()

	// The source pump may be waiting on s.mu, so it is stopped unlocked.
	var srcErr error
	if wasRunning && src != nil {
		srcErr = src.Stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopping = false
	if s.lifecycle.Is(StateDisposed) {
		return nil
	}
	s.seg.flush(s.emit)
	s.resetLocked()
	s.logger.Info("session stopped")
	s.emit(Event{Type: EventStopped})

	if srcErr != nil {
		cerr := &CaptureError{Err: srcErr}
		s.lastErr = cerr
		return cerr
	}
	return nil
}

// IsSpeaking reports whether a segment is in progress.
func (s *Session) IsSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seg != nil && s.seg.speaking
}

// LastError returns the most recent inference or capture error, or nil.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close releases the session. An in-flight segment is discarded without
// events. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.lifecycle.Is(StateDisposed) {
		s.mu.Unlock()
		return nil
	}
	wasRunning := s.lifecycle.Is(StateRunning)
	wasInit := !s.lifecycle.Is(StateCreated)
	if err := s.transition(evClose); err != nil {
		s.mu.Unlock()
		return err
	}
	src := s.source
	s.mu.Unlock()

	var err error
	if wasRunning && src != nil {
		if serr := src.Stop(); serr != nil {
			err = &CaptureError{Err: serr}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if wasInit {
		s.resetLocked()
		s.metrics.addActiveSession(context.Background(), -1)
	}
	s.frames, s.infer, s.seg = nil, nil, nil
	s.logger.Info("session closed")
	return err
}

// deliver is the Source callback.
func (s *Session) deliver(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lifecycle.Is(StateRunning) {
		return
	}
	s.frames.push(samples, s.processFrame)
}

// fail is the Source error callback.
func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lifecycle.Is(StateRunning) {
		return
	}
	cerr := &CaptureError{Err: err}
	s.lastErr = cerr
	s.logger.Warn("capture failed", zap.Error(err))
	s.emitError(cerr)
}

// processFrame scores one frame and runs the segmenter. Must be called with
// s.mu held.
func (s *Session) processFrame(frame []float32) {
	ctx := context.Background()
	prob, err := s.infer.score(frame)
	if err != nil {
		s.lastErr = err
		s.metrics.recordInferenceError(ctx)
		s.logger.Warn("inference failed", zap.Error(err))
		s.emitError(err)
		return
	}
	s.metrics.recordFrame(ctx)
	if s.cfg.Debug {
		s.logger.Debug("frame scored",
			zap.Float32("probability", prob),
			zap.Bool("speaking", s.seg.speaking),
			zap.Int("speech_frames", s.seg.speechFrames),
			zap.Int("silence_frames", s.seg.silenceFrames),
		)
	}
	s.seg.process(frame, prob, s.emit)
}

// emit records metrics and logs for ev and hands it to the sink. Must be
// called with s.mu held.
func (s *Session) emit(ev Event) {
	ctx := context.Background()
	switch ev.Type {
	case EventSpeechStart:
		s.logger.Debug("speech start")
	case EventRealSpeechStart:
		s.logger.Debug("speech confirmed")
	case EventMisfire:
		s.metrics.recordSegment(ctx, OutcomeMisfire, nil)
		s.logger.Debug("misfire")
	case EventSpeechEnd:
		s.metrics.recordSegment(ctx, OutcomeSpeechEnd, ev.Segment)
		s.logger.Debug("speech end",
			zap.Int("samples", ev.Segment.Len()),
			zap.Int("duration_ms", ev.Segment.DurationMs),
		)
	}
	s.sink.HandleEvent(ev)
}

func (s *Session) emitError(err error) {
	s.emit(Event{
		Type: EventError,
		Err:  &ErrorData{Message: err.Error(), Code: codeFor(err), Err: err},
	})
}

func (s *Session) resetLocked() {
	s.frames.reset()
	s.infer.reset()
	s.seg.reset()
}

// guard maps a disallowed lifecycle event to its error. Must be called with
// s.mu held.
func (s *Session) guard(event string) error {
	switch {
	case s.lifecycle.Is(StateDisposed):
		return ErrAlreadyDisposed
	case s.stopping && (event == evStart || event == evStop):
		return ErrStopping
	case s.lifecycle.Can(event):
		return nil
	case s.lifecycle.Is(StateCreated):
		return ErrNotInitialized
	case event == evInit:
		return ErrAlreadyInitialized
	case event == evStart:
		return ErrAlreadyRunning
	}
	return fmt.Errorf("vadplus: %s is not allowed in state %s", event, s.lifecycle.Current())
}

func (s *Session) requireActive() error {
	switch {
	case s.lifecycle.Is(StateDisposed):
		return ErrAlreadyDisposed
	case s.lifecycle.Is(StateCreated):
		return ErrNotInitialized
	}
	return nil
}

func (s *Session) transition(event string) error {
	err := s.lifecycle.Event(context.Background(), event)
	var noop fsm.NoTransitionError
	if err != nil && !errors.As(err, &noop) {
		return fmt.Errorf("vadplus: %s: %w", event, err)
	}
	return nil
}
