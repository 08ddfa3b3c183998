package vadplus

import (
	"errors"
	"slices"
	"sync"
	"testing"
)

// scriptedScorer returns probabilities from a fixed script, one per call.
// Calls past the end return the last value. Entries listed in fail return an
// error instead.
type scriptedScorer struct {
	mu     sync.Mutex
	probs  []float32
	fail   map[int]error
	calls  int
	inputs [][]float32
	states [][]float32
}

func newScriptedScorer(probs ...float32) *scriptedScorer {
	return &scriptedScorer{probs: probs, fail: map[int]error{}}
}

func (s *scriptedScorer) Score(input []float32, _ int, state []float32) (float32, []float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := s.calls
	s.calls++
	s.inputs = append(s.inputs, slices.Clone(input))
	s.states = append(s.states, slices.Clone(state))

	if err, ok := s.fail[call]; ok {
		return 0, nil, err
	}
	var p float32
	if len(s.probs) > 0 {
		p = s.probs[min(call, len(s.probs)-1)]
	}
	next := make([]float32, StateSize)
	for i := range next {
		next[i] = float32(call + 1)
	}
	return p, next, nil
}

func (s *scriptedScorer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// recorder is an EventSink that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) HandleEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// types returns the recorded event types, without FrameProcessed.
func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventType
	for _, ev := range r.events {
		if ev.Type != EventFrameProcessed {
			out = append(out, ev.Type)
		}
	}
	return out
}

func (r *recorder) count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) segments() []SpeechSegment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SpeechSegment
	for _, ev := range r.events {
		if ev.Type == EventSpeechEnd {
			out = append(out, *ev.Segment)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// testConfig is a small 16 kHz config with two-sample frames.
func testConfig() Config {
	return Config{
		PositiveSpeechThreshold: 0.5,
		NegativeSpeechThreshold: 0.3,
		PreSpeechPadFrames:      1,
		RedemptionFrames:        2,
		MinSpeechFrames:         2,
		EndSpeechPadFrames:      0,
		SampleRate:              SampleRate16k,
		FrameSamples:            2,
	}
}

// frame returns a frameSamples-long frame whose samples all equal v.
func frame(frameSamples int, v float32) []float32 {
	f := make([]float32, frameSamples)
	for i := range f {
		f[i] = v
	}
	return f
}

// framesFor returns n frames with distinct values 0.01, 0.02, ...
func framesFor(n, frameSamples int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = frame(frameSamples, float32(i+1)/100)
	}
	return out
}

func concat(frames ...[]float32) []float32 {
	var out []float32
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

func assertTypes(t *testing.T, got []EventType, want ...EventType) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

var errScorer = errors.New("scorer exploded")
