package vadplus

import (
	"context"
	"fmt"
	"math"
	"time"
)

// StateSize is the length of the recurrent state vector (2 x 1 x 128).
const StateSize = 2 * 1 * 128

// Scorer maps a context-augmented frame and recurrent state to a speech
// probability and the next state. input is ContextSize+FrameSamples long.
// Implementations must be deterministic for identical inputs, must neither
// modify nor retain input and state, and must return a state of StateSize.
type Scorer interface {
	Score(input []float32, sampleRate int, state []float32) (prob float32, next []float32, err error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(input []float32, sampleRate int, state []float32) (float32, []float32, error)

// Score calls f.
func (f ScorerFunc) Score(input []float32, sampleRate int, state []float32) (float32, []float32, error) {
	return f(input, sampleRate, state)
}

// inferenceContext owns the context window and recurrent state carried
// between scorer calls. It is the only place either is mutated.
type inferenceContext struct {
	scorer     Scorer
	sampleRate int
	metrics    *Metrics

	context []float32
	state   []float32
	input   []float32 // scratch: context ++ frame
	frames  uint64
}

func newInferenceContext(scorer Scorer, sampleRate, contextSize, frameSamples int, m *Metrics) *inferenceContext {
	return &inferenceContext{
		scorer:     scorer,
		sampleRate: sampleRate,
		metrics:    m,
		context:    make([]float32, contextSize),
		state:      make([]float32, StateSize),
		input:      make([]float32, contextSize+frameSamples),
	}
}

// score runs the scorer for frame. On error neither the context window nor
// the state changes.
func (ic *inferenceContext) score(frame []float32) (float32, error) {
	idx := ic.frames
	ic.frames++

	n := len(ic.context)
	if len(frame)+n != len(ic.input) {
		return 0, &InferenceError{Frame: idx, Err: fmt.Errorf("%w: frame has %d samples, want %d", ErrInvalidInput, len(frame), len(ic.input)-n)}
	}
	copy(ic.input[:n], ic.context)
	copy(ic.input[n:], frame)

	start := time.Now()
	prob, next, err := ic.scorer.Score(ic.input, ic.sampleRate, ic.state)
	ic.metrics.recordInferenceDuration(context.Background(), time.Since(start))
	if err != nil {
		return 0, &InferenceError{Frame: idx, Err: err}
	}
	if len(next) != StateSize {
		return 0, &InferenceError{Frame: idx, Err: fmt.Errorf("%w: scorer returned state of %d values, want %d", ErrInvalidInput, len(next), StateSize)}
	}
	if math.IsNaN(float64(prob)) || prob < 0 || prob > 1 {
		return 0, &InferenceError{Frame: idx, Err: fmt.Errorf("%w: probability %v is out of range [0, 1]", ErrInvalidInput, prob)}
	}

	copy(ic.state, next)
	copy(ic.context, ic.input[len(ic.input)-n:])
	return prob, nil
}

func (ic *inferenceContext) reset() {
	clear(ic.context)
	clear(ic.state)
}
