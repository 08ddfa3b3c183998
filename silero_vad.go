package vadplus

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var errSileroClosed = errors.New("silero: scorer is closed")

// SileroScorer runs the Silero VAD ONNX model. Tensors are allocated once for
// a fixed sample rate and frame size. Safe for concurrent use; calls are
// serialized.
type SileroScorer struct {
	mu         sync.Mutex
	sampleRate int

	session  *ort.AdvancedSession
	input    *ort.Tensor[float32] // (1, context+frame)
	state    *ort.Tensor[float32] // (2, 1, 128)
	sr       *ort.Tensor[int64]   // (1,)
	output   *ort.Tensor[float32] // (1, 1) speech prob
	stateOut *ort.Tensor[float32] // (2, 1, 128) new state
}

// NewSileroScorer loads the model at modelPath for frames of frameSamples at
// sampleRate. InitRuntime must have succeeded first.
func NewSileroScorer(modelPath string, sampleRate, frameSamples int) (*SileroScorer, error) {
	ctxSize := contextSizeFor(sampleRate)
	if ctxSize == 0 {
		return nil, fmt.Errorf("silero: %w: unsupported sample rate %d", ErrInvalidConfig, sampleRate)
	}
	if frameSamples <= 0 {
		return nil, fmt.Errorf("silero: %w: frame samples must be positive", ErrInvalidConfig)
	}

	var values []ort.Value
	destroyAll := func() {
		for _, v := range values {
			_ = v.Destroy()
		}
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(ctxSize+frameSamples)), make([]float32, ctxSize+frameSamples))
	if err != nil {
		return nil, fmt.Errorf("silero: input tensor: %w", err)
	}
	values = append(values, inputTensor)

	stateTensor, err := ort.NewTensor(ort.NewShape(2, 1, 128), make([]float32, StateSize))
	if err != nil {
		destroyAll()
		return nil, fmt.Errorf("silero: state tensor: %w", err)
	}
	values = append(values, stateTensor)

	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{int64(sampleRate)})
	if err != nil {
		destroyAll()
		return nil, fmt.Errorf("silero: sr tensor: %w", err)
	}
	values = append(values, srTensor)

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		destroyAll()
		return nil, fmt.Errorf("silero: output tensor: %w", err)
	}
	values = append(values, outputTensor)

	stateOutTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128))
	if err != nil {
		destroyAll()
		return nil, fmt.Errorf("silero: stateN tensor: %w", err)
	}
	values = append(values, stateOutTensor)

	sess, err := ort.NewAdvancedSession(modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		[]ort.Value{inputTensor, stateTensor, srTensor},
		[]ort.Value{outputTensor, stateOutTensor},
		nil)
	if err != nil {
		destroyAll()
		return nil, fmt.Errorf("silero: load %s: %w", modelPath, err)
	}

	return &SileroScorer{
		sampleRate: sampleRate,
		session:    sess,
		input:      inputTensor,
		state:      stateTensor,
		sr:         srTensor,
		output:     outputTensor,
		stateOut:   stateOutTensor,
	}, nil
}

// Score implements Scorer. The returned state is a fresh slice.
func (v *SileroScorer) Score(input []float32, sampleRate int, state []float32) (float32, []float32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.session == nil {
		return 0, nil, errSileroClosed
	}
	if sampleRate != v.sampleRate {
		return 0, nil, fmt.Errorf("silero: session loaded for %d Hz, got %d", v.sampleRate, sampleRate)
	}
	inputData := v.input.GetData()
	if len(input) != len(inputData) {
		return 0, nil, fmt.Errorf("silero: input has %d samples, want %d", len(input), len(inputData))
	}
	if len(state) != StateSize {
		return 0, nil, fmt.Errorf("silero: state has %d values, want %d", len(state), StateSize)
	}

	copy(inputData, input)
	copy(v.state.GetData(), state)

	if err := v.session.Run(); err != nil {
		return 0, nil, fmt.Errorf("silero: run: %w", err)
	}

	prob := v.output.GetData()[0]
	next := make([]float32, StateSize)
	copy(next, v.stateOut.GetData())
	return prob, next, nil
}

// Close releases the ONNX session and tensors.
func (v *SileroScorer) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.session == nil {
		return nil
	}
	err := v.session.Destroy()
	for _, t := range []ort.Value{v.input, v.state, v.sr, v.output, v.stateOut} {
		err = errors.Join(err, t.Destroy())
	}
	v.session = nil
	return err
}
