package vadplus

// frameAccumulator regroups an arbitrarily chunked sample stream into fixed,
// non-overlapping frames. Not safe for concurrent use.
type frameAccumulator struct {
	frameSamples int
	backlog      []float32
}

func newFrameAccumulator(frameSamples int) *frameAccumulator {
	return &frameAccumulator{
		frameSamples: frameSamples,
		backlog:      make([]float32, 0, frameSamples),
	}
}

// push appends samples and calls emit once per complete frame, in order,
// before returning. Each frame is a fresh slice owned by the callee. A
// partial remainder stays in the backlog for the next push.
func (a *frameAccumulator) push(samples []float32, emit func(frame []float32)) {
	if len(samples) == 0 {
		return
	}
	a.backlog = append(a.backlog, samples...)

	n := len(a.backlog) / a.frameSamples
	for i := 0; i < n; i++ {
		frame := make([]float32, a.frameSamples)
		copy(frame, a.backlog[i*a.frameSamples:])
		emit(frame)
	}
	rest := copy(a.backlog, a.backlog[n*a.frameSamples:])
	a.backlog = a.backlog[:rest]
}

// pending returns the number of buffered samples not yet forming a frame.
func (a *frameAccumulator) pending() int {
	return len(a.backlog)
}

func (a *frameAccumulator) reset() {
	a.backlog = a.backlog[:0]
}
