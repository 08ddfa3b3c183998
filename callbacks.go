package vadplus

// Callbacks is an EventSink built from optional per-event functions. They are
// invoked synchronously by the session from the goroutine that calls
// ProcessAudio (or the source pump). Nil fields are skipped.
type Callbacks struct {
	OnInitialized func()
	OnStopped     func()

	OnSpeechStart     func()
	OnRealSpeechStart func()
	OnMisfire         func()
	// OnSpeechEnd receives the finalized segment. Ownership passes to the
	// callee; the session keeps no reference to it.
	OnSpeechEnd func(seg SpeechSegment)

	// OnFrameProcessed receives every scored frame. The frame slice is
	// immutable and may be retained.
	OnFrameProcessed func(probability float32, isSpeech bool, frame []float32)

	OnError func(code ErrorCode, err error)
}

// HandleEvent dispatches ev to the matching callback.
func (c Callbacks) HandleEvent(ev Event) {
	switch ev.Type {
	case EventInitialized:
		if c.OnInitialized != nil {
			c.OnInitialized()
		}
	case EventStopped:
		if c.OnStopped != nil {
			c.OnStopped()
		}
	case EventSpeechStart:
		if c.OnSpeechStart != nil {
			c.OnSpeechStart()
		}
	case EventRealSpeechStart:
		if c.OnRealSpeechStart != nil {
			c.OnRealSpeechStart()
		}
	case EventMisfire:
		if c.OnMisfire != nil {
			c.OnMisfire()
		}
	case EventSpeechEnd:
		if c.OnSpeechEnd != nil && ev.Segment != nil {
			c.OnSpeechEnd(*ev.Segment)
		}
	case EventFrameProcessed:
		if c.OnFrameProcessed != nil && ev.Frame != nil {
			c.OnFrameProcessed(ev.Frame.Probability, ev.Frame.IsSpeech, ev.Frame.Samples)
		}
	case EventError:
		if c.OnError != nil && ev.Err != nil {
			c.OnError(ev.Err.Code, ev.Err.Err)
		}
	}
}
