package vadplus

import "fmt"

// EventType identifies a session event. Values match the wire enum used by
// the native bindings.
type EventType int32

const (
	EventInitialized     EventType = 0
	EventSpeechStart     EventType = 1
	EventSpeechEnd       EventType = 2
	EventFrameProcessed  EventType = 3
	EventRealSpeechStart EventType = 4
	EventMisfire         EventType = 5
	EventError           EventType = 6
	EventStopped         EventType = 7
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventInitialized:
		return "initialized"
	case EventSpeechStart:
		return "speech_start"
	case EventSpeechEnd:
		return "speech_end"
	case EventFrameProcessed:
		return "frame_processed"
	case EventRealSpeechStart:
		return "real_speech_start"
	case EventMisfire:
		return "misfire"
	case EventError:
		return "error"
	case EventStopped:
		return "stopped"
	}
	return fmt.Sprintf("event(%d)", int32(t))
}

// FrameData is the payload of a FrameProcessed event.
type FrameData struct {
	Probability float32
	IsSpeech    bool
	// Samples is the scored frame. Frames are never mutated after they are
	// produced, so the slice may be retained.
	Samples []float32
}

// ErrorData is the payload of an Error event.
type ErrorData struct {
	Message string
	Code    ErrorCode
	Err     error
}

// Event is delivered to an EventSink. Exactly one of Frame, Segment and Err
// is set for FrameProcessed, SpeechEnd and Error events; all are nil for the
// others.
type Event struct {
	Type    EventType
	Frame   *FrameData
	Segment *SpeechSegment
	Err     *ErrorData
}

// EventSink receives session events synchronously, in emission order, on the
// goroutine that drove the session. HandleEvent is called with the session
// lock held and must not call back into the session.
type EventSink interface {
	HandleEvent(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

// HandleEvent calls f(ev).
func (f SinkFunc) HandleEvent(ev Event) { f(ev) }

type nopSink struct{}

func (nopSink) HandleEvent(Event) {}
