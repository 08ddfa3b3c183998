package vadplus

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by every Config validation failure.
	ErrInvalidConfig = errors.New("vadplus: invalid config")

	ErrNotInitialized     = errors.New("vadplus: session is not initialized")
	ErrAlreadyInitialized = errors.New("vadplus: session is already initialized")
	ErrAlreadyRunning     = errors.New("vadplus: session is already running")
	ErrAlreadyDisposed    = errors.New("vadplus: session is disposed")
	// ErrStopping is returned by Start and Stop while another Stop is
	// waiting for the audio source.
	ErrStopping = errors.New("vadplus: session is stopping")

	// ErrInvalidInput is returned for scorer input or output of the wrong shape.
	ErrInvalidInput = errors.New("vadplus: invalid input")
)

// ErrorCode is the stable numeric code carried by Error events.
type ErrorCode int32

const (
	CodeUnknown     ErrorCode = -1
	CodeInference   ErrorCode = -2
	CodeCapture     ErrorCode = -3
	CodeUnsupported ErrorCode = -100
)

// String returns the code name.
func (c ErrorCode) String() string {
	switch c {
	case CodeUnknown:
		return "unknown"
	case CodeInference:
		return "inference"
	case CodeCapture:
		return "capture"
	case CodeUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("code(%d)", int32(c))
}

// InferenceError reports a scorer failure for a single frame. The session's
// context window and recurrent state are unchanged when it is returned.
type InferenceError struct {
	// Frame is the zero-based index of the frame that failed.
	Frame uint64
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("vadplus: inference failed on frame %d: %v", e.Frame, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// CaptureError reports a failure of the audio source.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string { return "vadplus: capture: " + e.Err.Error() }

func (e *CaptureError) Unwrap() error { return e.Err }

// codeFor maps an error to the code reported in Error events.
func codeFor(err error) ErrorCode {
	var ie *InferenceError
	if errors.As(err, &ie) {
		return CodeInference
	}
	var ce *CaptureError
	if errors.As(err, &ce) {
		return CodeCapture
	}
	if errors.Is(err, errors.ErrUnsupported) {
		return CodeUnsupported
	}
	return CodeUnknown
}
