package vadplus

import (
	"errors"
	"fmt"
)

// Supported sample rates and their model geometry.
const (
	SampleRate16k = 16000
	SampleRate8k  = 8000

	DefaultFrameSamples16k = 512
	DefaultFrameSamples8k  = 256

	contextSize16k = 64
	contextSize8k  = 32
)

// Config holds the per-session segmentation parameters. It is immutable once
// passed to Session.Init.
type Config struct {
	// PositiveSpeechThreshold is the probability at or above which a frame
	// counts as speech.
	PositiveSpeechThreshold float32 `yaml:"positive_speech_threshold"`
	// NegativeSpeechThreshold is the probability below which a frame counts as
	// silence. Must be strictly lower than PositiveSpeechThreshold.
	NegativeSpeechThreshold float32 `yaml:"negative_speech_threshold"`

	PreSpeechPadFrames int `yaml:"pre_speech_pad_frames"` // frames kept before the trigger
	RedemptionFrames   int `yaml:"redemption_frames"`     // silence frames that close a segment
	MinSpeechFrames    int `yaml:"min_speech_frames"`     // speech frames that make a segment real
	EndSpeechPadFrames int `yaml:"end_speech_pad_frames"`

	SampleRate   int `yaml:"sample_rate"`   // 16000 or 8000
	FrameSamples int `yaml:"frame_samples"` // samples per scored frame

	// Debug enables per-frame debug logging.
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the defaults for the 16 kHz Silero v5/v6 model.
func DefaultConfig() Config {
	return Config{
		PositiveSpeechThreshold: 0.5,
		NegativeSpeechThreshold: 0.35,
		PreSpeechPadFrames:      3,
		RedemptionFrames:        24,
		MinSpeechFrames:         9,
		EndSpeechPadFrames:      3,
		SampleRate:              SampleRate16k,
		FrameSamples:            DefaultFrameSamples16k,
	}
}

// DefaultConfigForRate returns DefaultConfig with the sample rate and frame
// size adjusted for rate. Unsupported rates keep the 16 kHz frame size and
// fail validation later.
func DefaultConfigForRate(rate int) Config {
	cfg := DefaultConfig()
	cfg.SampleRate = rate
	if rate == SampleRate8k {
		cfg.FrameSamples = DefaultFrameSamples8k
	}
	return cfg
}

// ContextSize returns the number of trailing samples carried from one frame
// into the next scorer call. It is 0 for unsupported rates.
func (c Config) ContextSize() int {
	return contextSizeFor(c.SampleRate)
}

// FrameDurationMs returns the duration of one frame in milliseconds.
func (c Config) FrameDurationMs() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(c.FrameSamples) * 1000 / float64(c.SampleRate)
}

func contextSizeFor(rate int) int {
	switch rate {
	case SampleRate16k:
		return contextSize16k
	case SampleRate8k:
		return contextSize8k
	}
	return 0
}

// Validate checks cfg and returns every problem found, joined. Each error
// wraps ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	// Written as negated ranges so NaN fails every check.
	if !(c.PositiveSpeechThreshold >= 0 && c.PositiveSpeechThreshold <= 1) {
		invalid("positive_speech_threshold %.3f is out of range [0, 1]", c.PositiveSpeechThreshold)
	}
	if !(c.NegativeSpeechThreshold >= 0 && c.NegativeSpeechThreshold <= 1) {
		invalid("negative_speech_threshold %.3f is out of range [0, 1]", c.NegativeSpeechThreshold)
	}
	if !(c.NegativeSpeechThreshold < c.PositiveSpeechThreshold) {
		invalid("negative_speech_threshold %.3f must be lower than positive_speech_threshold %.3f",
			c.NegativeSpeechThreshold, c.PositiveSpeechThreshold)
	}
	if c.PreSpeechPadFrames < 0 {
		invalid("pre_speech_pad_frames must be >= 0, got %d", c.PreSpeechPadFrames)
	}
	if c.RedemptionFrames < 0 {
		invalid("redemption_frames must be >= 0, got %d", c.RedemptionFrames)
	}
	if c.MinSpeechFrames < 0 {
		invalid("min_speech_frames must be >= 0, got %d", c.MinSpeechFrames)
	}
	if c.EndSpeechPadFrames < 0 {
		invalid("end_speech_pad_frames must be >= 0, got %d", c.EndSpeechPadFrames)
	}
	if contextSizeFor(c.SampleRate) == 0 {
		invalid("sample_rate %d is not supported; valid values: 8000, 16000", c.SampleRate)
	}
	if c.FrameSamples <= 0 {
		invalid("frame_samples must be > 0, got %d", c.FrameSamples)
	}
	return errors.Join(errs...)
}
