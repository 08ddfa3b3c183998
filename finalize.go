package vadplus

import (
	"encoding/binary"
	"math"
)

// SpeechSegment is a completed utterance in 16-bit signed PCM at the session
// sample rate.
type SpeechSegment struct {
	Samples    []int16
	SampleRate int
	DurationMs int
}

// Len returns the number of samples.
func (s SpeechSegment) Len() int { return len(s.Samples) }

// Bytes returns the samples as little-endian PCM16.
func (s SpeechSegment) Bytes() []byte {
	out := make([]byte, len(s.Samples)*2)
	for i, v := range s.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// Float32 returns the samples converted back to normalized floats.
func (s SpeechSegment) Float32() []float32 {
	return PCM16ToFloat32(s.Samples)
}

// finalizeSegment applies the end-pad rule to buf and converts the retained
// samples to PCM16. It does not retain buf.
func finalizeSegment(buf []float32, cfg Config) SpeechSegment {
	endPad := cfg.EndSpeechPadFrames * cfg.FrameSamples
	keep := len(buf)
	if keep >= endPad {
		// max(0, total-endPad)+endPad == total: the pad is never trimmed.
		keep = max(0, keep-endPad) + endPad
	}
	kept := buf[:keep]

	return SpeechSegment{
		Samples:    Float32ToPCM16(kept),
		SampleRate: cfg.SampleRate,
		DurationMs: durationMs(len(kept), cfg.SampleRate),
	}
}

func durationMs(samples, rate int) int {
	if rate <= 0 {
		return 0
	}
	return int(int64(samples) * 1000 / int64(rate))
}

// Float32ToPCM16 converts normalized samples to int16, clamping to [-1, 1]
// and rounding half away from zero.
func Float32ToPCM16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, v := range in {
		out[i] = sampleToPCM16(v)
	}
	return out
}

func sampleToPCM16(v float32) int16 {
	f := float64(v)
	switch {
	case math.IsNaN(f):
		return 0
	case f > 1:
		f = 1
	case f < -1:
		f = -1
	}
	return int16(math.Round(f * math.MaxInt16))
}

// PCM16ToFloat32 is the inverse of Float32ToPCM16. It divides by 32767, not
// by 32768 as the vad_pcm16_to_float C API does, so that a float round trip
// through Float32ToPCM16 is exact to one quantization step. -32768 clamps to -1.
func PCM16ToFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		f := float32(v) / math.MaxInt16
		if f < -1 {
			f = -1
		}
		out[i] = f
	}
	return out
}
