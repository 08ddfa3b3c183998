// Package wavio reads input WAV files and writes speech segments as WAV.
package wavio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"
	"github.com/youpy/go-wav"
)

// Reader is what go-wav needs to parse a RIFF stream.
type Reader interface {
	io.Reader
	io.ReaderAt
}

// Read decodes a mono or stereo WAV stream to normalized mono samples.
// Stereo is averaged.
func Read(r Reader) (samples []float32, sampleRate int, err error) {
	wr := wav.NewReader(r)
	format, err := wr.Format()
	if err != nil {
		return nil, 0, fmt.Errorf("wavio: format: %w", err)
	}
	channels := int(format.NumChannels)
	if channels < 1 || channels > 2 {
		return nil, 0, fmt.Errorf("wavio: only mono or stereo supported, got %d channels", channels)
	}

	for {
		batch, err := wr.ReadSamples()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("wavio: read samples: %w", err)
		}
		for _, s := range batch {
			v := wr.FloatValue(s, 0)
			if channels == 2 {
				v = (v + wr.FloatValue(s, 1)) / 2
			}
			samples = append(samples, float32(v))
		}
	}
	return samples, int(format.SampleRate), nil
}

// ReadFile is Read on the file at path.
func ReadFile(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("wavio: open %q: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Resample converts mono samples from one rate to another. Equal rates
// return the input unchanged. The output holds round(len*to/from) samples:
// the resampler is flushed for its filter tail and any remaining shortfall
// is zero padded.
func Resample(samples []float32, from, to int) ([]float32, error) {
	if from == to {
		return samples, nil
	}
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("wavio: invalid rates %d -> %d", from, to)
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("wavio: create resampler: %w", err)
	}

	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s)
	}
	out, err := rs.Process(in)
	if err != nil {
		return nil, fmt.Errorf("wavio: resample: %w", err)
	}
	tail, err := rs.Flush()
	if err != nil {
		return nil, fmt.Errorf("wavio: resample flush: %w", err)
	}
	out = append(out, tail...)

	want := int(math.Round(float64(len(samples)) * float64(to) / float64(from)))
	res := make([]float32, want)
	for i := range min(want, len(out)) {
		res[i] = float32(max(-1, min(1, out[i])))
	}
	return res, nil
}

// WriteSegment writes pcm as a mono 16-bit WAV stream.
func WriteSegment(w io.Writer, pcm []int16, sampleRate int) error {
	samples := make([]wav.Sample, len(pcm))
	for i, v := range pcm {
		samples[i] = wav.Sample{Values: [2]int{int(v), 0}}
	}
	ww := wav.NewWriter(w, uint32(len(samples)), 1, uint32(sampleRate), 16)
	if err := ww.WriteSamples(samples); err != nil {
		return fmt.Errorf("wavio: write samples: %w", err)
	}
	return nil
}

// WriteSegmentFile writes pcm to path.
func WriteSegmentFile(path string, pcm []int16, sampleRate int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavio: create %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("wavio: close %q: %w", path, cerr)
		}
	}()
	return WriteSegment(f, pcm, sampleRate)
}

// SegmentWriter writes numbered segment files (segment_001.wav, ...) into a
// directory. Safe for concurrent use.
type SegmentWriter struct {
	dir string

	mu sync.Mutex
	n  int
}

// NewSegmentWriter creates dir if needed.
func NewSegmentWriter(dir string) (*SegmentWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wavio: output dir: %w", err)
	}
	return &SegmentWriter{dir: dir}, nil
}

// Write stores the next segment and returns its path.
func (w *SegmentWriter) Write(pcm []int16, sampleRate int) (string, error) {
	w.mu.Lock()
	w.n++
	name := filepath.Join(w.dir, fmt.Sprintf("segment_%03d.wav", w.n))
	w.mu.Unlock()

	if err := WriteSegmentFile(name, pcm, sampleRate); err != nil {
		return "", err
	}
	return name, nil
}
