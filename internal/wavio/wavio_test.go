package wavio

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteSegment_ReadBack(t *testing.T) {
	t.Parallel()
	pcm := []int16{0, 16384, -16384, 32767, -32768, 1}

	var buf bytes.Buffer
	if err := WriteSegment(&buf, pcm, 16000); err != nil {
		t.Fatalf("WriteSegment: %v", err)
	}

	samples, rate, err := Read(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rate != 16000 {
		t.Errorf("rate = %d, want 16000", rate)
	}
	if len(samples) != len(pcm) {
		t.Fatalf("len = %d, want %d", len(samples), len(pcm))
	}
	for i, v := range pcm {
		want := float64(v) / 32768
		if math.Abs(float64(samples[i])-want) > 1e-3 {
			t.Errorf("sample %d = %v, want ~%v", i, samples[i], want)
		}
	}
}

func TestSegmentWriter_NumbersFiles(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewSegmentWriter(dir)
	if err != nil {
		t.Fatalf("NewSegmentWriter: %v", err)
	}

	for i, want := range []string{"segment_001.wav", "segment_002.wav"} {
		path, err := w.Write([]int16{1, 2, 3}, 8000)
		if err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
		if filepath.Base(path) != want {
			t.Errorf("path = %s, want %s", path, want)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("stat %s: %v", path, err)
		}
	}

	_, rate, err := ReadFile(filepath.Join(dir, "segment_001.wav"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if rate != 8000 {
		t.Errorf("rate = %d, want 8000", rate)
	}
}

func TestResample_SameRateIsIdentity(t *testing.T) {
	t.Parallel()
	in := []float32{0.1, 0.2}
	out, err := Resample(in, 16000, 16000)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(out) != 2 || out[0] != 0.1 {
		t.Errorf("out = %v, want input", out)
	}
}

func TestResample_InvalidRate(t *testing.T) {
	t.Parallel()
	if _, err := Resample([]float32{0}, 0, 16000); err == nil {
		t.Fatal("expected error for zero rate, got nil")
	}
}

func TestResample_KeepsDuration(t *testing.T) {
	t.Parallel()
	for _, from := range []int{48000, 44100, 8000} {
		in := make([]float32, from)
		for i := range in {
			in[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(from)))
		}
		out, err := Resample(in, from, 16000)
		if err != nil {
			t.Fatalf("Resample(%d): %v", from, err)
		}
		if len(out) != 16000 {
			t.Errorf("Resample(%d) one second = %d samples, want 16000", from, len(out))
		}
	}
}
