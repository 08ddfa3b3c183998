package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cortexswarm/vadplus-go"
	"github.com/cortexswarm/vadplus-go/internal/config"
)

func TestLoadFromReader_EmptyYieldsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.VAD != vadplus.DefaultConfig() {
		t.Errorf("vad = %+v, want defaults", cfg.VAD)
	}
	if cfg.Log.Level != config.LogInfo {
		t.Errorf("log.level = %q, want info", cfg.Log.Level)
	}
	if cfg.Capture.BufferFrames != 64 {
		t.Errorf("capture.buffer_frames = %d, want 64", cfg.Capture.BufferFrames)
	}
}

func TestLoadFromReader_Overrides(t *testing.T) {
	t.Parallel()
	yaml := `
vad:
  positive_speech_threshold: 0.6
  redemption_frames: 8
  debug: true
model:
  path: /models/silero.onnx
log:
  level: debug
  format: json
metrics:
  listen_addr: ":9464"
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.VAD.PositiveSpeechThreshold != 0.6 {
		t.Errorf("positive threshold = %v, want 0.6", cfg.VAD.PositiveSpeechThreshold)
	}
	if cfg.VAD.NegativeSpeechThreshold != 0.35 {
		t.Errorf("negative threshold = %v, want default 0.35", cfg.VAD.NegativeSpeechThreshold)
	}
	if cfg.VAD.RedemptionFrames != 8 || !cfg.VAD.Debug {
		t.Errorf("vad = %+v", cfg.VAD)
	}
	if cfg.Model.Path != "/models/silero.onnx" {
		t.Errorf("model.path = %q", cfg.Model.Path)
	}
	if cfg.Log.Format != config.FormatJSON {
		t.Errorf("log.format = %q, want json", cfg.Log.Format)
	}
	if cfg.Metrics.ListenAddr != ":9464" {
		t.Errorf("metrics.listen_addr = %q", cfg.Metrics.ListenAddr)
	}
}

func TestLoadFromReader_FrameSamplesFollowRate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want int
	}{
		{"8k default", "vad:\n  sample_rate: 8000\n", vadplus.DefaultFrameSamples8k},
		{"16k default", "vad:\n  sample_rate: 16000\n", vadplus.DefaultFrameSamples16k},
		{"explicit", "vad:\n  sample_rate: 8000\n  frame_samples: 512\n", 512},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err != nil {
				t.Fatalf("LoadFromReader: %v", err)
			}
			if cfg.VAD.FrameSamples != tt.want {
				t.Errorf("frame_samples = %d, want %d", cfg.VAD.FrameSamples, tt.want)
			}
		})
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("vad:\n  threshold: 0.5\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_JoinsAllFailures(t *testing.T) {
	t.Parallel()
	yaml := `
vad:
  positive_speech_threshold: 0.2
  negative_speech_threshold: 0.4
  sample_rate: 44100
log:
  level: verbose
  format: xml
capture:
  buffer_frames: 0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !errors.Is(err, vadplus.ErrInvalidConfig) {
		t.Errorf("error should wrap ErrInvalidConfig, got: %v", err)
	}
	for _, want := range []string{"negative_speech_threshold", "sample_rate", "log.level", "log.format", "buffer_frames"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestLoadFromReader_RejectsNaNThreshold(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("vad:\n  negative_speech_threshold: .nan\n"))
	if !errors.Is(err, vadplus.ErrInvalidConfig) {
		t.Fatalf("LoadFromReader = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "vadplus.yaml")
	if err := os.WriteFile(path, []byte("output:\n  dir: segments\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Output.Dir != "segments" {
		t.Errorf("output.dir = %q, want segments", cfg.Output.Dir)
	}
	if got := cfg.FrameDuration(); got != 32*time.Millisecond {
		t.Errorf("FrameDuration = %v, want 32ms", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load error = %v, want ErrNotExist", err)
	}
}
