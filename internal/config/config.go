// Package config loads the vadplus application configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cortexswarm/vadplus-go"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the log encoder.
type LogFormat string

const (
	FormatConsole LogFormat = "console"
	FormatJSON    LogFormat = "json"
)

// Config is the root application configuration.
type Config struct {
	VAD     vadplus.Config `yaml:"vad"`
	Model   ModelConfig    `yaml:"model"`
	Log     LogConfig      `yaml:"log"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Capture CaptureConfig  `yaml:"capture"`
	Output  OutputConfig   `yaml:"output"`
}

// ModelConfig locates the Silero model and the ONNX Runtime library.
type ModelConfig struct {
	Path string `yaml:"path"`

	// RuntimeLibrary is the onnxruntime shared library. Empty searches the
	// bundled data/ and lib/ locations.
	RuntimeLibrary string `yaml:"runtime_library"`
}

type LogConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint. An empty ListenAddr
// disables it.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type CaptureConfig struct {
	// BufferFrames is the ring capacity in frames between the device callback
	// and the session.
	BufferFrames int `yaml:"buffer_frames"`
	// Device is the capture device name. Empty uses the system default.
	Device string `yaml:"device"`
}

type OutputConfig struct {
	// Dir receives one WAV file per speech segment. Empty disables writing.
	Dir string `yaml:"dir"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		VAD: vadplus.DefaultConfig(),
		Model: ModelConfig{
			Path: "data/silero_vad.onnx",
		},
		Log: LogConfig{
			Level:  LogInfo,
			Format: FormatConsole,
		},
		Capture: CaptureConfig{
			BufferFrames: 64,
		},
		Output: OutputConfig{
			Dir: "output",
		},
	}
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over [Default] and validates the result.
// An empty document yields the defaults. When vad.sample_rate is set without
// vad.frame_samples, the frame size follows the rate.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	cfg.VAD.FrameSamples = 0

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if cfg.VAD.FrameSamples == 0 {
		cfg.VAD.FrameSamples = vadplus.DefaultConfigForRate(cfg.VAD.SampleRate).FrameSamples
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if err := cfg.VAD.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("vad: %w", err))
	}
	if cfg.Model.Path == "" {
		errs = append(errs, errors.New("model.path is required"))
	}
	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "", FormatConsole, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: console, json", cfg.Log.Format))
	}
	if cfg.Capture.BufferFrames <= 0 {
		errs = append(errs, fmt.Errorf("capture.buffer_frames must be positive, got %d", cfg.Capture.BufferFrames))
	}

	return errors.Join(errs...)
}

// FrameDuration is the audio duration of one scored frame.
func (c *Config) FrameDuration() time.Duration {
	if c.VAD.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.VAD.FrameSamples) * time.Second / time.Duration(c.VAD.SampleRate)
}
