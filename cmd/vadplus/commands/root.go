package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cortexswarm/vadplus-go"
	"github.com/cortexswarm/vadplus-go/internal/config"
	"github.com/cortexswarm/vadplus-go/internal/logging"
	"github.com/cortexswarm/vadplus-go/internal/observe"
)

var globalFlags struct {
	configPath  string
	logLevel    string
	metricsAddr string
	outputDir   string
	model       string
}

var rootCmd = &cobra.Command{
	Use:   "vadplus",
	Short: "Streaming voice activity detection and speech segmentation",
	Long: `Segment speech with the Silero VAD model.

Audio is scored in fixed frames; speech segments are closed after a run of
silence frames and written as 16-bit mono WAV files.

Examples:
  vadplus file recording.wav
  vadplus --config vadplus.yaml mic
  vadplus --metrics-addr :9464 mic`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&globalFlags.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&globalFlags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVar(&globalFlags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.StringVarP(&globalFlags.outputDir, "output", "o", "", "segment output directory override")
	pf.StringVarP(&globalFlags.model, "model", "m", "", "Silero ONNX model path override")

	rootCmd.AddCommand(fileCmd, micCmd)
}

// app holds what every command needs once flags and config are resolved.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	provider *observe.Provider
	scorer   *vadplus.SileroScorer
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if globalFlags.configPath != "" {
		var err error
		if cfg, err = config.Load(globalFlags.configPath); err != nil {
			return nil, err
		}
	}
	if globalFlags.logLevel != "" {
		cfg.Log.Level = config.LogLevel(globalFlags.logLevel)
	}
	if globalFlags.metricsAddr != "" {
		cfg.Metrics.ListenAddr = globalFlags.metricsAddr
	}
	if globalFlags.outputDir != "" {
		cfg.Output.Dir = globalFlags.outputDir
	}
	if globalFlags.model != "" {
		cfg.Model.Path = globalFlags.model
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(string(cfg.Log.Level), string(cfg.Log.Format))
	if err != nil {
		return nil, err
	}

	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		return nil, err
	}

	if err := vadplus.InitRuntime(cfg.Model.RuntimeLibrary); err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}
	scorer, err := vadplus.NewSileroScorer(cfg.Model.Path, cfg.VAD.SampleRate, cfg.VAD.FrameSamples)
	if err != nil {
		_ = vadplus.DestroyRuntime()
		_ = provider.Shutdown(ctx)
		return nil, err
	}
	logger.Debug("model loaded", zap.String("path", cfg.Model.Path))

	return &app{cfg: cfg, logger: logger, provider: provider, scorer: scorer}, nil
}

func (a *app) close(ctx context.Context) error {
	err := errors.Join(
		a.scorer.Close(),
		vadplus.DestroyRuntime(),
		a.provider.Shutdown(ctx),
	)
	_ = a.logger.Sync()
	return err
}

func (a *app) newSession(sink vadplus.EventSink, opts ...vadplus.Option) (*vadplus.Session, error) {
	opts = append([]vadplus.Option{
		vadplus.WithLogger(a.logger),
		vadplus.WithMeterProvider(a.provider.MeterProvider),
	}, opts...)
	s, err := vadplus.New(a.scorer, sink, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Init(a.cfg.VAD); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// run executes work alongside the metrics server, if configured. The server
// stops once work returns.
func (a *app) run(ctx context.Context, work func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if addr := a.cfg.Metrics.ListenAddr; addr != "" {
		g.Go(func() error {
			return observe.Serve(gctx, addr, a.provider.Handler, a.logger)
		})
	}
	g.Go(func() error {
		defer cancel()
		return work(gctx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runApp(cmd *cobra.Command, work func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(context.Background()); cerr != nil && err == nil {
			err = fmt.Errorf("shutdown: %w", cerr)
		}
	}()
	return a.run(ctx, func(ctx context.Context) error { return work(ctx, a) })
}
