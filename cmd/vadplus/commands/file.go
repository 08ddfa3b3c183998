package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cortexswarm/vadplus-go"
	"github.com/cortexswarm/vadplus-go/internal/wavio"
)

var fileFlags struct {
	blockSamples int
	frames       bool
}

var fileCmd = &cobra.Command{
	Use:   "file <wav>",
	Short: "Segment speech in a WAV file",
	Long: `Decode a mono or stereo WAV file, resample it to the session rate and
feed it through a session in fixed blocks. Any segment still open at the end
of the file is flushed when the session stops.

Examples:
  vadplus file meeting.wav
  vadplus file -o segments --frames meeting.wav`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd, func(ctx context.Context, a *app) error {
			return segmentFile(ctx, cmd, a, args[0])
		})
	},
}

func init() {
	fileCmd.Flags().IntVar(&fileFlags.blockSamples, "block", 1600, "samples per ProcessAudio call")
	fileCmd.Flags().BoolVar(&fileFlags.frames, "frames", false, "print every scored frame")
}

func segmentFile(ctx context.Context, cmd *cobra.Command, a *app, path string) error {
	if fileFlags.blockSamples <= 0 {
		return fmt.Errorf("--block must be positive, got %d", fileFlags.blockSamples)
	}
	samples, rate, err := wavio.ReadFile(path)
	if err != nil {
		return err
	}
	if rate != a.cfg.VAD.SampleRate {
		a.logger.Info("resampling input", zap.Int("from", rate), zap.Int("to", a.cfg.VAD.SampleRate))
		if samples, err = wavio.Resample(samples, rate, a.cfg.VAD.SampleRate); err != nil {
			return err
		}
	}

	printer, err := newEventPrinter(cmd.OutOrStdout(), a.cfg.Output.Dir, a.logger, fileFlags.frames)
	if err != nil {
		return err
	}
	sess, err := a.newSession(printer)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := feedSession(ctx, sess, samples, fileFlags.blockSamples, a.logger); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "done: %d segments\n", printer.count)
	return nil
}

// feedSession runs samples through sess in blocks of block samples between
// Start and Stop. Inference errors are reported through Error events and do
// not fail the run; the last one is logged.
func feedSession(ctx context.Context, sess *vadplus.Session, samples []float32, block int, logger *zap.Logger) error {
	if err := sess.Start(); err != nil {
		return err
	}
	for off := 0; off < len(samples); off += block {
		if err := ctx.Err(); err != nil {
			break
		}
		end := min(off+block, len(samples))
		if err := sess.ProcessAudio(samples[off:end]); err != nil {
			return err
		}
	}
	if err := sess.Stop(); err != nil {
		return err
	}
	if err := sess.LastError(); err != nil {
		logger.Warn("inference errors during run", zap.Error(err))
	}
	return nil
}
