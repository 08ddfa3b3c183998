package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cortexswarm/vadplus-go"
	"github.com/cortexswarm/vadplus-go/internal/capture"
)

var micFlags struct {
	frames      bool
	listDevices bool
}

// listCaptureDevices is replaced in tests.
var listCaptureDevices = func() ([]string, error) { return capture.ListDevices(nil) }

var micCmd = &cobra.Command{
	Use:   "mic",
	Short: "Segment speech from a microphone",
	Long: `Capture mono audio at the session rate and segment it until interrupted
with Ctrl-C (SIGINT) or SIGTERM.

Examples:
  vadplus mic
  vadplus mic --list-devices`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if micFlags.listDevices {
			return printDevices(cmd)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)
		return runApp(cmd, func(ctx context.Context, a *app) error {
			return segmentMic(ctx, cmd, a)
		})
	},
}

func init() {
	micCmd.Flags().BoolVar(&micFlags.frames, "frames", false, "print every scored frame")
	micCmd.Flags().BoolVar(&micFlags.listDevices, "list-devices", false, "list capture devices and exit")
}

// printDevices needs no model or config, so it runs before the app is built.
func printDevices(cmd *cobra.Command) error {
	names, err := listCaptureDevices()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(cmd.OutOrStdout(), n)
	}
	return nil
}

func segmentMic(ctx context.Context, cmd *cobra.Command, a *app) error {
	mic, err := capture.NewMicrophone(capture.Config{
		SampleRate:   a.cfg.VAD.SampleRate,
		BlockSamples: a.cfg.VAD.FrameSamples,
		BufferBlocks: a.cfg.Capture.BufferFrames,
		Device:       a.cfg.Capture.Device,
	}, a.logger)
	if err != nil {
		return err
	}
	defer mic.Close()

	printer, err := newEventPrinter(cmd.OutOrStdout(), a.cfg.Output.Dir, a.logger, micFlags.frames)
	if err != nil {
		return err
	}
	sess, err := a.newSession(printer, vadplus.WithSource(mic))
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Start(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Capturing. Press Ctrl-C to stop.")
	<-ctx.Done()

	if err := sess.Stop(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "done: %d segments\n", printer.count)
	return nil
}
