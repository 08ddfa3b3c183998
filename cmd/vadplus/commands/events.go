package commands

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/cortexswarm/vadplus-go"
	"github.com/cortexswarm/vadplus-go/internal/wavio"
)

// eventPrinter prints lifecycle events and saves each finished segment.
type eventPrinter struct {
	out      io.Writer
	segments *wavio.SegmentWriter // nil disables writing
	logger   *zap.Logger
	frames   bool

	count int
}

func (p *eventPrinter) HandleEvent(ev vadplus.Event) {
	switch ev.Type {
	case vadplus.EventFrameProcessed:
		if p.frames {
			fmt.Fprintf(p.out, "[frame] p=%.3f speech=%t\n", ev.Frame.Probability, ev.Frame.IsSpeech)
		}
	case vadplus.EventSpeechEnd:
		p.count++
		seg := ev.Segment
		if p.segments == nil {
			fmt.Fprintf(p.out, "[event] speech end (%d samples, %d ms)\n", seg.Len(), seg.DurationMs)
			return
		}
		path, err := p.segments.Write(seg.Samples, seg.SampleRate)
		if err != nil {
			p.logger.Error("save segment", zap.Error(err))
			return
		}
		fmt.Fprintf(p.out, "[event] speech end (%d samples, %d ms) -> %s\n", seg.Len(), seg.DurationMs, path)
	case vadplus.EventError:
		fmt.Fprintf(p.out, "[error] %s (code %d)\n", ev.Err.Message, ev.Err.Code)
	default:
		fmt.Fprintf(p.out, "[event] %s\n", ev.Type)
	}
}

func newEventPrinter(out io.Writer, dir string, logger *zap.Logger, frames bool) (*eventPrinter, error) {
	p := &eventPrinter{out: out, logger: logger, frames: frames}
	if dir != "" {
		w, err := wavio.NewSegmentWriter(dir)
		if err != nil {
			return nil, err
		}
		p.segments = w
	}
	return p, nil
}
