package vadplus

// segmenter is the speech/silence state machine. Pure logic: it sees
// (frame, probability) pairs and reports lifecycle events through emit;
// scoring and delivery live in Session.
type segmenter struct {
	cfg Config

	// preRoll is a ring of the most recent frames preceding the current one.
	preRoll      [][]float32
	preRollIdx   int
	preRollCount int

	speaking      bool
	speechFrames  int
	silenceFrames int
	realStart     bool
	speechBuffer  []float32
}

func newSegmenter(cfg Config) *segmenter {
	return &segmenter{
		cfg:     cfg,
		preRoll: make([][]float32, cfg.PreSpeechPadFrames),
	}
}

// process runs one frame through the machine. Lifecycle events are emitted
// first, then FrameProcessed.
func (s *segmenter) process(frame []float32, prob float32, emit func(Event)) {
	isSpeech := prob >= s.cfg.PositiveSpeechThreshold

	if !s.speaking {
		if isSpeech {
			s.startSpeech(frame, emit)
		}
	} else {
		s.speechBuffer = append(s.speechBuffer, frame...)
		switch {
		case isSpeech:
			s.speechFrames++
			s.silenceFrames = 0
			s.maybeConfirm(emit)
		case prob < s.cfg.NegativeSpeechThreshold:
			s.silenceFrames++
			if s.silenceFrames >= s.cfg.RedemptionFrames {
				s.closeAfterSilence(emit)
			}
		}
	}

	s.pushPreRoll(frame)
	emit(Event{
		Type:  EventFrameProcessed,
		Frame: &FrameData{Probability: prob, IsSpeech: isSpeech, Samples: frame},
	})
}

func (s *segmenter) startSpeech(frame []float32, emit func(Event)) {
	s.speaking = true
	s.speechFrames = 1
	s.silenceFrames = 0
	s.realStart = false

	buf := make([]float32, 0, (s.preRollCount+1)*len(frame))
	for _, f := range s.preRollFrames() {
		buf = append(buf, f...)
	}
	s.speechBuffer = append(buf, frame...)

	emit(Event{Type: EventSpeechStart})
	s.maybeConfirm(emit)
}

func (s *segmenter) maybeConfirm(emit func(Event)) {
	if !s.realStart && s.speechFrames >= s.cfg.MinSpeechFrames {
		s.realStart = true
		emit(Event{Type: EventRealSpeechStart})
	}
}

func (s *segmenter) closeAfterSilence(emit func(Event)) {
	if s.speechFrames >= s.cfg.MinSpeechFrames {
		s.emitSpeechEnd(emit)
	} else {
		emit(Event{Type: EventMisfire})
	}
	s.toSilence()
}

func (s *segmenter) emitSpeechEnd(emit func(Event)) {
	seg := finalizeSegment(s.speechBuffer, s.cfg)
	emit(Event{Type: EventSpeechEnd, Segment: &seg})
}

// forceEnd closes an in-flight segment. It emits SpeechEnd when the segment
// is long enough and otherwise drops it silently. It reports whether audio
// was dropped.
func (s *segmenter) forceEnd(emit func(Event)) (dropped bool) {
	if s.speaking {
		if s.speechFrames >= s.cfg.MinSpeechFrames {
			s.emitSpeechEnd(emit)
		} else {
			dropped = true
		}
	}
	s.toSilence()
	return dropped
}

// flush emits SpeechEnd for any non-empty in-flight segment regardless of
// its length. Used when the session stops.
func (s *segmenter) flush(emit func(Event)) {
	if s.speaking && len(s.speechBuffer) > 0 {
		s.emitSpeechEnd(emit)
	}
	s.toSilence()
}

func (s *segmenter) toSilence() {
	s.speaking = false
	s.speechFrames = 0
	s.silenceFrames = 0
	s.realStart = false
	s.speechBuffer = nil
}

func (s *segmenter) pushPreRoll(frame []float32) {
	n := len(s.preRoll)
	if n == 0 {
		return
	}
	s.preRoll[s.preRollIdx] = frame
	s.preRollIdx = (s.preRollIdx + 1) % n
	if s.preRollCount < n {
		s.preRollCount++
	}
}

// preRollFrames returns the buffered pre-roll oldest first.
func (s *segmenter) preRollFrames() [][]float32 {
	n := len(s.preRoll)
	out := make([][]float32, 0, s.preRollCount)
	if n == 0 {
		return out
	}
	start := (s.preRollIdx - s.preRollCount + n) % n
	for i := 0; i < s.preRollCount; i++ {
		out = append(out, s.preRoll[(start+i)%n])
	}
	return out
}

func (s *segmenter) reset() {
	s.toSilence()
	s.preRollIdx = 0
	s.preRollCount = 0
	clear(s.preRoll)
}
