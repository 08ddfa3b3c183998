// Package vadplus segments a live audio stream into speech utterances using a
// frame-level speech probability model such as Silero VAD.
//
// A Session regroups incoming samples into fixed frames, scores each frame
// with a Scorer while carrying the model's context window and recurrent
// state, and runs a two-state speech/silence machine with hysteresis,
// pre-roll padding, misfire rejection and silence debouncing. Results are
// delivered synchronously to an EventSink; finished utterances arrive as
// 16-bit PCM SpeechSegments.
//
//	scorer, _ := vadplus.NewSileroScorer("data/silero_vad.onnx", 16000, 512)
//	s, _ := vadplus.New(scorer, vadplus.Callbacks{
//		OnSpeechEnd: func(seg vadplus.SpeechSegment) { ... },
//	})
//	_ = s.Init(vadplus.DefaultConfig())
//	_ = s.ProcessAudio(samples)
package vadplus
