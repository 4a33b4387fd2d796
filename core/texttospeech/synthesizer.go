package texttospeech

import "context"

// Synthesizer turns text into speech.
type Synthesizer interface {
	// Speak starts speaking text. Speaking a new utterance stops the previous
	// one first. Callbacks of a stopped utterance are not delivered.
	Speak(ctx context.Context, text string, opts ...SpeakOption) (Utterance, error)
}

// AudioPlayer plays already synthesized audio with the same lifecycle as
// [Synthesizer.Speak].
type AudioPlayer interface {
	PlayAudio(ctx context.Context, audio []byte, opts ...SpeakOption) (Utterance, error)
}

type Utterance interface {
	// Stop interrupts the utterance. Repeated calls are ignored.
	Stop() error
}
