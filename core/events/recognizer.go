package events

const (
	// KindListeningStarted identifies the start of a recognition attempt.
	KindListeningStarted Kind = "recognizer.listening_started"
	// KindUserAudioStarted identifies detected voiced input.
	KindUserAudioStarted Kind = "recognizer.audio_started"
	// KindUserAudioEnded identifies the end of voiced input.
	KindUserAudioEnded Kind = "recognizer.audio_ended"
	// KindTranscriptFinal identifies a recognized transcript.
	KindTranscriptFinal Kind = "recognizer.transcript_final"
	// KindTranscriptDiscarded identifies a blank transcript or one rejected by
	// the echo filter.
	KindTranscriptDiscarded Kind = "recognizer.transcript_discarded"
	// KindNoMatch identifies heard but undecodable audio.
	KindNoMatch Kind = "recognizer.no_match"
	// KindRecognitionFailed identifies a recognizer error.
	KindRecognitionFailed Kind = "recognizer.failed"
	// KindListeningEnded identifies the close of a recognition attempt.
	KindListeningEnded Kind = "recognizer.listening_ended"
)

// ListeningStarted marks the start of a recognition attempt.
type ListeningStarted struct {
	Base
	Attempt int
}

// NewListeningStarted creates a listening started event.
func NewListeningStarted(attempt int) ListeningStarted {
	return ListeningStarted{Base: NewBase(KindListeningStarted), Attempt: attempt}
}

// UserAudioStarted marks detected voiced input.
type UserAudioStarted struct{ Base }

// NewUserAudioStarted creates a user audio started event.
func NewUserAudioStarted() UserAudioStarted {
	return UserAudioStarted{Base: NewBase(KindUserAudioStarted)}
}

// UserAudioEnded marks the end of voiced input.
type UserAudioEnded struct{ Base }

// NewUserAudioEnded creates a user audio ended event.
func NewUserAudioEnded() UserAudioEnded {
	return UserAudioEnded{Base: NewBase(KindUserAudioEnded)}
}

// TranscriptFinal carries the best transcript of an attempt.
type TranscriptFinal struct {
	Base
	Transcript string
}

// NewTranscriptFinal creates a final transcript event.
func NewTranscriptFinal(transcript string) TranscriptFinal {
	return TranscriptFinal{Base: NewBase(KindTranscriptFinal), Transcript: transcript}
}

// TranscriptDiscarded carries a transcript that matched an agent echo phrase.
type TranscriptDiscarded struct {
	Base
	Transcript string
}

// NewTranscriptDiscarded creates a discarded transcript event.
func NewTranscriptDiscarded(transcript string) TranscriptDiscarded {
	return TranscriptDiscarded{Base: NewBase(KindTranscriptDiscarded), Transcript: transcript}
}

// NoMatch marks audio that was heard but could not be decoded.
type NoMatch struct{ Base }

// NewNoMatch creates a no-match event.
func NewNoMatch() NoMatch {
	return NoMatch{Base: NewBase(KindNoMatch)}
}

// RecognitionFailed carries a recognizer error.
type RecognitionFailed struct {
	Base
	Err error
}

// NewRecognitionFailed creates a recognition failed event.
func NewRecognitionFailed(err error) RecognitionFailed {
	return RecognitionFailed{Base: NewBase(KindRecognitionFailed), Err: err}
}

// ListeningEnded marks the close of a recognition attempt.
type ListeningEnded struct {
	Base
	Attempt int
}

// NewListeningEnded creates a listening ended event.
func NewListeningEnded(attempt int) ListeningEnded {
	return ListeningEnded{Base: NewBase(KindListeningEnded), Attempt: attempt}
}
