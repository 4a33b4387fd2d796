package events

const (
	// KindSynthesisStarted identifies the start of agent audio playback.
	KindSynthesisStarted Kind = "synthesizer.started"
	// KindSynthesisFinished identifies natural completion of agent audio.
	KindSynthesisFinished Kind = "synthesizer.finished"
	// KindSynthesisFailed identifies a synthesis engine failure.
	KindSynthesisFailed Kind = "synthesizer.failed"
	// KindSynthesisStopped identifies an explicit stop of agent audio.
	KindSynthesisStopped Kind = "synthesizer.stopped"
)

// SynthesisStarted marks that agent audio started playing.
type SynthesisStarted struct {
	Base
	Text string
}

// NewSynthesisStarted creates a synthesis started event.
func NewSynthesisStarted(text string) SynthesisStarted {
	return SynthesisStarted{Base: NewBase(KindSynthesisStarted), Text: text}
}

// SynthesisFinished marks that agent audio finished playing.
type SynthesisFinished struct {
	Base
	Text string
}

// NewSynthesisFinished creates a synthesis finished event.
func NewSynthesisFinished(text string) SynthesisFinished {
	return SynthesisFinished{Base: NewBase(KindSynthesisFinished), Text: text}
}

// SynthesisFailed carries the engine error that aborted an utterance.
type SynthesisFailed struct {
	Base
	Err error
}

// NewSynthesisFailed creates a synthesis failed event.
func NewSynthesisFailed(err error) SynthesisFailed {
	return SynthesisFailed{Base: NewBase(KindSynthesisFailed), Err: err}
}

// SynthesisStopped marks that agent audio was cut off, e.g. by barge-in.
type SynthesisStopped struct {
	Base
	Reason string
}

// NewSynthesisStopped creates a synthesis stopped event.
func NewSynthesisStopped(reason string) SynthesisStopped {
	return SynthesisStopped{Base: NewBase(KindSynthesisStopped), Reason: reason}
}
