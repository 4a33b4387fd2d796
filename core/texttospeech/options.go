package texttospeech

import "github.com/koscakluka/ema-dialogue/core/audio"

type SpeakOptions struct {
	// StartedCallback is called once the utterance starts producing audio
	StartedCallback func()
	// FinishedCallback is called once all audio of the utterance has been
	// played
	FinishedCallback func()
	// ErrorCallback is called when the utterance could not be synthesized or
	// played, usually with a [SynthesisError]
	ErrorCallback func(error)

	EncodingInfo audio.EncodingInfo
}

type SpeakOption func(*SpeakOptions)

// NewSpeakOptions applies opts over no-op callbacks.
func NewSpeakOptions(opts ...SpeakOption) SpeakOptions {
	options := SpeakOptions{
		StartedCallback:  func() {},
		FinishedCallback: func() {},
		ErrorCallback:    func(error) {},
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func WithStartedCallback(callback func()) SpeakOption {
	return func(o *SpeakOptions) {
		if callback != nil {
			o.StartedCallback = callback
		}
	}
}

func WithFinishedCallback(callback func()) SpeakOption {
	return func(o *SpeakOptions) {
		if callback != nil {
			o.FinishedCallback = callback
		}
	}
}

func WithErrorCallback(callback func(error)) SpeakOption {
	return func(o *SpeakOptions) {
		if callback != nil {
			o.ErrorCallback = callback
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SpeakOption {
	return func(o *SpeakOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}
