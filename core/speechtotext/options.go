package speechtotext

import "github.com/koscakluka/ema-dialogue/core/audio"

const DefaultLanguage = "en-US"

// ListenOptions carries the callbacks of one listening attempt.
//
// Callbacks may be invoked from any goroutine. After Stop returns, an attempt
// may still deliver EndedCallback once; no other callback is delivered.
type ListenOptions struct {
	// AudioStartCallback is called when voiced input is detected.
	AudioStartCallback func()
	// AudioEndCallback is called when voiced input ceases.
	AudioEndCallback func()
	// ResultCallback is called with the single best transcript.
	ResultCallback func(transcript string)
	// NoMatchCallback is called when audio was heard but not decoded.
	NoMatchCallback func()
	// ErrorCallback is called with a [RecognitionError] on hard failures.
	ErrorCallback func(err error)
	// EndedCallback is called once when the attempt closes.
	EndedCallback func()

	Language     string
	EncodingInfo audio.EncodingInfo
}

type ListenOption func(*ListenOptions)

// NewListenOptions applies opts over no-op callbacks so adapters can invoke
// every callback unconditionally.
func NewListenOptions(opts ...ListenOption) ListenOptions {
	options := ListenOptions{
		AudioStartCallback: func() {},
		AudioEndCallback:   func() {},
		ResultCallback:     func(string) {},
		NoMatchCallback:    func() {},
		ErrorCallback:      func(error) {},
		EndedCallback:      func() {},
		Language:           DefaultLanguage,
		EncodingInfo:       audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func WithAudioStartCallback(callback func()) ListenOption {
	return func(o *ListenOptions) {
		if callback != nil {
			o.AudioStartCallback = callback
		}
	}
}

func WithAudioEndCallback(callback func()) ListenOption {
	return func(o *ListenOptions) {
		if callback != nil {
			o.AudioEndCallback = callback
		}
	}
}

func WithResultCallback(callback func(transcript string)) ListenOption {
	return func(o *ListenOptions) {
		if callback != nil {
			o.ResultCallback = callback
		}
	}
}

func WithNoMatchCallback(callback func()) ListenOption {
	return func(o *ListenOptions) {
		if callback != nil {
			o.NoMatchCallback = callback
		}
	}
}

func WithErrorCallback(callback func(err error)) ListenOption {
	return func(o *ListenOptions) {
		if callback != nil {
			o.ErrorCallback = callback
		}
	}
}

func WithEndedCallback(callback func()) ListenOption {
	return func(o *ListenOptions) {
		if callback != nil {
			o.EndedCallback = callback
		}
	}
}

func WithLanguage(language string) ListenOption {
	return func(o *ListenOptions) {
		if language != "" {
			o.Language = language
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) ListenOption {
	return func(o *ListenOptions) {
		if !encodingInfo.IsZero() {
			o.EncodingInfo = encodingInfo
		}
	}
}
