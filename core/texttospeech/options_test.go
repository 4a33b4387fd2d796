package texttospeech

import (
	"errors"
	"testing"

	"github.com/koscakluka/ema-dialogue/core/audio"
)

func TestNewSpeakOptionsFillsCallbacks(t *testing.T) {
	options := NewSpeakOptions(WithStartedCallback(nil), WithEncodingInfo(audio.EncodingInfo{}))

	options.StartedCallback()
	options.FinishedCallback()
	options.ErrorCallback(errors.New("ignored"))

	if !options.EncodingInfo.IsZero() {
		t.Fatalf("expected zero encoding info to be ignored, got %+v", options.EncodingInfo)
	}
}

func TestSynthesisErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("speaker unplugged")
	err := NewSynthesisError(cause)

	if !errors.Is(err, ErrSynthesis) {
		t.Fatalf("expected synthesis error to match sentinel")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected synthesis error to wrap its cause")
	}
}
