package texttospeech

import (
	"errors"
	"fmt"
)

var ErrSynthesis = errors.New("speech synthesis failed")

type SynthesisError struct {
	Err error
}

func NewSynthesisError(err error) error {
	return &SynthesisError{Err: err}
}

func (e *SynthesisError) Error() string {
	if e.Err == nil {
		return ErrSynthesis.Error()
	}
	return fmt.Sprintf("%s: %v", ErrSynthesis, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

func (e *SynthesisError) Is(target error) bool { return target == ErrSynthesis }
