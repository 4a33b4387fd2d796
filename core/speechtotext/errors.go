package speechtotext

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied = errors.New("speech recognition permission denied")
	ErrTransient        = errors.New("speech recognition failed")
)

type ErrorClass string

const (
	ClassPermissionDenied ErrorClass = "permission_denied"
	ClassTransient        ErrorClass = "transient"
)

// RecognitionError classifies a recognizer failure. Permission errors are not
// retried automatically; transient ones may be.
type RecognitionError struct {
	Class ErrorClass
	Err   error
}

func (e *RecognitionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("recognition error (%s)", e.Class)
	}
	return fmt.Sprintf("recognition error (%s): %v", e.Class, e.Err)
}

func (e *RecognitionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RecognitionError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrPermissionDenied:
		return e.Class == ClassPermissionDenied
	case ErrTransient:
		return e.Class == ClassTransient
	}
	return false
}

func NewPermissionDeniedError(err error) error {
	return &RecognitionError{Class: ClassPermissionDenied, Err: err}
}

func NewTransientError(err error) error {
	return &RecognitionError{Class: ClassTransient, Err: err}
}

// Classify reports the class of err. Unclassified errors are transient.
func Classify(err error) ErrorClass {
	var recognitionErr *RecognitionError
	if errors.As(err, &recognitionErr) && recognitionErr.Class != "" {
		return recognitionErr.Class
	}
	if errors.Is(err, ErrPermissionDenied) {
		return ClassPermissionDenied
	}
	return ClassTransient
}
