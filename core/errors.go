package orchestration

import "errors"

var (
	ErrNoRecognizer  = errors.New("speech recognizer is required")
	ErrSessionClosed = errors.New("session closed")

	// Turn outcomes carried as [Turn.Err]. They are never returned from
	// session methods.
	ErrNoSpeechDetected = errors.New("no speech detected")
	ErrUnintelligible   = errors.New("speech was not intelligible")
	ErrHardTimeout      = errors.New("turn hit its hard deadline")
)
