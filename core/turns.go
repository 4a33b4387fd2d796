package orchestration

import "time"

type Outcome string

const (
	OutcomePending        Outcome = "pending"
	OutcomeAnswered       Outcome = "answered"
	OutcomeNoResponse     Outcome = "no_response"
	OutcomeUnintelligible Outcome = "unintelligible"
	OutcomeTimedOut       Outcome = "timed_out"
)

// Sentinel answers recorded for turns without a usable transcript.
const (
	SentinelNoResponse     = "[No response]"
	SentinelUnintelligible = "[Unintelligible]"
	SentinelTimeout        = "[Timeout]"
)

func (o Outcome) Sentinel() string {
	switch o {
	case OutcomeNoResponse:
		return SentinelNoResponse
	case OutcomeUnintelligible:
		return SentinelUnintelligible
	case OutcomeTimedOut:
		return SentinelTimeout
	}
	return ""
}

func (o Outcome) err() error {
	switch o {
	case OutcomeNoResponse:
		return ErrNoSpeechDetected
	case OutcomeUnintelligible:
		return ErrUnintelligible
	case OutcomeTimedOut:
		return ErrHardTimeout
	}
	return nil
}

// Turn is the record of one resolved prompt, speak, listen cycle.
type Turn struct {
	ID        string
	PromptID  string
	Attempts  int
	StartedAt time.Time
	Duration  time.Duration
	Outcome   Outcome
	// Answer is the transcript, or the outcome's sentinel.
	Answer string
	// Err explains a sentinel outcome, e.g. [ErrNoSpeechDetected] or a
	// recognizer permission error.
	Err error
}
