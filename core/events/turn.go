package events

import "time"

const (
	// KindTurnStarted identifies a prompt becoming the active turn.
	KindTurnStarted Kind = "turn.started"
	// KindTurnReprompted identifies a re-prompt after a failed attempt.
	KindTurnReprompted Kind = "turn.reprompted"
	// KindTurnNotice identifies a user-facing notice raised by a turn.
	KindTurnNotice Kind = "turn.notice"
	// KindTurnResolved identifies a turn reaching its terminal outcome.
	KindTurnResolved Kind = "turn.resolved"
)

// TurnStarted marks a prompt becoming the active turn.
type TurnStarted struct {
	Base
	TurnID   string
	PromptID string
}

// NewTurnStarted creates a turn started event.
func NewTurnStarted(turnID, promptID string) TurnStarted {
	return TurnStarted{Base: NewBase(KindTurnStarted), TurnID: turnID, PromptID: promptID}
}

// TurnReprompted marks the agent asking again before the next attempt.
type TurnReprompted struct {
	Base
	TurnID      string
	NextAttempt int
}

// NewTurnReprompted creates a turn reprompted event.
func NewTurnReprompted(turnID string, nextAttempt int) TurnReprompted {
	return TurnReprompted{Base: NewBase(KindTurnReprompted), TurnID: turnID, NextAttempt: nextAttempt}
}

// TurnNotice carries a message meant for the user, e.g. a missing microphone
// permission.
type TurnNotice struct {
	Base
	TurnID  string
	Message string
}

// NewTurnNotice creates a turn notice event.
func NewTurnNotice(turnID, message string) TurnNotice {
	return TurnNotice{Base: NewBase(KindTurnNotice), TurnID: turnID, Message: message}
}

// TurnResolved carries the terminal outcome of a turn.
type TurnResolved struct {
	Base
	TurnID   string
	PromptID string
	Outcome  string
	Answer   string
	Attempts int
	Duration time.Duration
}

// NewTurnResolved creates a turn resolved event.
func NewTurnResolved(turnID, promptID, outcome, answer string, attempts int, duration time.Duration) TurnResolved {
	return TurnResolved{
		Base:     NewBase(KindTurnResolved),
		TurnID:   turnID,
		PromptID: promptID,
		Outcome:  outcome,
		Answer:   answer,
		Attempts: attempts,
		Duration: duration,
	}
}
