package events

const (
	// KindSessionStateChanged identifies a change of channel health.
	KindSessionStateChanged Kind = "session.state_changed"
	// KindMessageSent identifies an outbound protocol message.
	KindMessageSent Kind = "session.message_sent"
	// KindMessageReceived identifies an inbound protocol message.
	KindMessageReceived Kind = "session.message_received"
	// KindSessionCompleted identifies that every prompt has an answer.
	KindSessionCompleted Kind = "session.completed"
	// KindSessionEnded identifies that the session was terminated.
	KindSessionEnded Kind = "session.ended"
)

// SessionStateChanged carries the new channel health state.
type SessionStateChanged struct {
	Base
	State string
	Err   error
}

// NewSessionStateChanged creates a session state changed event.
func NewSessionStateChanged(state string, err error) SessionStateChanged {
	return SessionStateChanged{Base: NewBase(KindSessionStateChanged), State: state, Err: err}
}

// MessageSent carries an outbound protocol message type and text.
type MessageSent struct {
	Base
	Type string
	Text string
}

// NewMessageSent creates a message sent event.
func NewMessageSent(messageType, text string) MessageSent {
	return MessageSent{Base: NewBase(KindMessageSent), Type: messageType, Text: text}
}

// MessageReceived carries an inbound protocol message type and text.
type MessageReceived struct {
	Base
	Type string
	Text string
}

// NewMessageReceived creates a message received event.
func NewMessageReceived(messageType, text string) MessageReceived {
	return MessageReceived{Base: NewBase(KindMessageReceived), Type: messageType, Text: text}
}

// SessionCompleted marks that every prompt in the set has an answer.
type SessionCompleted struct{ Base }

// NewSessionCompleted creates a session completed event.
func NewSessionCompleted() SessionCompleted {
	return SessionCompleted{Base: NewBase(KindSessionCompleted)}
}

// SessionEnded carries the reason a session was terminated.
type SessionEnded struct {
	Base
	Reason string
}

// NewSessionEnded creates a session ended event.
func NewSessionEnded(reason string) SessionEnded {
	return SessionEnded{Base: NewBase(KindSessionEnded), Reason: reason}
}
