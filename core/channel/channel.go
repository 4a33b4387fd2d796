// Package channel carries protocol messages between the session and the
// agent.
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/koscakluka/ema-dialogue/core/protocol"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

var ErrClosed = errors.New("channel closed")

// Channel is an ordered duplex message channel.
type Channel interface {
	Send(ctx context.Context, msg protocol.Message) error
	// Receive delivers inbound messages in order. It is closed once the
	// channel is closed by either side.
	Receive() <-chan protocol.Message
	State() State
	// Err reports why the channel is in StateError.
	Err() error
	// Close is idempotent.
	Close() error
}

// ChannelError is a transport failure. Sessions surface it as their state
// instead of retrying.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s failed: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }
