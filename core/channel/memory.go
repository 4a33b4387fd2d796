package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-dialogue/core/protocol"
)

const defaultMemoryBuffer = 64

type pipe struct {
	mu     sync.RWMutex
	closed bool
}

// MemoryChannel is one end of an in-process channel pair.
type MemoryChannel struct {
	pipe    *pipe
	inbound chan protocol.Message
	peer    *MemoryChannel
}

// NewMemoryPair returns two connected ends. Closing either end closes both.
func NewMemoryPair() (*MemoryChannel, *MemoryChannel) {
	p := &pipe{}
	a := &MemoryChannel{pipe: p, inbound: make(chan protocol.Message, defaultMemoryBuffer)}
	b := &MemoryChannel{pipe: p, inbound: make(chan protocol.Message, defaultMemoryBuffer)}
	a.peer, b.peer = b, a
	return a, b
}

func (c *MemoryChannel) Send(ctx context.Context, msg protocol.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	c.pipe.mu.RLock()
	defer c.pipe.mu.RUnlock()
	if c.pipe.closed {
		return ErrClosed
	}

	select {
	case c.peer.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return &ChannelError{Op: "send", Err: fmt.Errorf("peer buffer full")}
	}
}

func (c *MemoryChannel) Receive() <-chan protocol.Message { return c.inbound }

func (c *MemoryChannel) State() State {
	c.pipe.mu.RLock()
	defer c.pipe.mu.RUnlock()
	if c.pipe.closed {
		return StateDisconnected
	}
	return StateConnected
}

func (c *MemoryChannel) Err() error { return nil }

func (c *MemoryChannel) Close() error {
	c.pipe.mu.Lock()
	defer c.pipe.mu.Unlock()
	if c.pipe.closed {
		return nil
	}

	c.pipe.closed = true
	close(c.inbound)
	close(c.peer.inbound)
	return nil
}
