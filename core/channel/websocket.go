package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-dialogue/core/protocol"
)

const closeTimeout = time.Second

type WebsocketChannel struct {
	url     string
	options dialOptions

	conn    *websocket.Conn
	writeMu sync.Mutex

	inbound chan protocol.Message
	stop    chan struct{}
	done    chan struct{}

	mu        sync.Mutex
	state     State
	err       error
	closing   bool
	closeOnce sync.Once
}

type DialOption func(*dialOptions)

type dialOptions struct {
	dialer *websocket.Dialer
	header http.Header
}

func WithDialer(dialer *websocket.Dialer) DialOption {
	return func(o *dialOptions) {
		if dialer != nil {
			o.dialer = dialer
		}
	}
}

func WithHeader(header http.Header) DialOption {
	return func(o *dialOptions) { o.header = header }
}

// Dial connects to an agent listening on url.
func Dial(ctx context.Context, url string, opts ...DialOption) (*WebsocketChannel, error) {
	c := New(url, opts...)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// New returns a disconnected channel to the agent at url. It reports
// [StateConnecting] while [WebsocketChannel.Connect] dials.
func New(url string, opts ...DialOption) *WebsocketChannel {
	options := dialOptions{dialer: websocket.DefaultDialer}
	for _, opt := range opts {
		opt(&options)
	}

	return &WebsocketChannel{
		url:     url,
		options: options,
		inbound: make(chan protocol.Message, 16),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		state:   StateDisconnected,
	}
}

// NewWebsocketChannel wraps an established connection, for example one
// accepted by a [websocket.Upgrader].
func NewWebsocketChannel(conn *websocket.Conn) *WebsocketChannel {
	c := &WebsocketChannel{
		conn:    conn,
		inbound: make(chan protocol.Message, 16),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		state:   StateConnected,
	}
	go c.readMessages()
	return c
}

// Connect dials the agent. A channel connects at most once.
func (c *WebsocketChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateDisconnected || c.conn != nil {
		c.mu.Unlock()
		return fmt.Errorf("channel already %s", c.state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, _, err := c.options.dialer.DialContext(ctx, c.url, c.options.header)
	if err != nil {
		err = &ChannelError{Op: "dial", Err: err}
		c.mu.Lock()
		c.state = StateError
		c.err = err
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	go c.readMessages()
	return nil
}

func (c *WebsocketChannel) Receive() <-chan protocol.Message { return c.inbound }

func (c *WebsocketChannel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *WebsocketChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *WebsocketChannel) Send(ctx context.Context, msg protocol.Message) error {
	if c.State() != StateConnected {
		return ErrClosed
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return &ChannelError{Op: "send", Err: err}
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		err = &ChannelError{Op: "send", Err: err}
		c.fail(err)
		return err
	}
	return nil
}

func (c *WebsocketChannel) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closing = true
		conn := c.conn
		c.mu.Unlock()
		close(c.stop)

		if conn == nil {
			close(c.inbound)
			close(c.done)
			c.setState(StateDisconnected)
			return
		}

		c.writeMu.Lock()
		err := conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeTimeout))
		c.writeMu.Unlock()
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			logger.Debug("failed to send close message", "error", err)
		}

		select {
		case <-c.done:
		case <-time.After(closeTimeout):
		}

		if err := conn.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close websocket: %w", err)
		}
		<-c.done

		c.setState(StateDisconnected)
	})
	return closeErr
}

func (c *WebsocketChannel) readMessages() {
	defer close(c.done)
	defer close(c.inbound)

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closing := c.closing
			c.mu.Unlock()

			if closing || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.setState(StateDisconnected)
			} else {
				c.fail(&ChannelError{Op: "receive", Err: err})
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			logger.Warn("dropping undecodable message", "error", err)
			continue
		}
		select {
		case c.inbound <- msg:
		case <-c.stop:
			c.setState(StateDisconnected)
			return
		}
	}
}

func (c *WebsocketChannel) setState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateError {
		c.state = state
	}
}

func (c *WebsocketChannel) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing || c.state == StateError {
		return
	}
	c.state = StateError
	c.err = err
}
