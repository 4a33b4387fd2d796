package deepgram

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-dialogue/core/audio"
)

const defaultListenURL = "wss://api.deepgram.com/v1/listen"

// AudioInput is the microphone the client captures from while an attempt is
// open.
type AudioInput interface {
	EncodingInfo() audio.EncodingInfo
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

// TranscriptionClient recognizes speech over the Deepgram live websocket. Each
// listening attempt opens its own connection and owns the microphone until it
// is stopped.
type TranscriptionClient struct {
	apiKey    string
	listenURL string
	model     string
	dialer    *websocket.Dialer
	input     AudioInput

	utteranceEndMs int
	endpointingMs  int

	mu     sync.Mutex
	active *listenAttempt
}

type ClientOption func(*TranscriptionClient)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) { c.apiKey = apiKey }
}

// WithListenURL points the client at a different listen endpoint.
func WithListenURL(listenURL string) ClientOption {
	return func(c *TranscriptionClient) { c.listenURL = listenURL }
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) { c.model = model }
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *TranscriptionClient) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// WithUtteranceEnd sets how long Deepgram waits after the last word before
// reporting the end of an utterance.
func WithUtteranceEnd(ms int) ClientOption {
	return func(c *TranscriptionClient) { c.utteranceEndMs = ms }
}

func NewTranscriptionClient(input AudioInput, opts ...ClientOption) (*TranscriptionClient, error) {
	if input == nil {
		return nil, fmt.Errorf("audio input is required")
	}

	client := &TranscriptionClient{
		listenURL:      defaultListenURL,
		model:          "nova-3",
		dialer:         websocket.DefaultDialer,
		input:          input,
		utteranceEndMs: 1000,
		endpointingMs:  300,
	}
	if apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY"); ok {
		client.apiKey = apiKey
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	return client, nil
}

// Close stops the outstanding attempt, if any.
func (c *TranscriptionClient) Close() error {
	c.mu.Lock()
	active := c.active
	c.active = nil
	c.mu.Unlock()

	if active != nil {
		return active.Stop()
	}
	return nil
}
