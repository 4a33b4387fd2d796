package deepgram

import (
	"fmt"
	"net/http"
	"os"
	"slices"
	"sync"

	"github.com/koscakluka/ema-dialogue/core/audio"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultSpeakURL = "https://api.deepgram.com/v1/speak"

// AudioOutput is the speaker synthesized audio is played through. A mark
// callback runs once the audio queued before it has been played.
type AudioOutput interface {
	EncodingInfo() audio.EncodingInfo
	SendAudio(audio []byte) error
	Mark(name string, callback func(string)) error
	ClearBuffer()
}

type TextToSpeechClient struct {
	apiKey     string
	speakURL   string
	voice      Voice
	httpClient *http.Client
	output     AudioOutput

	mu     sync.Mutex
	active *utterance
}

type ClientOption func(*TextToSpeechClient)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) { c.apiKey = apiKey }
}

func WithSpeakURL(speakURL string) ClientOption {
	return func(c *TextToSpeechClient) { c.speakURL = speakURL }
}

func WithVoice(voice Voice) ClientOption {
	return func(c *TextToSpeechClient) { c.voice = voice }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *TextToSpeechClient) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func NewTextToSpeechClient(output AudioOutput, opts ...ClientOption) (*TextToSpeechClient, error) {
	if output == nil {
		return nil, fmt.Errorf("audio output is required")
	}

	client := &TextToSpeechClient{
		speakURL: defaultSpeakURL,
		voice:    DefaultVoice,
		output:   output,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
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
	if !slices.Contains(GetAvailableVoices(), client.voice) {
		return nil, fmt.Errorf("invalid voice %q", client.voice)
	}

	return client, nil
}

func (c *TextToSpeechClient) SetVoice(voice Voice) error {
	if !slices.Contains(GetAvailableVoices(), voice) {
		return fmt.Errorf("invalid voice %q", voice)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.voice = voice
	return nil
}

// Close stops the utterance currently playing, if any.
func (c *TextToSpeechClient) Close() error {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()

	if active != nil {
		return active.Stop()
	}
	return nil
}
