package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-dialogue/core/speechtotext"
	"go.opentelemetry.io/otel/codes"
)

var supportedSampleRates = []int{8000, 16000, 24000, 32000, 48000}

// Listen opens a new listening attempt, stopping the previous one first.
func (c *TranscriptionClient) Listen(ctx context.Context, opts ...speechtotext.ListenOption) (speechtotext.Attempt, error) {
	options := speechtotext.NewListenOptions(
		append([]speechtotext.ListenOption{speechtotext.WithEncodingInfo(c.input.EncodingInfo())}, opts...)...,
	)

	c.mu.Lock()
	previous := c.active
	c.mu.Unlock()
	if previous != nil {
		if err := previous.Stop(); err != nil {
			logger.Warn("failed to stop previous listening attempt", "error", err)
		}
	}

	encoding := options.EncodingInfo
	if err := encoding.Validate(supportedSampleRates...); err != nil {
		return nil, speechtotext.NewTransientError(fmt.Errorf("invalid encoding: %w", err))
	}

	ctx, span := tracer.Start(ctx, "open listening attempt")
	defer span.End()

	conn, err := c.connect(ctx, connectionOptions{
		sampleRate: encoding.SampleRate,
		encoding:   encoding.Format.Name(),
		language:   options.Language,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	attempt := &listenAttempt{
		conn:    conn,
		options: options,
		done:    make(chan struct{}),
	}
	attempt.stopCapture = func() error {
		c.mu.Lock()
		isActive := c.active == attempt
		if isActive {
			c.active = nil
		}
		c.mu.Unlock()

		if !isActive {
			return nil
		}
		return c.input.StopCapture()
	}

	c.mu.Lock()
	c.active = attempt
	c.mu.Unlock()

	if err := c.input.StartCapture(ctx, attempt.sendAudio); err != nil {
		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()
		_ = conn.Close()

		err = speechtotext.NewPermissionDeniedError(fmt.Errorf("failed to start audio capture: %w", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	go attempt.readAndProcessMessages()
	go func() {
		select {
		case <-ctx.Done():
			_ = attempt.Stop()
		case <-attempt.done:
		}
	}()

	return attempt, nil
}

type connectionOptions struct {
	sampleRate int
	encoding   string
	language   string
}

func (c *TranscriptionClient) connect(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	listenURL, err := url.Parse(c.listenURL)
	if err != nil {
		return nil, speechtotext.NewTransientError(fmt.Errorf("invalid listen url: %w", err))
	}

	queryParams := listenURL.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", c.model)
	queryParams.Set("language", options.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", strconv.Itoa(c.utteranceEndMs))
	queryParams.Set("endpointing", strconv.Itoa(c.endpointingMs))
	queryParams.Set("vad_events", "true")
	listenURL.RawQuery = queryParams.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, speechtotext.NewPermissionDeniedError(fmt.Errorf("deepgram rejected the connection: %s", resp.Status))
		}
		return nil, speechtotext.NewTransientError(fmt.Errorf("failed to open socket connection to deepgram: %w", err))
	}

	return conn, nil
}

type listenAttempt struct {
	conn        *websocket.Conn
	connMu      sync.Mutex
	options     speechtotext.ListenOptions
	stopCapture func() error

	stopped  atomic.Bool
	stopOnce sync.Once
	stopErr  error
	done     chan struct{}

	// Only touched by the reader goroutine.
	accumulatedTranscript string
	unendedSegment        bool
}

func (a *listenAttempt) sendAudio(audio []byte) {
	if a.stopped.Load() {
		return
	}

	a.connMu.Lock()
	defer a.connMu.Unlock()
	if err := a.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		logger.Debug("failed to write audio to deepgram", "error", err)
	}
}

// Stop releases the microphone and closes the connection. The reader
// goroutine then delivers EndedCallback.
func (a *listenAttempt) Stop() error {
	a.stopOnce.Do(func() {
		a.stopped.Store(true)

		if a.stopCapture != nil {
			if err := a.stopCapture(); err != nil {
				a.stopErr = errors.Join(a.stopErr, fmt.Errorf("failed to stop audio capture: %w", err))
			}
		}

		a.connMu.Lock()
		_ = a.conn.WriteJSON(struct {
			Type string `json:"type"`
		}{Type: string(api.TypeCloseStreamResponse)})
		a.connMu.Unlock()

		if err := a.conn.Close(); err != nil {
			a.stopErr = errors.Join(a.stopErr, fmt.Errorf("failed to close deepgram connection: %w", err))
		}
	})
	return a.stopErr
}

func (a *listenAttempt) readAndProcessMessages() {
	defer func() {
		_ = a.Stop()
		close(a.done)
		a.options.EndedCallback()
	}()

	for {
		msgType, msg, err := a.conn.ReadMessage()
		if err != nil {
			if !a.stopped.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				a.options.ErrorCallback(speechtotext.NewTransientError(fmt.Errorf("failed to read deepgram message: %w", err)))
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			a.processMessage(msg)
		}
	}
}

func (a *listenAttempt) processMessage(msg []byte) {
	if a.stopped.Load() {
		return
	}

	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram results", "error", err)
			return
		}
		if !msgResp.IsFinal {
			return
		}

		if len(msgResp.Channel.Alternatives) > 0 {
			if transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript); transcript != "" {
				a.accumulatedTranscript += " " + transcript
				a.unendedSegment = true
			}
		}
		if msgResp.SpeechFinal && a.unendedSegment {
			a.onSpeechEnded()
		}

	case api.TypeUtteranceEndResponse:
		if a.unendedSegment {
			a.onSpeechEnded()
		}

	case api.TypeSpeechStartedResponse:
		a.unendedSegment = true
		a.options.AudioStartCallback()
	}
}

func (a *listenAttempt) onSpeechEnded() {
	a.unendedSegment = false
	a.options.AudioEndCallback()

	fullTranscript := strings.TrimSpace(a.accumulatedTranscript)
	a.accumulatedTranscript = ""
	if fullTranscript == "" {
		a.options.NoMatchCallback()
		return
	}
	a.options.ResultCallback(fullTranscript)
}
