package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-dialogue/core/audio"
	"github.com/koscakluka/ema-dialogue/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	chunkSize = 4096
	endMark   = "utterance-end"
)

// Speak synthesizes text through the Deepgram speak API and plays it on the
// client's output.
func (c *TextToSpeechClient) Speak(ctx context.Context, text string, opts ...texttospeech.SpeakOption) (texttospeech.Utterance, error) {
	if strings.TrimSpace(text) == "" {
		return nil, texttospeech.NewSynthesisError(fmt.Errorf("nothing to speak"))
	}

	u := c.startUtterance(ctx, opts)
	go u.run(func(ctx context.Context) (io.ReadCloser, error) {
		return c.requestSpeech(ctx, text, u.options.EncodingInfo)
	})
	return u, nil
}

// PlayAudio plays audio the agent already synthesized. It has to match the
// output encoding.
func (c *TextToSpeechClient) PlayAudio(ctx context.Context, audio []byte, opts ...texttospeech.SpeakOption) (texttospeech.Utterance, error) {
	if len(audio) == 0 {
		return nil, texttospeech.NewSynthesisError(fmt.Errorf("no audio to play"))
	}

	u := c.startUtterance(ctx, opts)
	go u.run(func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(audio)), nil
	})
	return u, nil
}

func (c *TextToSpeechClient) startUtterance(ctx context.Context, opts []texttospeech.SpeakOption) *utterance {
	c.mu.Lock()
	previous := c.active
	c.mu.Unlock()
	if previous != nil {
		if err := previous.Stop(); err != nil {
			logger.Warn("failed to stop previous utterance", "error", err)
		}
	}

	options := texttospeech.NewSpeakOptions(
		append([]texttospeech.SpeakOption{texttospeech.WithEncodingInfo(c.output.EncodingInfo())}, opts...)...,
	)
	if options.EncodingInfo.IsZero() {
		options.EncodingInfo = audio.GetDefaultEncodingInfo()
	}

	ctx, cancel := context.WithCancel(ctx)
	u := &utterance{
		ctx:     ctx,
		cancel:  cancel,
		options: options,
		output:  c.output,
	}
	u.release = func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.active != u {
			return false
		}
		c.active = nil
		return true
	}

	c.mu.Lock()
	c.active = u
	c.mu.Unlock()

	return u
}

func (c *TextToSpeechClient) requestSpeech(ctx context.Context, text string, encodingInfo audio.EncodingInfo) (io.ReadCloser, error) {
	c.mu.Lock()
	voice := c.voice
	c.mu.Unlock()

	speakURL, err := url.Parse(c.speakURL)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}
	queryParams := speakURL.Query()
	queryParams.Set("model", string(voice))
	queryParams.Set("encoding", encodingInfo.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	queryParams.Set("container", "none")
	speakURL.RawQuery = queryParams.Encode()

	requestBody, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, speakURL.String(), bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("request.url", req.URL.String()),
		attribute.String("request.voice", string(voice)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, strings.TrimSpace(string(errorBody)))
	}

	return resp.Body, nil
}

type utterance struct {
	ctx     context.Context
	cancel  context.CancelFunc
	options texttospeech.SpeakOptions
	output  AudioOutput
	// release detaches the utterance from the client and reports whether it
	// was still the active one.
	release func() bool

	stopped    atomic.Bool
	stopOnce   sync.Once
	finishOnce sync.Once
}

func (u *utterance) run(open func(ctx context.Context) (io.ReadCloser, error)) {
	ctx, span := tracer.Start(u.ctx, "speak utterance")
	defer span.End()

	body, err := open(ctx)
	if err != nil {
		u.fail(span, err)
		return
	}
	defer body.Close()

	started := false
	buffer := make([]byte, chunkSize)
	for {
		n, readErr := body.Read(buffer)
		if n > 0 {
			if u.stopped.Load() {
				return
			}
			if !started {
				started = true
				span.AddEvent("audio started")
				u.options.StartedCallback()
			}

			chunk := make([]byte, n)
			copy(chunk, buffer[:n])
			if err := u.output.SendAudio(chunk); err != nil {
				u.fail(span, fmt.Errorf("failed to play audio: %w", err))
				return
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		} else if readErr != nil {
			u.fail(span, fmt.Errorf("failed to read synthesized audio: %w", readErr))
			return
		}
	}

	if u.stopped.Load() {
		return
	}
	if !started {
		u.fail(span, fmt.Errorf("no audio was synthesized"))
		return
	}

	if err := u.output.Mark(endMark, func(string) { u.finish() }); err != nil {
		u.fail(span, fmt.Errorf("failed to mark end of utterance: %w", err))
	}
}

func (u *utterance) finish() {
	if u.stopped.Load() {
		return
	}

	u.finishOnce.Do(func() {
		u.release()
		u.cancel()
		u.options.FinishedCallback()
	})
}

func (u *utterance) fail(span trace.Span, err error) {
	if u.stopped.Load() {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	u.finishOnce.Do(func() {
		if u.release() {
			u.output.ClearBuffer()
		}
		u.cancel()
		u.options.ErrorCallback(texttospeech.NewSynthesisError(err))
	})
}

// Stop interrupts playback. No callback is delivered after Stop.
func (u *utterance) Stop() error {
	u.stopOnce.Do(func() {
		u.stopped.Store(true)
		u.cancel()
		if u.release() {
			u.output.ClearBuffer()
		}
	})
	return nil
}
