// Package portaudio captures microphone audio through PortAudio. It is an
// alternative input for hosts where miniaudio is not available and has no
// playback side.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-dialogue/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-dialogue/core/audio/portaudio"

var logger = otelslog.NewLogger(scopeName)

type Client struct {
	stream *portaudio.Stream
	in     []int16

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, audio.DefaultSampleRate, bufferSize, in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	return &Client{stream: stream, in: in}, nil
}

// StartCapture starts reading the microphone until StopCapture is called or
// ctx is done. Calling it while capturing replaces onAudio.
func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		<-c.stopped
	} else if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	c.cancel = cancel
	c.stopped = stopped

	go func() {
		defer close(stopped)
		for ctx.Err() == nil {
			if err := c.stream.Read(); err != nil {
				logger.Warn("failed to read from portaudio stream", "error", err)
				continue
			}

			audioBuffer := bytes.Buffer{}
			if err := binary.Write(&audioBuffer, binary.LittleEndian, c.in); err != nil {
				logger.Warn("failed to encode microphone audio", "error", err)
				continue
			}
			onAudio(audioBuffer.Bytes())
		}
	}()

	return nil
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		return nil
	}
	c.cancel()
	<-c.stopped
	c.cancel = nil

	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop portaudio stream: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	stopErr := c.StopCapture()
	if err := c.stream.Close(); err != nil {
		stopErr = errors.Join(stopErr, fmt.Errorf("failed to close portaudio stream: %w", err))
	}
	if err := portaudio.Terminate(); err != nil {
		stopErr = errors.Join(stopErr, fmt.Errorf("failed to terminate portaudio: %w", err))
	}
	return stopErr
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
