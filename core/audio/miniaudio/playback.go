package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type playbackClient struct {
	device *malgo.Device
	buffer playbackBuffer

	mu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext, sampleRate int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(sampleRate)
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = uint32(sampleRate) / 10 // ~100ms of audio
	config.Periods = 4

	var err error
	if c.device, err = malgo.InitDevice(
		audioContext.Context,
		config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) SendAudio(audio []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return fmt.Errorf("device not started")
	}

	c.buffer.push(audio)
	return nil
}

// ClearBuffer drops queued audio together with its pending marks.
func (c *playbackClient) ClearBuffer() {
	c.buffer.clear()
}

func (c *playbackClient) Mark(name string, callback func(string)) error {
	c.buffer.mark(name, callback)
	return nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}

	c.device.Uninit()
	c.device = nil
	c.buffer.clear()
	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame
		passed := c.buffer.read(pOutput[:min(need, len(pOutput))])
		if len(passed) > 0 {
			go func() {
				for _, mark := range passed {
					mark.callback(mark.name)
				}
			}()
		}
	}
}

type playbackMark struct {
	name     string
	position int
	callback func(string)
}

// playbackBuffer queues audio for the device callback and tracks marks by
// their byte offset into the queue.
type playbackBuffer struct {
	mu    sync.Mutex
	audio []byte
	marks []playbackMark
}

func (b *playbackBuffer) push(audio []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio = append(b.audio, audio...)
}

func (b *playbackBuffer) mark(name string, callback func(string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.marks = append(b.marks, playbackMark{
		name:     name,
		position: len(b.audio),
		callback: callback,
	})
}

func (b *playbackBuffer) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.audio = nil
	b.marks = nil
}

// read fills out with queued audio, padding with silence, and returns the
// marks whose audio has now been handed to the device.
func (b *playbackBuffer) read(out []byte) []playbackMark {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := copy(out, b.audio)
	clear(out[n:])
	b.audio = b.audio[n:]
	if len(b.audio) == 0 {
		b.audio = nil
	}

	var passed []playbackMark
	remaining := b.marks[:0]
	for _, mark := range b.marks {
		if mark.position <= n {
			passed = append(passed, mark)
			continue
		}
		mark.position -= n
		remaining = append(remaining, mark)
	}
	b.marks = remaining

	return passed
}
