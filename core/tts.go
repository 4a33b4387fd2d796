package orchestration

import (
	"context"
	"fmt"
	"sync/atomic"

	events "github.com/koscakluka/ema-dialogue/core/events"
	"github.com/koscakluka/ema-dialogue/core/texttospeech"
)

type speechHandlers struct {
	onStarted  func()
	onFinished func()
	onFailed   func(err error)
}

// textToSpeech wraps the synthesizer so that at most one utterance is live
// and stale callbacks of a replaced utterance are dropped. It owns the
// speaking flag; both are only touched on the session loop.
type textToSpeech struct {
	client texttospeech.Synthesizer
	player texttospeech.AudioPlayer

	post      func(func()) bool
	emitEvent eventEmitter

	speaking atomic.Bool
	current  *utteranceHandle
	nextID   int
}

type utteranceHandle struct {
	id        int
	text      string
	utterance texttospeech.Utterance
}

func newTextToSpeech(client texttospeech.Synthesizer, player texttospeech.AudioPlayer) *textToSpeech {
	if player == nil {
		if p, ok := client.(texttospeech.AudioPlayer); ok {
			player = p
		}
	}

	return &textToSpeech{
		client:    client,
		player:    player,
		post:      func(f func()) bool { f(); return true },
		emitEvent: noopEventEmitter,
	}
}

// IsSpeaking reports the speaking flag: true exactly while agent audio plays.
func (s *textToSpeech) IsSpeaking() bool { return s.speaking.Load() }

// Speak stops the current utterance and starts a new one. audio takes
// priority over synthesizing text when a player is available.
func (s *textToSpeech) Speak(ctx context.Context, text string, audio []byte, handlers speechHandlers) error {
	s.Stop("superseded")

	s.nextID++
	handle := &utteranceHandle{id: s.nextID, text: text}
	s.current = handle

	if s.client == nil && (s.player == nil || len(audio) == 0) {
		// Text-only agent, nothing to play.
		s.post(s.guard(handle, func() {
			s.current = nil
			if handlers.onFinished != nil {
				handlers.onFinished()
			}
		}))
		return nil
	}

	opts := []texttospeech.SpeakOption{
		texttospeech.WithStartedCallback(func() {
			s.post(s.guard(handle, func() {
				s.speaking.Store(true)
				s.emitEvent(events.NewSynthesisStarted(text))
				if handlers.onStarted != nil {
					handlers.onStarted()
				}
			}))
		}),
		texttospeech.WithFinishedCallback(func() {
			s.post(s.guard(handle, func() {
				s.speaking.Store(false)
				s.current = nil
				s.emitEvent(events.NewSynthesisFinished(text))
				if handlers.onFinished != nil {
					handlers.onFinished()
				}
			}))
		}),
		texttospeech.WithErrorCallback(func(err error) {
			s.post(s.guard(handle, func() {
				s.speaking.Store(false)
				s.current = nil
				s.emitEvent(events.NewSynthesisFailed(err))
				if handlers.onFailed != nil {
					handlers.onFailed(err)
				}
			}))
		}),
	}

	var (
		utterance texttospeech.Utterance
		err       error
	)
	if len(audio) > 0 && s.player != nil {
		utterance, err = s.player.PlayAudio(ctx, audio, opts...)
		if err != nil && s.client != nil {
			logger.Warn("failed to play agent audio, synthesizing text instead", "error", err)
			utterance, err = s.client.Speak(ctx, text, opts...)
		}
	} else {
		utterance, err = s.client.Speak(ctx, text, opts...)
	}
	if err != nil {
		s.current = nil
		err = fmt.Errorf("failed to start utterance: %w", err)
		s.emitEvent(events.NewSynthesisFailed(err))
		return err
	}

	handle.utterance = utterance
	return nil
}

// Stop interrupts the current utterance. It always clears the speaking flag
// and is safe to call when nothing is playing.
func (s *textToSpeech) Stop(reason string) {
	wasSpeaking := s.speaking.Swap(false)

	current := s.current
	s.current = nil
	if current != nil && current.utterance != nil {
		if err := current.utterance.Stop(); err != nil {
			logger.Warn("failed to stop utterance", "error", err)
		}
	}

	if wasSpeaking {
		s.emitEvent(events.NewSynthesisStopped(reason))
	}
}

func (s *textToSpeech) guard(handle *utteranceHandle, f func()) func() {
	return func() {
		if s.current != handle {
			return
		}
		f()
	}
}
