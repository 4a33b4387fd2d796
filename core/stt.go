package orchestration

import (
	"context"
	"fmt"
	"sync/atomic"

	events "github.com/koscakluka/ema-dialogue/core/events"
	"github.com/koscakluka/ema-dialogue/core/speechtotext"
)

type listenHandlers struct {
	onAudioStart func()
	onAudioEnd   func()
	onResult     func(transcript string)
	onNoMatch    func()
	onFailed     func(err error)
	onEnded      func()
}

// speechToText keeps at most one listening attempt open. Callbacks of an
// attempt that was stopped or replaced are dropped.
type speechToText struct {
	client   speechtotext.Recognizer
	language string

	post      func(func()) bool
	emitEvent eventEmitter

	listening atomic.Bool
	current   *attemptHandle
	nextID    int
}

type attemptHandle struct {
	id      int
	number  int
	attempt speechtotext.Attempt
}

func newSpeechToText(client speechtotext.Recognizer) *speechToText {
	return &speechToText{
		client:    client,
		post:      func(f func()) bool { f(); return true },
		emitEvent: noopEventEmitter,
	}
}

func (s *speechToText) IsListening() bool { return s.listening.Load() }

// Listen stops the current attempt and opens a new one. number is the
// attempt number within the turn and only used for reporting.
func (s *speechToText) Listen(ctx context.Context, number int, handlers listenHandlers) error {
	s.Stop()

	s.nextID++
	handle := &attemptHandle{id: s.nextID, number: number}
	s.current = handle
	s.listening.Store(true)

	opts := []speechtotext.ListenOption{
		speechtotext.WithLanguage(s.language),
		speechtotext.WithAudioStartCallback(func() {
			s.post(s.guard(handle, func() {
				s.emitEvent(events.NewUserAudioStarted())
				call(handlers.onAudioStart)
			}))
		}),
		speechtotext.WithAudioEndCallback(func() {
			s.post(s.guard(handle, func() {
				s.emitEvent(events.NewUserAudioEnded())
				call(handlers.onAudioEnd)
			}))
		}),
		speechtotext.WithResultCallback(func(transcript string) {
			s.post(s.guard(handle, func() {
				s.emitEvent(events.NewTranscriptFinal(transcript))
				if handlers.onResult != nil {
					handlers.onResult(transcript)
				}
			}))
		}),
		speechtotext.WithNoMatchCallback(func() {
			s.post(s.guard(handle, func() {
				s.emitEvent(events.NewNoMatch())
				call(handlers.onNoMatch)
			}))
		}),
		speechtotext.WithErrorCallback(func(err error) {
			s.post(s.guard(handle, func() {
				s.emitEvent(events.NewRecognitionFailed(err))
				if handlers.onFailed != nil {
					handlers.onFailed(err)
				}
			}))
		}),
		speechtotext.WithEndedCallback(func() {
			s.post(s.guard(handle, func() {
				s.current = nil
				s.listening.Store(false)
				s.emitEvent(events.NewListeningEnded(number))
				call(handlers.onEnded)
			}))
		}),
	}

	attempt, err := s.client.Listen(ctx, opts...)
	if err != nil {
		s.current = nil
		s.listening.Store(false)
		err = fmt.Errorf("failed to start listening: %w", err)
		s.emitEvent(events.NewRecognitionFailed(err))
		return err
	}

	handle.attempt = attempt
	s.emitEvent(events.NewListeningStarted(number))
	return nil
}

// Stop closes the current attempt. It is safe to call when nothing is open.
func (s *speechToText) Stop() {
	current := s.current
	s.current = nil
	s.listening.Store(false)
	if current == nil || current.attempt == nil {
		return
	}

	if err := current.attempt.Stop(); err != nil {
		logger.Warn("failed to stop listening attempt", "error", err)
	}
	s.emitEvent(events.NewListeningEnded(current.number))
}

func (s *speechToText) guard(handle *attemptHandle, f func()) func() {
	return func() {
		if s.current != handle {
			return
		}
		f()
	}
}

func call(f func()) {
	if f != nil {
		f()
	}
}
