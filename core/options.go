package orchestration

import (
	"time"

	"github.com/koscakluka/ema-dialogue/core/channel"
	events "github.com/koscakluka/ema-dialogue/core/events"
	"github.com/koscakluka/ema-dialogue/core/prompts"
	"github.com/koscakluka/ema-dialogue/core/speechtotext"
	"github.com/koscakluka/ema-dialogue/core/texttospeech"
)

type SessionOption func(*Session)

// Timers schedules the keyed one-shot timers of a turn. [timers.Service]
// implements it.
//
// [timers.Service]: github.com/koscakluka/ema-dialogue/core/timers.Service
type Timers interface {
	Arm(key string, delay time.Duration, callback func())
	Cancel(key string)
	CancelAll()
	Now() time.Time
}

type Mode int

const (
	// ModeScripted walks through a fixed prompt list and only listens once
	// the agent stopped speaking.
	ModeScripted Mode = iota
	// ModeLive speaks whatever the agent sends and ends the session when a
	// turn gets no usable answer.
	ModeLive
)

func (m Mode) String() string {
	switch m {
	case ModeScripted:
		return "scripted"
	case ModeLive:
		return "live"
	}
	return "unknown"
}

func WithRecognizer(client speechtotext.Recognizer) SessionOption {
	return func(s *Session) { s.stt.client = client }
}

// WithSynthesizer sets the voice of the agent. If client also implements
// [texttospeech.AudioPlayer] it plays agent audio as well.
func WithSynthesizer(client texttospeech.Synthesizer) SessionOption {
	return func(s *Session) {
		s.tts.client = client
		if player, ok := client.(texttospeech.AudioPlayer); ok && s.tts.player == nil {
			s.tts.player = player
		}
	}
}

func WithAudioPlayer(player texttospeech.AudioPlayer) SessionOption {
	return func(s *Session) { s.tts.player = player }
}

func WithChannel(ch channel.Channel) SessionOption {
	return func(s *Session) { s.channel = ch }
}

func WithTimers(timers Timers) SessionOption {
	return func(s *Session) {
		if timers != nil {
			s.timers = timers
		}
	}
}

func WithTurnConfig(config TurnConfig) SessionOption {
	return func(s *Session) { s.config = config }
}

func WithMode(mode Mode) SessionOption {
	return func(s *Session) { s.mode = mode }
}

// WithPrompts sets the initial prompt list of a scripted session.
func WithPrompts(list []prompts.Prompt) SessionOption {
	return func(s *Session) { s.prompts = prompts.NewSet(list) }
}

func WithLanguage(language string) SessionOption {
	return func(s *Session) { s.stt.language = language }
}

// WithEventCallback observes everything the session does. The callback runs
// on the session loop and must not call [Session.Close].
func WithEventCallback(callback func(events.Event)) SessionOption {
	return func(s *Session) { s.eventCallback = callback }
}
