package orchestration

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-dialogue/core/channel"
	events "github.com/koscakluka/ema-dialogue/core/events"
	"github.com/koscakluka/ema-dialogue/core/prompts"
	"github.com/koscakluka/ema-dialogue/core/protocol"
	"github.com/koscakluka/ema-dialogue/core/timers"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Session runs a spoken dialogue: it speaks prompts, listens for the replies
// and sends the answers over its channel.
type Session struct {
	mode          Mode
	config        TurnConfig
	channel       channel.Channel
	timers        Timers
	runtime       executor
	eventCallback func(events.Event)
	emitEvent     eventEmitter

	tts        *textToSpeech
	stt        *speechToText
	controller *turnController

	// Owned by the loop.
	baseContext context.Context
	seen        map[string]struct{}
	opened      bool
	completed   bool
	ended       bool
	liveOrder   int

	// Guards what external readers see.
	mu      sync.RWMutex
	prompts *prompts.Set
	turns   []Turn

	startOnce  sync.Once
	closeOnce  sync.Once
	started    atomic.Bool
	closed     atomic.Bool
	readerDone chan struct{}
}

func NewSession(opts ...SessionOption) (*Session, error) {
	s := &Session{
		mode:        ModeScripted,
		config:      DefaultTurnConfig(),
		timers:      timers.New(),
		runtime:     newSessionRuntime(),
		tts:         newTextToSpeech(nil, nil),
		stt:         newSpeechToText(nil),
		baseContext: context.Background(),
		seen:        map[string]struct{}{},
		prompts:     prompts.NewSet(nil),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.stt.client == nil {
		return nil, ErrNoRecognizer
	}
	s.config = s.config.withDefaults()

	s.emitEvent = newLoggingEventEmitter(s.eventCallback)
	s.tts.post = s.runtime.post
	s.tts.emitEvent = s.emitEvent
	s.stt.post = s.runtime.post
	s.stt.emitEvent = s.emitEvent

	s.controller = &turnController{
		config:    s.config,
		timers:    s.timers,
		tts:       s.tts,
		stt:       s.stt,
		post:      s.runtime.post,
		metrics:   newTurnMetrics(),
		newID:     uuid.NewString,
		emitEvent: s.emitEvent,
	}

	return s, nil
}

// withExecutor replaces the session loop.
func withExecutor(runtime executor) SessionOption {
	return func(s *Session) { s.runtime = runtime }
}

// Start opens the session: it tells the agent the session started, and in
// scripted mode speaks the first prompt. ctx is the base context of every
// turn. Calling Start again is a no-op.
func (s *Session) Start(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	started := false
	s.startOnce.Do(func() {
		started = true
		s.started.Store(true)
		s.baseContext = ctx

		s.runtime.post(s.open)
		s.runtime.start()

		if s.channel != nil {
			s.readerDone = make(chan struct{})
			go s.readChannel(s.channel)
		}
	})
	if !started {
		logger.Debug("session already started, skipping Start")
	}

	return nil
}

func (s *Session) open() {
	s.opened = true
	s.emitState()

	if s.channel != nil && s.channel.State() == channel.StateConnected {
		s.send(protocol.Start())
	}
	s.advance()
}

func (s *Session) readChannel(ch channel.Channel) {
	defer close(s.readerDone)

	for msg := range ch.Receive() {
		s.runtime.post(func() { s.handleMessage(msg) })
	}
	s.runtime.post(s.channelClosed)
}

func (s *Session) handleMessage(msg protocol.Message) {
	s.emitEvent(events.NewMessageReceived(string(msg.Type), msg.Text))

	switch msg.Type {
	case protocol.TypeAgentMessage:
		if s.mode != ModeLive {
			logger.Warn("ignoring agent message in a scripted session")
			return
		}
		if s.ended {
			return
		}
		s.startLiveTurn(msg)
	default:
		logger.Debug("ignoring inbound message", "type", string(msg.Type))
	}
}

func (s *Session) startLiveTurn(msg protocol.Message) {
	audio, err := msg.Audio()
	if err != nil {
		logger.Warn("failed to decode agent audio, speaking text instead", "error", err)
		audio = nil
	}
	if msg.Text == "" && len(audio) == 0 {
		logger.Warn("ignoring agent message without text or audio")
		return
	}

	s.liveOrder++
	prompt := prompts.Prompt{ID: uuid.NewString(), Text: msg.Text, Order: s.liveOrder}

	s.mu.Lock()
	added := s.prompts.Append(prompt)
	s.mu.Unlock()
	if !added {
		logger.Warn("failed to add agent prompt", "prompt", prompt.ID)
		return
	}

	s.seen[prompt.ID] = struct{}{}
	s.controller.Start(s.baseContext, turnRequest{
		prompt:  prompt,
		audio:   audio,
		bargeIn: s.config.BargeIn,
	}, s.onTurnResolved)
}

func (s *Session) channelClosed() {
	s.emitState()
	if s.ended {
		return
	}

	s.ended = true
	s.controller.Cancel("channel closed")
	s.timers.CancelAll()
	if err := s.channel.Err(); err != nil {
		span := trace.SpanFromContext(s.baseContext)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// advance starts the turn of the next prompt in scripted mode. A prompt is
// spoken at most once per loaded set, so a spoken prompt that was left
// without an answer is skipped.
func (s *Session) advance() {
	if s.mode != ModeScripted || !s.opened || s.ended || s.controller.Active() {
		return
	}

	s.mu.RLock()
	set := s.prompts
	s.mu.RUnlock()

	for _, next := range set.Pending() {
		if _, spoken := s.seen[next.ID]; spoken {
			continue
		}
		s.seen[next.ID] = struct{}{}
		s.controller.Start(s.baseContext, turnRequest{prompt: next}, s.onTurnResolved)
		return
	}

	if set.Len() > 0 && !s.completed {
		s.completed = true
		s.emitEvent(events.NewSessionCompleted())
	}
}

func (s *Session) onTurnResolved(turn Turn) {
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	err := s.prompts.SetAnswer(turn.PromptID, turn.Answer)
	s.mu.Unlock()
	if err != nil {
		logger.Warn("failed to record answer", "prompt", turn.PromptID, "error", err)
	}

	if s.mode == ModeLive && turn.Outcome != OutcomeAnswered {
		s.end(string(turn.Outcome))
		return
	}

	s.send(protocol.UserMessage(turn.Answer))
	s.advance()
}

func (s *Session) end(reason string) {
	s.ended = true
	s.send(protocol.SessionEnded(reason))
	s.emitEvent(events.NewSessionEnded(reason))

	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			logger.Warn("failed to close channel", "error", err)
		}
	}
}

func (s *Session) send(msg protocol.Message) {
	if s.channel != nil {
		if err := s.channel.Send(s.baseContext, msg); err != nil {
			logger.Warn("failed to send message", "type", string(msg.Type), "error", err)
			s.emitState()
			return
		}
	}
	s.emitEvent(events.NewMessageSent(string(msg.Type), msg.Text))
}

func (s *Session) emitState() {
	state, err := s.State()
	s.emitEvent(events.NewSessionStateChanged(string(state), err))
}

// LoadPrompts replaces the prompt set. The active turn is cancelled without
// an answer and the session continues with the first prompt of the new set.
func (s *Session) LoadPrompts(list []prompts.Prompt) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	set := prompts.NewSet(list)
	s.runtime.post(func() {
		s.controller.Cancel("prompts replaced")

		s.mu.Lock()
		s.prompts = set
		s.mu.Unlock()

		s.seen = map[string]struct{}{}
		s.completed = false
		s.advance()
	})
	return nil
}

// Close stops the session and closes its channel. It is idempotent and must
// not be called from an event callback.
func (s *Session) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		cleanedUp := false
		cleanup := func() {
			s.ended = true
			s.controller.Cancel("session closed")
			s.stt.Stop()
			s.tts.Stop("session closed")
			s.timers.CancelAll()
			cleanedUp = true
		}
		s.runtime.do(cleanup)
		s.runtime.end()
		s.runtime.wait()
		if !cleanedUp {
			cleanup()
		}

		if s.channel != nil {
			if err := s.channel.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
			}
		}
		if s.readerDone != nil {
			<-s.readerDone
		}
	})

	return errors.Join(errs...)
}

// State reports the health of the session's channel. A session without a
// channel is always connected.
func (s *Session) State() (channel.State, error) {
	if s.channel == nil {
		return channel.StateConnected, nil
	}
	return s.channel.State(), s.channel.Err()
}

// Answers returns a copy of the prompts with the answers recorded so far.
func (s *Session) Answers() []prompts.Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompts.Snapshot()
}

// Turns returns the resolved turns in resolution order.
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.turns)
}

func (s *Session) IsSpeaking() bool  { return s.tts.IsSpeaking() }
func (s *Session) IsListening() bool { return s.stt.IsListening() }
func (s *Session) Mode() Mode        { return s.mode }
