package orchestration

import (
	"context"
	"strings"
	"time"

	events "github.com/koscakluka/ema-dialogue/core/events"
	"github.com/koscakluka/ema-dialogue/core/prompts"
	"github.com/koscakluka/ema-dialogue/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	timerDeadline = "deadline"
	timerSilence  = "silence"
	timerRetry    = "retry"
)

const permissionNotice = "I can't hear you. Please allow microphone access and try again."

type turnState int

const (
	turnPrompting turnState = iota
	turnListening
	turnReprompting
	turnWaitingRetry
	turnResolved
)

type failureClass int

const (
	failureSilence failureClass = iota + 1
	failureNoMatch
	failureTransient
)

type turnRequest struct {
	prompt prompts.Prompt
	// audio is agent audio played instead of synthesizing the prompt text.
	audio   []byte
	bargeIn bool
}

type activeTurn struct {
	Turn

	prompt  prompts.Prompt
	audio   []byte
	bargeIn bool

	state        turnState
	handled      bool
	userSpeaking bool
	// silenceArm invalidates silence timers that fired but were not yet
	// handled when voice activity started.
	silenceArm int

	silenceFailures   int
	noMatchFailures   int
	transientFailures int
	lastFailure       failureClass

	ctx        context.Context
	cancel     context.CancelFunc
	span       trace.Span
	onResolved func(Turn)
}

// exhaustedOutcome picks the sentinel for a turn that ran out of attempts.
// Unmatched audio wins when it outnumbers the other failures, ties go to the
// latest failure.
func (t *activeTurn) exhaustedOutcome() Outcome {
	others := t.silenceFailures + t.transientFailures
	switch {
	case t.noMatchFailures > others:
		return OutcomeUnintelligible
	case t.noMatchFailures == others && t.lastFailure == failureNoMatch:
		return OutcomeUnintelligible
	}
	return OutcomeNoResponse
}

// turnController runs one prompt, listen, recover cycle at a time. Every
// method runs on the session loop.
type turnController struct {
	config  TurnConfig
	timers  Timers
	tts     *textToSpeech
	stt     *speechToText
	post    func(func()) bool
	metrics turnMetrics
	newID   func() string

	emitEvent eventEmitter

	active *activeTurn
}

func (c *turnController) Active() bool { return c.active != nil }

// Start supersedes the active turn, if any, and starts prompting.
func (c *turnController) Start(ctx context.Context, request turnRequest, onResolved func(Turn)) {
	c.Cancel("superseded")

	turnCtx, cancel := context.WithCancel(ctx)
	turnCtx, span := tracer.Start(turnCtx, "process turn", trace.WithAttributes(
		attribute.String("turn.prompt_id", request.prompt.ID),
		attribute.Bool("turn.barge_in", request.bargeIn),
	))

	t := &activeTurn{
		Turn: Turn{
			ID:        c.newID(),
			PromptID:  request.prompt.ID,
			StartedAt: c.timers.Now(),
			Outcome:   OutcomePending,
		},
		prompt:     request.prompt,
		audio:      request.audio,
		bargeIn:    request.bargeIn,
		state:      turnPrompting,
		ctx:        turnCtx,
		cancel:     cancel,
		span:       span,
		onResolved: onResolved,
	}
	span.SetAttributes(attribute.String("turn.id", t.ID))
	c.active = t
	c.emitEvent(events.NewTurnStarted(t.ID, t.PromptID))

	hardTimeout := request.prompt.HardTimeout
	if hardTimeout <= 0 {
		hardTimeout = c.config.HardTimeout
	}
	c.armTimer(timerDeadline, hardTimeout, t, func() {
		t.span.AddEvent("hard deadline reached")
		c.resolve(t, OutcomeTimedOut, SentinelTimeout, ErrHardTimeout)
	})

	c.speakPrompt(t)
}

func (c *turnController) speakPrompt(t *activeTurn) {
	proceed := func() {
		switch t.state {
		case turnPrompting:
			c.listen(t, 1)
		case turnListening:
			// Barge-in turns listen while speaking, the silence window only
			// starts once the agent is quiet.
			if !t.handled && !t.userSpeaking {
				c.armSilence(t)
			}
		}
	}

	handlers := speechHandlers{
		onStarted: c.guardTurn(t, func() {
			if t.bargeIn && t.state == turnPrompting {
				c.listen(t, 1)
			}
		}),
		onFinished: c.guardTurn(t, proceed),
		onFailed: func(err error) {
			c.guardTurn(t, func() {
				t.span.RecordError(err)
				logger.Warn("failed to speak prompt, listening anyway", "turn", t.ID, "error", err)
				proceed()
			})()
		},
	}

	if err := c.tts.Speak(t.ctx, t.prompt.Text, t.audio, handlers); err != nil {
		t.span.RecordError(err)
		logger.Warn("failed to speak prompt, listening anyway", "turn", t.ID, "error", err)
		c.listen(t, 1)
	}
}

func (c *turnController) listen(t *activeTurn, attempt int) {
	t.state = turnListening
	t.Attempts = attempt
	t.handled = false
	t.userSpeaking = false
	c.metrics.attempts.Add(t.ctx, 1)

	guard := func(f func()) func() { return c.guardAttempt(t, attempt, f) }
	err := c.stt.Listen(t.ctx, attempt, listenHandlers{
		onAudioStart: guard(func() {
			t.userSpeaking = true
			c.cancelSilence(t)
		}),
		onAudioEnd: guard(func() {
			t.userSpeaking = false
			if !c.tts.IsSpeaking() {
				c.armSilence(t)
			}
		}),
		onResult: func(transcript string) {
			guard(func() { c.handleResult(t, transcript) })()
		},
		onNoMatch: guard(func() { c.endAttempt(t, failureNoMatch) }),
		onFailed: func(err error) {
			guard(func() { c.failAttempt(t, err) })()
		},
		onEnded: guard(func() { c.endAttempt(t, failureSilence) }),
	})
	if err != nil {
		c.failAttempt(t, err)
		return
	}

	if !c.tts.IsSpeaking() {
		c.armSilence(t)
	}
}

// handleResult resolves the turn with transcript. Blank transcripts and echoes
// of the agent are discarded and the attempt keeps listening.
func (c *turnController) handleResult(t *activeTurn, transcript string) {
	answer := strings.TrimSpace(transcript)
	if answer == "" || c.isEcho(answer) {
		t.span.AddEvent("transcript discarded", trace.WithAttributes(attribute.String("transcript", transcript)))
		c.emitEvent(events.NewTranscriptDiscarded(transcript))
		if !t.userSpeaking && !c.tts.IsSpeaking() {
			c.armSilence(t)
		}
		return
	}

	if c.tts.IsSpeaking() {
		t.span.AddEvent("barge-in")
		c.tts.Stop("barge-in")
	}
	c.resolve(t, OutcomeAnswered, answer, nil)
}

func (c *turnController) failAttempt(t *activeTurn, err error) {
	t.span.RecordError(err)

	if speechtotext.Classify(err) != speechtotext.ClassPermissionDenied {
		c.endAttempt(t, failureTransient)
		return
	}

	t.handled = true
	c.cancelSilence(t)
	c.stt.Stop()
	c.emitEvent(events.NewTurnNotice(t.ID, permissionNotice))
	c.resolve(t, OutcomeNoResponse, SentinelNoResponse, err)
}

// endAttempt closes the current attempt without an answer and decides between
// retrying and giving up.
func (c *turnController) endAttempt(t *activeTurn, class failureClass) {
	t.handled = true
	c.cancelSilence(t)
	c.stt.Stop()

	switch class {
	case failureSilence:
		t.silenceFailures++
	case failureNoMatch:
		t.noMatchFailures++
	case failureTransient:
		t.transientFailures++
	}
	t.lastFailure = class

	if t.Attempts >= c.config.MaxAttempts {
		outcome := t.exhaustedOutcome()
		c.resolve(t, outcome, outcome.Sentinel(), outcome.err())
		return
	}

	if class == failureTransient {
		c.scheduleRetry(t)
		return
	}
	c.reprompt(t)
}

func (c *turnController) reprompt(t *activeTurn) {
	t.state = turnReprompting
	c.emitEvent(events.NewTurnReprompted(t.ID, t.Attempts+1))

	next := c.guardTurn(t, func() {
		if t.state == turnReprompting {
			c.scheduleRetry(t)
		}
	})
	if err := c.tts.Speak(t.ctx, c.config.RePrompt, nil, speechHandlers{
		onFinished: next,
		onFailed:   func(error) { next() },
	}); err != nil {
		logger.Warn("failed to speak re-prompt", "turn", t.ID, "error", err)
		c.scheduleRetry(t)
	}
}

func (c *turnController) scheduleRetry(t *activeTurn) {
	t.state = turnWaitingRetry
	next := t.Attempts + 1
	c.armTimer(timerRetry, c.config.RetryDelay, t, func() {
		if t.state == turnWaitingRetry {
			c.listen(t, next)
		}
	})
}

func (c *turnController) resolve(t *activeTurn, outcome Outcome, answer string, err error) {
	if t.state == turnResolved {
		return
	}
	t.state = turnResolved
	t.Outcome = outcome
	t.Answer = answer
	t.Err = err
	t.Duration = c.timers.Now().Sub(t.StartedAt)

	t.span.SetAttributes(
		attribute.String("turn.outcome", string(outcome)),
		attribute.Int("turn.attempts", t.Attempts),
		attribute.Float64("turn.duration", t.Duration.Seconds()),
	)
	if err != nil && outcome == OutcomeNoResponse && speechtotext.Classify(err) == speechtotext.ClassPermissionDenied {
		t.span.SetStatus(codes.Error, err.Error())
	}
	outcomeAttr := metric.WithAttributes(attribute.String("outcome", string(outcome)))
	c.metrics.outcomes.Add(t.ctx, 1, outcomeAttr)
	c.metrics.duration.Record(t.ctx, t.Duration.Seconds(), outcomeAttr)

	c.finalise(t)
	t.span.End()

	c.emitEvent(events.NewTurnResolved(t.ID, t.PromptID, string(outcome), answer, t.Attempts, t.Duration))
	if t.onResolved != nil {
		t.onResolved(t.Turn)
	}
}

// Cancel finalises the active turn without reporting an outcome. It is a
// no-op when no turn is active.
func (c *turnController) Cancel(reason string) {
	t := c.active
	if t == nil {
		return
	}

	t.state = turnResolved
	t.Duration = c.timers.Now().Sub(t.StartedAt)
	t.span.SetAttributes(attribute.String("turn.cancelled", reason))
	c.finalise(t)
	t.span.End()
}

func (c *turnController) finalise(t *activeTurn) {
	c.timers.Cancel(timerDeadline)
	c.timers.Cancel(timerSilence)
	c.timers.Cancel(timerRetry)
	c.stt.Stop()
	c.tts.Stop("turn finalised")
	t.cancel()

	if c.active == t {
		c.active = nil
	}
}

func (c *turnController) armSilence(t *activeTurn) {
	t.silenceArm++
	attempt, arm := t.Attempts, t.silenceArm
	c.armTimer(timerSilence, c.config.SilenceWindow, t, func() {
		if t.Attempts != attempt || t.silenceArm != arm || t.state != turnListening || t.handled || t.userSpeaking {
			return
		}
		t.span.AddEvent("silence window elapsed", trace.WithAttributes(attribute.Int("turn.attempt", attempt)))
		c.endAttempt(t, failureSilence)
	})
}

func (c *turnController) cancelSilence(t *activeTurn) {
	t.silenceArm++
	c.timers.Cancel(timerSilence)
}

// armTimer routes a timer firing through the loop and drops it once t is no
// longer the active turn.
func (c *turnController) armTimer(key string, delay time.Duration, t *activeTurn, f func()) {
	c.timers.Arm(key, delay, func() {
		c.post(c.guardTurn(t, f))
	})
}

func (c *turnController) guardTurn(t *activeTurn, f func()) func() {
	return func() {
		if c.active != t || t.state == turnResolved {
			return
		}
		f()
	}
}

func (c *turnController) guardAttempt(t *activeTurn, attempt int, f func()) func() {
	return c.guardTurn(t, func() {
		if t.Attempts != attempt || t.state != turnListening || t.handled {
			return
		}
		f()
	})
}

func (c *turnController) isEcho(transcript string) bool {
	normalized := normalizeUtterance(transcript)
	if normalized == "" {
		return false
	}

	for _, phrase := range c.config.EchoPhrases {
		if normalizeUtterance(phrase) == normalized {
			return true
		}
	}
	return false
}

func normalizeUtterance(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimRight(text, "?.!")
	return strings.ToLower(strings.TrimSpace(text))
}
