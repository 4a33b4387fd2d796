package orchestration

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"testing"

	"github.com/koscakluka/ema-dialogue/core/channel"
	events "github.com/koscakluka/ema-dialogue/core/events"
	"github.com/koscakluka/ema-dialogue/core/prompts"
	"github.com/koscakluka/ema-dialogue/core/protocol"
)

func TestNewSessionRequiresRecognizer(t *testing.T) {
	if _, err := NewSession(); !errors.Is(err, ErrNoRecognizer) {
		t.Fatalf("expected ErrNoRecognizer, got %v", err)
	}
}

func TestScriptedSessionAnswersPromptsInOrder(t *testing.T) {
	local, remote := channel.NewMemoryPair()
	h := newHarness(t, WithChannel(local), WithPrompts([]prompts.Prompt{
		{ID: "b", Text: "Second?", Order: 2},
		{ID: "a", Text: "First?", Order: 1},
		{ID: "a", Text: "Duplicate?", Order: 0},
	}))
	h.start()

	if msg := receive(t, remote.Receive()); msg.Type != protocol.TypeStart {
		t.Fatalf("expected start message first, got %q", msg.Type)
	}

	h.speak()
	h.answer("yes")
	h.speak()
	h.answer("no")

	if got := h.synthesizer.texts(); !slices.Equal(got, []string{"First?", "Second?"}) {
		t.Fatalf("expected prompts spoken in order, got %v", got)
	}
	for _, expected := range []string{"yes", "no"} {
		msg := receive(t, remote.Receive())
		if msg.Type != protocol.TypeUserMessage || msg.Text != expected {
			t.Fatalf("expected user message %q, got %+v", expected, msg)
		}
	}

	answers := h.session.Answers()
	if len(answers) != 2 || answers[0].ID != "a" || answers[0].Answer != "yes" || answers[1].Answer != "no" {
		t.Fatalf("unexpected answers: %+v", answers)
	}
	if h.count(events.KindSessionCompleted) != 1 {
		t.Fatalf("expected session to complete once")
	}
	if h.overlap {
		t.Fatalf("expected speaking and listening never to overlap")
	}
}

func TestSilentUserScenario(t *testing.T) {
	local, remote := channel.NewMemoryPair()
	h := newHarness(t, WithChannel(local), WithPrompts([]prompts.Prompt{
		{ID: "A", Text: "Prompt A", Order: 1},
		{ID: "B", Text: "Prompt B", Order: 2},
		{ID: "C", Text: "Prompt C", Order: 3},
	}), WithTurnConfig(TurnConfig{MaxAttempts: 3}))
	h.start()

	for range 3 {
		h.speak()
		for attempt := 1; attempt <= 3; attempt++ {
			h.attempt().options.EndedCallback()
			h.loop.drain()
			if attempt < 3 {
				h.speak()
				h.fire(timerRetry)
			}
		}
	}

	turns := h.session.Turns()
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	for i, id := range []string{"A", "B", "C"} {
		if turns[i].PromptID != id || turns[i].Outcome != OutcomeNoResponse || turns[i].Attempts != 3 {
			t.Fatalf("unexpected turn %d: %+v", i, turns[i])
		}
	}

	receive(t, remote.Receive())
	for range 3 {
		msg := receive(t, remote.Receive())
		if msg.Type != protocol.TypeUserMessage || msg.Text != SentinelNoResponse {
			t.Fatalf("expected no response answer, got %+v", msg)
		}
	}
	assertNoMessage(t, remote.Receive())

	if h.recognizer.count() != 9 {
		t.Fatalf("expected 9 listening attempts, got %d", h.recognizer.count())
	}
	if h.overlap {
		t.Fatalf("expected speaking and listening never to overlap")
	}
}

func TestBlankResultDoesNotStallScriptedSession(t *testing.T) {
	for _, transcript := range []string{"", "   "} {
		t.Run(strconv.Quote(transcript), func(t *testing.T) {
			local, remote := channel.NewMemoryPair()
			h := newHarness(t, WithChannel(local), WithPrompts([]prompts.Prompt{
				{ID: "A", Text: "First?", Order: 1},
				{ID: "B", Text: "Second?", Order: 2},
			}), WithTurnConfig(TurnConfig{MaxAttempts: 1}))
			h.start()
			receive(t, remote.Receive())

			h.speak()
			h.answer(transcript)
			assertNoMessage(t, remote.Receive())

			h.fire(timerSilence)
			if msg := receive(t, remote.Receive()); msg.Type != protocol.TypeUserMessage || msg.Text != SentinelNoResponse {
				t.Fatalf("expected no response answer, got %+v", msg)
			}
			if got := h.synthesizer.texts(); !slices.Equal(got, []string{"First?", "Second?"}) {
				t.Fatalf("expected session to move on to the second prompt, got %v", got)
			}

			h.speak()
			h.answer("no")
			if msg := receive(t, remote.Receive()); msg.Text != "no" {
				t.Fatalf("expected second answer, got %+v", msg)
			}

			answers := h.session.Answers()
			if answers[0].Answer != SentinelNoResponse || answers[1].Answer != "no" {
				t.Fatalf("unexpected answers: %+v", answers)
			}
			if h.count(events.KindSessionCompleted) != 1 {
				t.Fatalf("expected session to complete")
			}
		})
	}
}

func TestLoadPromptsRestartsWithNewSet(t *testing.T) {
	h := newHarness(t, singlePrompt())
	h.start()
	first := h.utterance()
	first.options.StartedCallback()
	h.loop.drain()

	if err := h.session.LoadPrompts([]prompts.Prompt{
		{ID: "q", Text: "How old are you?", Order: 1},
		{ID: "r", Text: "Where do you live?", Order: 2},
	}); err != nil {
		t.Fatalf("failed to load prompts: %v", err)
	}
	h.loop.drain()

	if !first.stopped {
		t.Fatalf("expected active prompt to be interrupted")
	}
	if got := h.synthesizer.texts(); !slices.Equal(got, []string{"How old are you?", "How old are you?"}) {
		t.Fatalf("expected current prompt to be spoken once per load, got %v", got)
	}
	if len(h.session.Turns()) != 0 {
		t.Fatalf("expected cancelled turn not to be recorded")
	}

	h.speak()
	h.answer("ten")
	if got := h.utterance().text; got != "Where do you live?" {
		t.Fatalf("expected next prompt of the new set, got %q", got)
	}
}

func TestLoadPromptsBeforeStart(t *testing.T) {
	h := newHarness(t)
	if err := h.session.LoadPrompts([]prompts.Prompt{{ID: "x", Text: "Hi?"}}); err != nil {
		t.Fatalf("failed to load prompts: %v", err)
	}
	h.loop.drain()
	if len(h.synthesizer.utterances) != 0 {
		t.Fatalf("expected nothing to be spoken before start")
	}

	h.start()
	if got := h.synthesizer.texts(); !slices.Equal(got, []string{"Hi?"}) {
		t.Fatalf("expected loaded prompt after start, got %v", got)
	}
}

func TestLiveSessionBargeIn(t *testing.T) {
	local, remote := channel.NewMemoryPair()
	h := newHarness(t, WithChannel(local), WithMode(ModeLive), WithTurnConfig(TurnConfig{BargeIn: true}))
	h.start()
	receive(t, remote.Receive())

	if err := remote.Send(context.Background(), protocol.AgentMessage("Tell me about your day.", nil)); err != nil {
		t.Fatalf("failed to send agent message: %v", err)
	}
	h.eventually(func() bool { return len(h.synthesizer.utterances) == 1 })

	u := h.utterance()
	u.options.StartedCallback()
	h.loop.drain()
	if !h.session.IsListening() {
		t.Fatalf("expected barge-in to listen while the agent speaks")
	}
	if h.timers.isArmed(timerSilence) {
		t.Fatalf("expected no silence window while the agent speaks")
	}

	h.attempt().options.AudioStartCallback()
	h.loop.drain()
	if !h.session.IsSpeaking() {
		t.Fatalf("expected voice activity alone not to interrupt the agent")
	}

	h.answer("Pretty good")
	if !u.stopped || h.session.IsSpeaking() {
		t.Fatalf("expected synthesis to stop on barge-in")
	}
	if h.count(events.KindSynthesisStopped) == 0 {
		t.Fatalf("expected a synthesis stopped event")
	}

	msg := receive(t, remote.Receive())
	if msg.Type != protocol.TypeUserMessage || msg.Text != "Pretty good" {
		t.Fatalf("expected answer to be sent, got %+v", msg)
	}
}

func TestLiveSessionPlaysAgentAudio(t *testing.T) {
	local, remote := channel.NewMemoryPair()
	h := newHarness(t, WithChannel(local), WithMode(ModeLive))
	h.start()

	if err := remote.Send(context.Background(), protocol.AgentMessage("Hello", []byte{1, 2, 3})); err != nil {
		t.Fatalf("failed to send agent message: %v", err)
	}
	h.eventually(func() bool { return len(h.synthesizer.utterances) == 1 })
	if got := h.utterance().audio; !slices.Equal(got, []byte{1, 2, 3}) {
		t.Fatalf("expected agent audio to be played, got %v", got)
	}

	if err := remote.Send(context.Background(), protocol.Message{Type: protocol.TypeAgentMessage, Text: "Again", AudioData: "%%%"}); err != nil {
		t.Fatalf("failed to send agent message: %v", err)
	}
	h.eventually(func() bool { return len(h.synthesizer.utterances) == 2 })
	if got := h.utterance(); got.text != "Again" || got.audio != nil {
		t.Fatalf("expected undecodable audio to fall back to text, got %+v", got)
	}
	if !h.synthesizer.utterances[0].stopped {
		t.Fatalf("expected new agent message to supersede the active turn")
	}
}

func TestLiveSessionEndsOnNoResponse(t *testing.T) {
	local, remote := channel.NewMemoryPair()
	h := newHarness(t, WithChannel(local), WithMode(ModeLive), WithTurnConfig(TurnConfig{MaxAttempts: 1}))
	h.start()
	receive(t, remote.Receive())

	if err := remote.Send(context.Background(), protocol.AgentMessage("Are you there?", nil)); err != nil {
		t.Fatalf("failed to send agent message: %v", err)
	}
	h.eventually(func() bool { return len(h.synthesizer.utterances) == 1 })
	h.speak()
	h.fire(timerSilence)

	msg := receive(t, remote.Receive())
	if msg.Type != protocol.TypeSessionEnded || msg.Reason != string(OutcomeNoResponse) {
		t.Fatalf("expected session ended with no_response, got %+v", msg)
	}
	if _, ok := <-remote.Receive(); ok {
		t.Fatalf("expected channel to be closed after session ended")
	}
	if h.count(events.KindSessionEnded) != 1 {
		t.Fatalf("expected a session ended event")
	}

	answers := h.session.Answers()
	if len(answers) != 1 || answers[0].Text != "Are you there?" || answers[0].Answer != SentinelNoResponse {
		t.Fatalf("unexpected answers: %+v", answers)
	}
}

func TestScriptedSessionIgnoresAgentMessages(t *testing.T) {
	local, remote := channel.NewMemoryPair()
	h := newHarness(t, WithChannel(local))
	h.start()

	if err := remote.Send(context.Background(), protocol.AgentMessage("Hello", nil)); err != nil {
		t.Fatalf("failed to send agent message: %v", err)
	}
	h.eventually(func() bool { return h.count(events.KindMessageReceived) == 1 })
	if len(h.synthesizer.utterances) != 0 {
		t.Fatalf("expected scripted session not to speak agent messages")
	}
}

func TestRemoteCloseCancelsTurn(t *testing.T) {
	local, remote := channel.NewMemoryPair()
	h := newHarness(t, WithChannel(local), singlePrompt())
	h.start()
	h.speak()

	if err := remote.Close(); err != nil {
		t.Fatalf("failed to close remote: %v", err)
	}
	h.eventually(func() bool { return !h.session.IsListening() })

	if len(h.timers.armed) != 0 {
		t.Fatalf("expected timers to be cancelled, still armed: %v", h.timers.armed)
	}
	if state, _ := h.session.State(); state != channel.StateDisconnected {
		t.Fatalf("expected disconnected state, got %s", state)
	}
}

func TestStartAndCloseAreIdempotent(t *testing.T) {
	local, remote := channel.NewMemoryPair()
	h := newHarness(t, WithChannel(local), singlePrompt())
	h.start()
	h.start()

	receive(t, remote.Receive())
	assertNoMessage(t, remote.Receive())
	if len(h.synthesizer.utterances) != 1 {
		t.Fatalf("expected prompt to be spoken once, got %d", len(h.synthesizer.utterances))
	}

	h.speak()
	if err := h.session.Close(); err != nil {
		t.Fatalf("failed to close session: %v", err)
	}
	if err := h.session.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}
	if !h.attempt().stopped {
		t.Fatalf("expected close to stop listening")
	}
	if err := h.session.Start(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if err := h.session.LoadPrompts(nil); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSessionWithoutSynthesizerListensImmediately(t *testing.T) {
	recognizer := &fakeRecognizer{}
	loop := &manualExecutor{}
	session, err := NewSession(
		withExecutor(loop),
		WithTimers(newFakeTimers()),
		WithRecognizer(recognizer),
		singlePrompt(),
	)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer session.Close()

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("failed to start session: %v", err)
	}
	loop.drain()

	if recognizer.count() != 1 {
		t.Fatalf("expected text-only session to listen right away")
	}
}
