package orchestration

import (
	"context"
	"sync"
	"testing"
	"time"

	events "github.com/koscakluka/ema-dialogue/core/events"
	"github.com/koscakluka/ema-dialogue/core/protocol"
	"github.com/koscakluka/ema-dialogue/core/speechtotext"
	"github.com/koscakluka/ema-dialogue/core/texttospeech"
)

// manualExecutor runs posted work only when the test drains it, so the test
// goroutine plays the session loop.
type manualExecutor struct {
	mu      sync.Mutex
	pending []func()
	closed  bool
}

func (e *manualExecutor) post(f func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.pending = append(e.pending, f)
	return true
}

func (e *manualExecutor) do(f func()) { f() }
func (e *manualExecutor) start()      {}
func (e *manualExecutor) wait()       {}

func (e *manualExecutor) end() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.pending = nil
}

func (e *manualExecutor) drain() {
	for {
		e.mu.Lock()
		if len(e.pending) == 0 {
			e.mu.Unlock()
			return
		}
		next := e.pending[0]
		e.pending = e.pending[1:]
		e.mu.Unlock()

		next()
	}
}

type fakeTimer struct {
	delay    time.Duration
	callback func()
}

type fakeTimers struct {
	now   time.Time
	armed map[string]fakeTimer
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{
		now:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		armed: map[string]fakeTimer{},
	}
}

func (f *fakeTimers) Arm(key string, delay time.Duration, callback func()) {
	f.armed[key] = fakeTimer{delay: delay, callback: callback}
}

func (f *fakeTimers) Cancel(key string) { delete(f.armed, key) }
func (f *fakeTimers) CancelAll()        { f.armed = map[string]fakeTimer{} }
func (f *fakeTimers) Now() time.Time    { return f.now }

func (f *fakeTimers) isArmed(key string) bool {
	_, ok := f.armed[key]
	return ok
}

type fakeAttempt struct {
	options speechtotext.ListenOptions
	stopped bool
}

func (a *fakeAttempt) Stop() error {
	a.stopped = true
	return nil
}

type fakeRecognizer struct {
	mu        sync.Mutex
	attempts  []*fakeAttempt
	listenErr error
}

func (r *fakeRecognizer) Listen(_ context.Context, opts ...speechtotext.ListenOption) (speechtotext.Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listenErr != nil {
		return nil, r.listenErr
	}
	attempt := &fakeAttempt{options: speechtotext.NewListenOptions(opts...)}
	r.attempts = append(r.attempts, attempt)
	return attempt, nil
}

func (r *fakeRecognizer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}

type fakeUtterance struct {
	text    string
	audio   []byte
	options texttospeech.SpeakOptions
	stopped bool
}

func (u *fakeUtterance) Stop() error {
	u.stopped = true
	return nil
}

type fakeSynthesizer struct {
	utterances []*fakeUtterance
	speakErr   error
}

func (s *fakeSynthesizer) Speak(_ context.Context, text string, opts ...texttospeech.SpeakOption) (texttospeech.Utterance, error) {
	if s.speakErr != nil {
		return nil, s.speakErr
	}
	u := &fakeUtterance{text: text, options: texttospeech.NewSpeakOptions(opts...)}
	s.utterances = append(s.utterances, u)
	return u, nil
}

func (s *fakeSynthesizer) PlayAudio(_ context.Context, audio []byte, opts ...texttospeech.SpeakOption) (texttospeech.Utterance, error) {
	u := &fakeUtterance{audio: audio, options: texttospeech.NewSpeakOptions(opts...)}
	s.utterances = append(s.utterances, u)
	return u, nil
}

func (s *fakeSynthesizer) texts() []string {
	texts := make([]string, 0, len(s.utterances))
	for _, u := range s.utterances {
		texts = append(texts, u.text)
	}
	return texts
}

type harness struct {
	t           *testing.T
	session     *Session
	loop        *manualExecutor
	timers      *fakeTimers
	recognizer  *fakeRecognizer
	synthesizer *fakeSynthesizer

	events  []events.Event
	overlap bool
}

func newHarness(t *testing.T, opts ...SessionOption) *harness {
	t.Helper()

	h := &harness{
		t:           t,
		loop:        &manualExecutor{},
		timers:      newFakeTimers(),
		recognizer:  &fakeRecognizer{},
		synthesizer: &fakeSynthesizer{},
	}

	base := []SessionOption{
		withExecutor(h.loop),
		WithTimers(h.timers),
		WithRecognizer(h.recognizer),
		WithSynthesizer(h.synthesizer),
		WithEventCallback(func(event events.Event) {
			h.events = append(h.events, event)
			if h.session.IsSpeaking() && h.session.IsListening() {
				h.overlap = true
			}
		}),
	}

	session, err := NewSession(append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	h.session = session
	t.Cleanup(func() { _ = session.Close() })

	return h
}

func (h *harness) start() {
	h.t.Helper()
	if err := h.session.Start(context.Background()); err != nil {
		h.t.Fatalf("failed to start session: %v", err)
	}
	h.loop.drain()
}

func (h *harness) utterance() *fakeUtterance {
	h.t.Helper()
	if len(h.synthesizer.utterances) == 0 {
		h.t.Fatalf("expected an utterance")
	}
	return h.synthesizer.utterances[len(h.synthesizer.utterances)-1]
}

func (h *harness) attempt() *fakeAttempt {
	h.t.Helper()
	h.recognizer.mu.Lock()
	defer h.recognizer.mu.Unlock()
	if len(h.recognizer.attempts) == 0 {
		h.t.Fatalf("expected a listening attempt")
	}
	return h.recognizer.attempts[len(h.recognizer.attempts)-1]
}

// speak plays the latest utterance to its end.
func (h *harness) speak() {
	h.t.Helper()
	u := h.utterance()
	u.options.StartedCallback()
	h.loop.drain()
	u.options.FinishedCallback()
	h.loop.drain()
}

func (h *harness) fire(key string) {
	h.t.Helper()
	timer, ok := h.timers.armed[key]
	if !ok {
		h.t.Fatalf("expected %s timer to be armed", key)
	}
	delete(h.timers.armed, key)
	h.timers.now = h.timers.now.Add(timer.delay)
	timer.callback()
	h.loop.drain()
}

func (h *harness) answer(transcript string) {
	h.t.Helper()
	h.attempt().options.ResultCallback(transcript)
	h.loop.drain()
}

// eventually drains the loop until cond holds. Work posted by channel
// readers arrives asynchronously.
func (h *harness) eventually(cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		h.loop.drain()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	h.t.Fatalf("condition not met in time")
}

func (h *harness) kinds() []events.Kind {
	kinds := make([]events.Kind, 0, len(h.events))
	for _, event := range h.events {
		kinds = append(kinds, event.Kind())
	}
	return kinds
}

func (h *harness) count(kind events.Kind) int {
	n := 0
	for _, event := range h.events {
		if event.Kind() == kind {
			n++
		}
	}
	return n
}

func receive(t *testing.T, messages <-chan protocol.Message) protocol.Message {
	t.Helper()
	select {
	case msg, ok := <-messages:
		if !ok {
			t.Fatalf("expected a message, channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return protocol.Message{}
}

func assertNoMessage(t *testing.T, messages <-chan protocol.Message) {
	t.Helper()
	select {
	case msg, ok := <-messages:
		if ok {
			t.Fatalf("expected no message, got %q", msg.Type)
		}
	case <-time.After(20 * time.Millisecond):
	}
}
