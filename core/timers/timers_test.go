package timers

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestArmFiresAfterDelay(t *testing.T) {
	mock := clock.NewMock()
	service := New(WithClock(mock))

	fired := make(chan struct{}, 1)
	service.Arm("silence", 2*time.Second, func() { fired <- struct{}{} })

	mock.Add(time.Second)
	assertNotFired(t, fired)
	if !service.IsArmed("silence") {
		t.Fatalf("expected silence timer to still be armed")
	}

	mock.Add(time.Second)
	assertFired(t, fired)
	if service.IsArmed("silence") {
		t.Fatalf("expected fired timer to be disarmed")
	}
}

func TestCancelPreventsCallback(t *testing.T) {
	mock := clock.NewMock()
	service := New(WithClock(mock))

	fired := make(chan struct{}, 1)
	service.Arm("deadline", time.Second, func() { fired <- struct{}{} })
	service.Cancel("deadline")

	mock.Add(2 * time.Second)
	assertNotFired(t, fired)
}

func TestCancelUnarmedKeyIsNoop(t *testing.T) {
	service := New(WithClock(clock.NewMock()))

	service.Cancel("missing")
	service.CancelAll()

	if service.IsArmed("missing") {
		t.Fatalf("expected missing key to stay unarmed")
	}
}

func TestRearmReplacesPreviousSchedule(t *testing.T) {
	mock := clock.NewMock()
	service := New(WithClock(mock))

	var first, second atomic.Int32
	secondFired := make(chan struct{}, 1)
	service.Arm("silence", time.Second, func() { first.Add(1) })
	service.Arm("silence", 3*time.Second, func() {
		second.Add(1)
		secondFired <- struct{}{}
	})

	mock.Add(2 * time.Second)
	if got := first.Load(); got != 0 {
		t.Fatalf("expected replaced callback not to run, ran %d times", got)
	}

	mock.Add(time.Second)
	assertFired(t, secondFired)
	if got := first.Load(); got != 0 {
		t.Fatalf("expected replaced callback not to run, ran %d times", got)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	mock := clock.NewMock()
	service := New(WithClock(mock))

	silence := make(chan struct{}, 1)
	deadline := make(chan struct{}, 1)
	service.Arm("silence", time.Second, func() { silence <- struct{}{} })
	service.Arm("deadline", 5*time.Second, func() { deadline <- struct{}{} })

	service.Cancel("silence")
	mock.Add(5 * time.Second)

	assertNotFired(t, silence)
	assertFired(t, deadline)
}

func TestCancelAllDisarmsEverything(t *testing.T) {
	mock := clock.NewMock()
	service := New(WithClock(mock))

	fired := make(chan struct{}, 2)
	service.Arm("a", time.Second, func() { fired <- struct{}{} })
	service.Arm("b", time.Second, func() { fired <- struct{}{} })
	service.CancelAll()

	mock.Add(time.Second)
	assertNotFired(t, fired)
	if service.IsArmed("a") || service.IsArmed("b") {
		t.Fatalf("expected all keys to be disarmed")
	}
}

func assertFired(t *testing.T, fired <-chan struct{}) {
	t.Helper()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for timer callback")
	}
}

func assertNotFired(t *testing.T, fired <-chan struct{}) {
	t.Helper()

	select {
	case <-fired:
		t.Fatalf("expected timer callback not to run")
	case <-time.After(20 * time.Millisecond):
	}
}
