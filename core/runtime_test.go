package orchestration

import (
	"slices"
	"sync"
	"testing"
	"time"
)

func TestRuntimeRunsWorkInPostingOrder(t *testing.T) {
	runtime := newSessionRuntime()

	var (
		mu    sync.Mutex
		order []int
	)
	done := make(chan struct{})
	for i := range 5 {
		runtime.post(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			if i == 4 {
				close(done)
			}
		})
	}
	runtime.start()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for posted work")
	}

	runtime.end()
	runtime.wait()

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(order, []int{0, 1, 2, 3, 4}) {
		t.Fatalf("expected work in posting order, got %v", order)
	}
}

func TestRuntimeSurvivesPanics(t *testing.T) {
	runtime := newSessionRuntime()
	runtime.start()
	defer func() {
		runtime.end()
		runtime.wait()
	}()

	runtime.post(func() { panic("boom") })

	ran := false
	runtime.do(func() { ran = true })
	if !ran {
		t.Fatalf("expected loop to keep running after a panic")
	}
}

func TestRuntimeRejectsWorkAfterEnd(t *testing.T) {
	runtime := newSessionRuntime()
	runtime.start()
	runtime.end()
	runtime.wait()

	if runtime.post(func() {}) {
		t.Fatalf("expected post to fail after end")
	}

	ran := false
	runtime.do(func() { ran = true })
	if !ran {
		t.Fatalf("expected do to run inline once the loop ended")
	}
}

func TestRuntimeDoBeforeStartRunsInline(t *testing.T) {
	runtime := newSessionRuntime()

	ran := false
	runtime.do(func() { ran = true })
	if !ran {
		t.Fatalf("expected do to run inline before start")
	}

	runtime.end()
	runtime.wait()
}
