package orchestration

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// executor serializes everything that touches session state. Adapter
// callbacks, timer firings and channel messages are posted to it and run one
// at a time in posting order.
type executor interface {
	post(func()) bool
	// do runs f on the loop and waits for it to return.
	do(f func())
	start()
	end()
	wait()
}

type sessionRuntime struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}

	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once
	started   atomic.Bool
}

func newSessionRuntime() *sessionRuntime {
	return &sessionRuntime{
		wake:    make(chan struct{}, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// post queues f. Work posted before start runs once the loop starts. It never
// blocks, so it is safe to call from the loop itself.
func (runtime *sessionRuntime) post(f func()) bool {
	if runtime.isClosed() {
		return false
	}

	runtime.mu.Lock()
	runtime.pending = append(runtime.pending, f)
	runtime.mu.Unlock()

	select {
	case runtime.wake <- struct{}{}:
	default:
	}
	return true
}

// do runs f inline when the loop is not running. It must not be called from
// the loop itself.
func (runtime *sessionRuntime) do(f func()) {
	if !runtime.started.Load() || runtime.isClosed() {
		f()
		return
	}

	finished := make(chan struct{})
	if !runtime.post(func() {
		defer close(finished)
		f()
	}) {
		f()
		return
	}

	select {
	case <-finished:
	case <-runtime.done:
	}
}

func (runtime *sessionRuntime) start() {
	runtime.startOnce.Do(func() {
		if runtime.isClosed() {
			return
		}

		runtime.started.Store(true)
		go func() {
			defer close(runtime.done)

			for {
				select {
				case <-runtime.closeCh:
					return
				case <-runtime.wake:
					runtime.runPending()
				}
			}
		}()
	})
}

func (runtime *sessionRuntime) runPending() {
	for {
		if runtime.isClosed() {
			return
		}

		runtime.mu.Lock()
		if len(runtime.pending) == 0 {
			runtime.mu.Unlock()
			return
		}
		next := runtime.pending[0]
		runtime.pending[0] = nil
		runtime.pending = runtime.pending[1:]
		runtime.mu.Unlock()

		runtime.run(next)
	}
}

func (runtime *sessionRuntime) run(f func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("session event panicked", "error", fmt.Sprint(recovered))
		}
	}()
	f()
}

func (runtime *sessionRuntime) end() {
	runtime.endOnce.Do(func() {
		close(runtime.closeCh)
	})
}

func (runtime *sessionRuntime) wait() {
	if runtime.started.Load() {
		<-runtime.done
	}
}

func (runtime *sessionRuntime) isClosed() bool {
	select {
	case <-runtime.closeCh:
		return true
	default:
		return false
	}
}
