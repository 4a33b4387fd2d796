// Package timers provides keyed one-shot timers.
//
// A key identifies at most one pending timer. Arming a key that is already
// armed replaces the previous schedule, and cancelling a key that is not armed
// is a no-op. A callback never runs once its timer was cancelled or replaced,
// even if the underlying clock already fired it.
package timers

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type Service struct {
	clock clock.Clock

	mu    sync.Mutex
	armed map[string]*entry
}

type entry struct {
	timer *clock.Timer
}

type Option func(*Service)

// WithClock replaces the wall clock, mostly useful with [clock.NewMock].
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func New(opts ...Option) *Service {
	s := &Service{
		clock: clock.New(),
		armed: map[string]*entry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Arm schedules callback to run after delay unless key is cancelled or
// re-armed first.
func (s *Service) Arm(key string, delay time.Duration, callback func()) {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if previous, ok := s.armed[key]; ok {
		previous.timer.Stop()
		delete(s.armed, key)
	}

	e := &entry{}
	e.timer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		current, ok := s.armed[key]
		if !ok || current != e {
			s.mu.Unlock()
			return
		}
		delete(s.armed, key)
		s.mu.Unlock()

		if callback != nil {
			callback()
		}
	})
	s.armed[key] = e
}

func (s *Service) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.armed[key]; ok {
		e.timer.Stop()
		delete(s.armed, key)
	}
}

// CancelAll cancels every armed key.
func (s *Service) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.armed {
		e.timer.Stop()
		delete(s.armed, key)
	}
}

func (s *Service) IsArmed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.armed[key]
	return ok
}

func (s *Service) Now() time.Time { return s.clock.Now() }
