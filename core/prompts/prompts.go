// Package prompts holds the ordered set of prompts a session walks through.
package prompts

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jinzhu/copier"
)

var (
	ErrUnknownPrompt   = errors.New("unknown prompt")
	ErrAlreadyAnswered = errors.New("prompt already answered")
)

type Prompt struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Answer string `json:"answer,omitempty"`
	// HardTimeout bounds the whole turn for this prompt; zero means the
	// session default applies.
	HardTimeout time.Duration `json:"hardTimeout,omitempty"`
	Order       int           `json:"order"`
	Weight      float64       `json:"weight,omitempty"`
}

func (p Prompt) IsAnswered() bool { return p.Answer != "" }

// Set keeps prompts deduplicated by id (first occurrence wins) and sorted by
// ascending order. Only answers change after construction.
type Set struct {
	mu      sync.RWMutex
	prompts []Prompt
	index   map[string]int
}

func NewSet(prompts []Prompt) *Set {
	s := &Set{index: map[string]int{}}

	seen := map[string]struct{}{}
	for _, prompt := range prompts {
		if _, ok := seen[prompt.ID]; ok {
			continue
		}
		seen[prompt.ID] = struct{}{}
		s.prompts = append(s.prompts, prompt)
	}

	slices.SortStableFunc(s.prompts, func(a, b Prompt) int { return cmp.Compare(a.Order, b.Order) })
	for i, prompt := range s.prompts {
		s.index[prompt.ID] = i
	}

	return s
}

// Append adds p after the existing prompts. It reports false when a prompt
// with the same id is already in the set.
func (s *Set) Append(p Prompt) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[p.ID]; ok {
		return false
	}
	if n := len(s.prompts); n > 0 && p.Order < s.prompts[n-1].Order {
		p.Order = s.prompts[n-1].Order
	}

	s.index[p.ID] = len(s.prompts)
	s.prompts = append(s.prompts, p)
	return true
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prompts)
}

// Current returns the first prompt without an answer.
func (s *Set) Current() (Prompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, prompt := range s.prompts {
		if !prompt.IsAnswered() {
			return prompt, true
		}
	}
	return Prompt{}, false
}

// Pending returns the prompts without an answer, in order.
func (s *Set) Pending() []Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []Prompt
	for _, prompt := range s.prompts {
		if !prompt.IsAnswered() {
			pending = append(pending, prompt)
		}
	}
	return pending
}

func (s *Set) Get(id string) (Prompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return Prompt{}, false
	}
	return s.prompts[i], true
}

// SetAnswer records the answer of a prompt. An answer is written at most once.
func (s *Set) SetAnswer(id, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPrompt, id)
	}
	if s.prompts[i].IsAnswered() {
		return fmt.Errorf("%w: %s", ErrAlreadyAnswered, id)
	}
	if answer == "" {
		return fmt.Errorf("empty answer for prompt %s", id)
	}

	s.prompts[i].Answer = answer
	return nil
}

func (s *Set) Complete() bool {
	_, ok := s.Current()
	return !ok
}

// Snapshot returns a copy of the prompts callers can keep and modify.
func (s *Set) Snapshot() []Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := []Prompt{}
	if err := copier.CopyWithOption(&snapshot, s.prompts, copier.Option{DeepCopy: true}); err != nil {
		logger.Warn("failed to copy prompts, falling back to a shallow copy", "error", err)
		return slices.Clone(s.prompts)
	}
	return snapshot
}
