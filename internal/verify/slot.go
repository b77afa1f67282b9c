package verify

import (
	"errors"
	"sync"
)

// Slot is a single "currently displayed result" for interactive callers.
// Every submission keeps polling independently; the slot only decides what
// gets rendered. The first verdict to arrive after a Claim fills the slot and
// later verdicts are suppressed until the next Claim. Failures are always
// reported and cancellations never are.
type Slot struct {
	mu      sync.Mutex
	current string
	filled  bool
}

// Claim marks h as the latest submission and empties the slot
func (s *Slot) Claim(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = h.ID()
	s.filled = false
}

// Current returns the ID of the most recent claim
func (s *Slot) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Offer reports whether a resolved handle's result should be displayed
func (s *Slot) Offer(h *Handle) bool {
	select {
	case <-h.Done():
	default:
		return false
	}

	_, err := h.Result()
	if err != nil {
		return !errors.Is(err, ErrCancelled)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filled {
		return false
	}
	s.filled = true
	return true
}
