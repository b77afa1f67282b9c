package verify

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/athena/internal/model"
)

// Handle is a caller's view of one submission. It resolves exactly once.
type Handle struct {
	id    string
	coord *Coordinator
	fl    *flight // nil for cache hits

	// Written once under coord.mu before done is closed
	done    chan struct{}
	outcome *model.Outcome
	err     error
}

func newHandle(id string, coord *Coordinator, fl *flight) *Handle {
	return &Handle{
		id:    id,
		coord: coord,
		fl:    fl,
		done:  make(chan struct{}),
	}
}

// ID returns the handle identifier
func (h *Handle) ID() string {
	return h.id
}

// Done is closed once the handle has resolved
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the resolution. Only meaningful after Done is closed.
func (h *Handle) Result() (*model.Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, h.err
	default:
		return nil, errors.New("handle not resolved")
	}
}

// Wait blocks until the handle resolves or ctx ends. When ctx ends first
// the handle is cancelled.
func (h *Handle) Wait(ctx context.Context) (*model.Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, h.err
	case <-ctx.Done():
	}

	h.Cancel()
	<-h.done
	if errors.Is(h.err, ErrCancelled) {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
	return h.outcome, h.err
}

// Cancel withdraws this handle. No-op once resolved.
func (h *Handle) Cancel() {
	h.coord.Cancel(h)
}

// resolve must be called with coord.mu held
func (h *Handle) resolve(outcome *model.Outcome, err error) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	h.outcome = outcome
	h.err = err
	close(h.done)
	return true
}
