// Package barrier implements the one-shot phase barrier between the map and
// reduce phases.
package barrier

import (
	"context"
	"sync"
)

// PhaseBarrier opens once Done has been called total times. Writes made
// before a Done call are visible to every goroutine returning from Wait.
type PhaseBarrier struct {
	mu        sync.Mutex
	total     int
	completed int
	open      chan struct{}
}

// New returns a barrier expecting total Done calls. A barrier with total <= 0
// is open from the start.
func New(total int) *PhaseBarrier {
	b := &PhaseBarrier{total: total, open: make(chan struct{})}
	if total <= 0 {
		close(b.open)
	}
	return b
}

// Done records one completed unit of work. Calls beyond total are ignored.
func (b *PhaseBarrier) Done() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.completed >= b.total {
		return
	}
	b.completed++
	if b.completed == b.total {
		close(b.open)
	}
}

// Wait blocks until the barrier opens or ctx is done.
func (b *PhaseBarrier) Wait(ctx context.Context) error {
	select {
	case <-b.open:
		return nil
	default:
	}
	select {
	case <-b.open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Completed returns the number of Done calls counted so far.
func (b *PhaseBarrier) Completed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed
}

// Total returns the number of Done calls needed to open the barrier.
func (b *PhaseBarrier) Total() int {
	return b.total
}
