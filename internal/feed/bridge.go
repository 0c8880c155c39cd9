// Package feed implements the data-feed bridge: per-security subscriptions,
// time-synchronized slice production, and the bounded handoff queue between
// the producer loop and the algorithm thread. The feed is constructed with
// its collaborators explicitly and Initialize binds only the job; the
// algorithm and result handler belong to the consumer driving the bridge,
// not to the feed.
package feed

import (
	"sync"

	"backtest_engine/internal/core"
	apperrors "backtest_engine/pkg/errors"
)

// Bridge is a capacity-bounded FIFO handoff queue of time slices. Put
// blocks while the queue is full, Take blocks while it is empty; Complete
// unblocks all waiters and lets Take drain the remainder. Safe for one
// producer thread and one consumer thread without external locking.
type Bridge struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	items     []*core.TimeSlice
	capacity  int
	completed bool
	consuming bool
}

// NewBridge creates a bridge with the given capacity
func NewBridge(capacity int) *Bridge {
	if capacity <= 0 {
		capacity = 1
	}
	b := &Bridge{capacity: capacity}
	b.notFull = sync.NewCond(&b.mu)
	b.notEmpty = sync.NewCond(&b.mu)
	return b
}

// Put enqueues a slice, blocking while the bridge is at capacity.
// Returns ErrBridgeCompleted once Complete has been called.
func (b *Bridge) Put(slice *core.TimeSlice) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.items) >= b.capacity && !b.completed {
		b.notFull.Wait()
	}
	if b.completed {
		return apperrors.ErrBridgeCompleted
	}

	b.items = append(b.items, slice)
	b.notEmpty.Signal()
	return nil
}

// Take dequeues the oldest slice, blocking while the bridge is empty.
// ok is false once the bridge is completed and drained.
func (b *Bridge) Take() (slice *core.TimeSlice, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.items) == 0 && !b.completed {
		b.notEmpty.Wait()
	}
	if len(b.items) == 0 {
		b.consuming = false
		return nil, false
	}

	slice = b.items[0]
	b.items[0] = nil
	b.items = b.items[1:]
	b.consuming = true
	b.notFull.Signal()
	return slice, true
}

// Done marks the slice handed out by the last Take as fully consumed
func (b *Bridge) Done() {
	b.mu.Lock()
	b.consuming = false
	b.mu.Unlock()
}

// Count returns the number of queued slices without blocking
func (b *Bridge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// IsBusy reports whether any slice is queued or currently being consumed
func (b *Bridge) IsBusy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items) > 0 || b.consuming
}

// IsCompleted reports whether Complete has been called
func (b *Bridge) IsCompleted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed
}

// Complete ends the handoff: all blocked producers and consumers wake,
// subsequent Puts fail, and Takes drain whatever remains. Idempotent.
func (b *Bridge) Complete() {
	b.mu.Lock()
	if !b.completed {
		b.completed = true
		b.notFull.Broadcast()
		b.notEmpty.Broadcast()
	}
	b.mu.Unlock()
}
