package dispatch

import (
	"context"
	"sync"
)

// op is one queued operation.
type op struct {
	kind   string
	fn     func(ctx context.Context) (any, error)
	future *Future
}

// opQueue is a thread-safe FIFO queue for operations.
//
// The queue is unbounded so Submit never blocks the caller.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type opQueue struct {
	mu     sync.Mutex
	ops    []*op
	closed bool
	signal chan struct{} // Signals op availability (buffered, size 1)
}

// newOpQueue creates an empty operation queue.
func newOpQueue() *opQueue {
	return &opQueue{
		ops:    make([]*op, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an operation to the back of the queue.
// Returns false if the queue is closed.
func (q *opQueue) Enqueue(o *op) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.ops = append(q.ops, o)

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front operation without blocking.
// Returns (nil, false) if the queue is empty.
func (q *opQueue) TryDequeue() (*op, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return nil, false
	}

	o := q.ops[0]

	// Nil out the slot so the array does not retain finished ops
	q.ops[0] = nil

	if len(q.ops) == 1 {
		q.ops = q.ops[:0]
	} else {
		q.ops = q.ops[1:]
	}

	return o, true
}

// Wait returns a channel that signals when operations may be available.
// The channel is closed when the queue is closed.
func (q *opQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *opQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Close stops the queue from accepting operations and wakes the Run loop.
// Operations already queued stay queued.
func (q *opQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
