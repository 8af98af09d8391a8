package engine

import (
	"sync"

	"github.com/roach88/ledgermsg/internal/ir"
)

// Result is the outcome of a queued envelope.
type Result struct {
	Receipt Receipt
	Err     error
}

// request is one envelope waiting for the writer, plus where to send the
// result.
type request struct {
	env   ir.Envelope
	reply chan Result
}

// requestQueue is a thread-safe FIFO of envelopes.
//
// Transports enqueue from any goroutine while the Engine's Run loop
// dequeues. The queue uses a channel for signaling to enable
// context-aware waiting in the Run loop.
type requestQueue struct {
	mu       sync.Mutex
	requests []request
	closed   bool
	signal   chan struct{} // Signals availability (buffered, size 1)
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		requests: make([]request, 0, 64),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(r request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.requests = append(q.requests, r)

	// Non-blocking: a buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
func (q *requestQueue) TryDequeue() (request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return request{}, false
	}

	r := q.requests[0]
	// Clear the slot so the backing array does not pin the envelope.
	q.requests[0] = request{}
	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}

	return r, true
}

// Wait returns a channel that signals when requests may be available.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Close signals that no more requests will be enqueued and wakes waiters.
// Requests already queued are still delivered by TryDequeue.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// drain removes every queued request.
func (q *requestQueue) drain() []request {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.requests
	q.requests = nil
	return out
}
