package engine

import "sync/atomic"

// Clock is the monotonic logical clock that assigns entry seq numbers.
//
// Every entry is stamped with a strictly increasing seq from this clock.
// Seq, not wall time, orders the ledger, so replay reproduces the same
// order regardless of when it runs.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The Engine's single-writer design means only the writer calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at a specific sequence number.
// The engine uses it to resume after the last stored entry.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
