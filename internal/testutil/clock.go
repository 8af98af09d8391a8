package testutil

import "sync"

// DeterministicTime is a controllable time oracle for tests.
//
// Each call to Now returns the current instant and then advances it by
// step, so successive entries get distinct, predictable timestamps. A
// step of zero freezes time.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicTime struct {
	mu    sync.Mutex
	start int64
	now   int64
	step  int64
}

// NewDeterministicTime creates a time oracle starting at start (unix
// seconds) and advancing by step per reading.
func NewDeterministicTime(start, step int64) *DeterministicTime {
	return &DeterministicTime{start: start, now: start, step: step}
}

// Now returns the current instant and advances by step.
func (c *DeterministicTime) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now += c.step
	return t
}

// Peek returns the instant the next Now call will report.
func (c *DeterministicTime) Peek() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set jumps to t. Setting a time earlier than a previous reading is how
// tests simulate a clock that goes backwards.
func (c *DeterministicTime) Set(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Reset returns to the start instant.
func (c *DeterministicTime) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
