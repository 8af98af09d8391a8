package ledger

import "time"

// TimeOracle supplies the current ledger time in unix seconds. Instructions
// read it once per entry; the engine keeps entry timestamps non-decreasing.
type TimeOracle interface {
	Now() int64
}

// SystemTime reads the wall clock.
type SystemTime struct{}

// Now returns the current unix time in seconds.
func (SystemTime) Now() int64 {
	return time.Now().Unix()
}

// FixedTime always reports the same instant. Replay uses it to pin each
// entry to its recorded timestamp.
type FixedTime int64

// Now returns t.
func (t FixedTime) Now() int64 {
	return int64(t)
}
