package graph

import (
	"sync/atomic"
	"time"
)

// Clock stamps new events. Timestamps are Unix nanoseconds.
//
// Timestamps order replays but never identify events on their own: two
// events may share a timestamp and the store tolerates it.
type Clock interface {
	Now() int64
}

// WallClock reads the system clock. It is the default for a Store.
type WallClock struct{}

// Now returns the current wall-clock time in Unix nanoseconds.
func (WallClock) Now() int64 {
	return time.Now().UnixNano()
}

// LogicalClock is a monotonic counter usable wherever wall time would make
// ids unreproducible (golden tests, scenario runs).
//
// Thread-safety: LogicalClock is safe for concurrent use (atomic operations).
type LogicalClock struct {
	seq atomic.Int64
}

// NewLogicalClock creates a clock whose first Now() returns start+1.
func NewLogicalClock(start int64) *LogicalClock {
	c := &LogicalClock{}
	c.seq.Store(start)
	return c
}

// Now returns the next value. Each call returns a unique, increasing value.
func (c *LogicalClock) Now() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out without advancing.
func (c *LogicalClock) Current() int64 {
	return c.seq.Load()
}
