// Package testutil holds deterministic stand-ins for clocks and name
// generators so scenario runs produce identical graphs.
package testutil

import "sync"

// DeterministicClock is a resettable logical clock for tests.
//
// It satisfies graph.Clock: event timestamps become 1, 2, 3, ... in append
// order, so the same scenario always hashes to the same ids. Unlike
// graph.LogicalClock it can be reset between runs.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock whose first tick is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Now advances the clock and returns the new tick.
func (c *DeterministicClock) Now() int64 {
	return c.Next()
}

// Next increments and returns the tick.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last tick handed out, or 0.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock; the next tick is 1 again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
