package engine

import "sync/atomic"

// Clock is the discrete simulated clock driving delay nodes.
//
// Time advances only when the scheduler decides nothing of higher priority
// can run: one Tick per scheduling round in which delays are the only
// runnable work. No wall-clock time is ever consulted, so runs are
// reproducible regardless of host speed.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though the scheduler's single-writer loop means only one goroutine
// normally calls Tick.
type Clock struct {
	step atomic.Int64
}

// NewClock creates a clock starting at step 0.
func NewClock() *Clock {
	return &Clock{}
}

// Tick advances simulated time by one step and returns the new step.
func (c *Clock) Tick() int64 {
	return c.step.Add(1)
}

// Current returns the current step without advancing.
func (c *Clock) Current() int64 {
	return c.step.Load()
}
