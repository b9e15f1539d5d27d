package engine

import "sync/atomic"

// SeqClock stamps journal events with strictly increasing sequence numbers.
// Implemented by Clock (production) and testutil.DeterministicClock (tests).
type SeqClock interface {
	Next() int64
	Current() int64
}

// Clock is the engine's monotonic logical clock.
//
// Sequence numbers are never derived from wall-clock time, so a replayed
// journal reproduces the same numbering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The engine only advances it while holding its write lock, after the
// journal has accepted the event.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1.
// Used when restoring an engine from a stored snapshot.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
