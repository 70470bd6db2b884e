package timepoint

import (
	"sync"
	"time"
)

var now = time.Now

// Clock is the single source of time shared by every component of a ledger.
type Clock interface {
	Now() Timepoint
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current wall clock time as a Timepoint. Times outside the
// representable range are clamped.
func (SystemClock) Now() Timepoint {
	tp, err := FromTime(now())
	if err != nil {
		if err == ErrAfterMaxTimepoint {
			return MaxTimepoint
		}
		return 0
	}
	return tp
}

// MonotonicClock wraps another clock and never reports a timepoint earlier
// than one it already reported, or earlier than the floor it was created with.
type MonotonicClock struct {
	mu     sync.Mutex
	source Clock
	last   Timepoint
}

// NewMonotonicClock returns a clock that reads source but never goes below
// floor. floor is typically the last timepoint persisted by a previous run.
func NewMonotonicClock(source Clock, floor Timepoint) *MonotonicClock {
	return &MonotonicClock{source: source, last: floor}
}

func (c *MonotonicClock) Now() Timepoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t := c.source.Now(); t > c.last {
		c.last = t
	}
	return c.last
}

// ManualClock is a clock that only moves when told to. Tests and offline
// tooling use it to pin the ledger time.
type ManualClock struct {
	mu  sync.Mutex
	now Timepoint
}

func NewManualClock(start Timepoint) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() Timepoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Moving backwards is refused.
func (c *ManualClock) Set(t Timepoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t < c.now {
		return ErrClockWentBackwards
	}
	c.now = t
	return nil
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.now.Add(d)
	if err != nil {
		return err
	}
	c.now = t
	return nil
}
