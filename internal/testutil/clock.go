package testutil

import (
	"sync"
	"time"

	"github.com/HerbHall/sysinfo/internal/telemetry"
)

var _ telemetry.Clock = (*Clock)(nil)

// Epoch is where NewClock starts unless told otherwise (Unix 1735689600).
var Epoch = time.Unix(1735689600, 0).UTC()

// Clock is a manual telemetry.Clock. Snapshot timestamps stamped from it move
// only when a test advances it, or by a fixed step per reading.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewClock returns a Clock reading start, or Epoch when start is omitted.
func NewClock(start ...time.Time) *Clock {
	c := &Clock{now: Epoch}
	if len(start) > 0 {
		c.now = start[0]
	}
	return c
}

// Now returns the current reading, then applies the auto-step if one is set.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Advance moves the clock by d. A negative d emulates a wall clock stepped
// backwards.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// AutoStep makes every Now call advance the clock by d after reading it, so
// successive snapshots are d apart. Zero turns stepping off.
func (c *Clock) AutoStep(d time.Duration) {
	c.mu.Lock()
	c.step = d
	c.mu.Unlock()
}
