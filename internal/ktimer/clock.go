package ktimer

import (
	"sync"
	"sync/atomic"

	"github.com/dmkernel/domainkernel/internal/ktick"
)

// VirtualClock is the kernel's notion of "now": a tick counter advanced
// by the timer-interrupt driver (Kernel.Tick in the root
// package calls Advance), plus the adjustment state TIME_$ADJUST_TIME_OF_DAY
// mutates. There is no hardware RTE register to read in this port, so
// Advance takes the place of TIME_$ABS_CLOCK's "read the timer chip,
// add to CLOCKL/CLOCKH" step — the caller supplies elapsed ticks
// instead of this code reading a register.
type VirtualClock struct {
	ticks atomic.Uint64 // raw elapsed ticks since boot, pre-adjustment

	mu      sync.Mutex
	delta   int32 // TIME_$CURRENT_DELTA: outstanding adjustment, in ticks
	skew    int16 // TIME_$CURRENT_SKEW: per-tick skew divisor currently in effect
	applied int64 // cumulative skew folded into Now() so far, signed
}

// NewVirtualClock creates a clock at tick zero with no outstanding skew.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

// Advance accounts for n elapsed hardware ticks and folds up to n ticks
// of the outstanding adjustment delta into the clock (one tick of
// correction per raw tick) until the delta is drained. The skew value
// AdjustTimeOfDay records is not consulted here.
func (c *VirtualClock) Advance(n uint32) {
	c.ticks.Add(uint64(n))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.delta == 0 {
		return
	}
	step := int32(n)
	if c.delta > 0 {
		if step > c.delta {
			step = c.delta
		}
		c.delta -= step
		c.applied += int64(step)
	} else {
		if step > -c.delta {
			step = -c.delta
		}
		c.delta += step
		c.applied -= int64(step)
	}
}

// Now returns the current absolute clock, matching TIME_$ABS_CLOCK's
// role (not TIME_$CLOCK, which does not include the skew adjustment):
// raw elapsed ticks plus whatever skew Advance has folded in so far
// toward the outstanding AdjustTimeOfDay delta.
func (c *VirtualClock) Now() ktick.Clock {
	c.mu.Lock()
	applied := c.applied
	c.mu.Unlock()

	total := int64(c.ticks.Load()) + applied
	if total < 0 {
		total = 0
	}
	return ktick.Clock{High: uint32(uint64(total) >> 16), Low: uint16(uint64(total))}
}

// AdjustDelta returns the outstanding adjustment as (seconds,
// microseconds), matching TIME_$GET_ADJUST.
func (c *VirtualClock) AdjustDelta() (sec, usec int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delta / ktick.TicksPerSecond, (c.delta % ktick.TicksPerSecond) * 4
}
