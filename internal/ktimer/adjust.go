package ktimer

import (
	"github.com/dmkernel/domainkernel/internal/kerrors"
	"github.com/dmkernel/domainkernel/internal/ktick"
)

// MaxAdjustSeconds bounds a single adjustment request, spec §4.5 /
// TIME_$ADJUST_TIME_OF_DAY's MAX_ADJUST_SECONDS.
const MaxAdjustSeconds = 8000

const (
	skewDivisorSlow = 0x00A7 // 167: used for adjustments within one second
	skewDivisorFast = 0x0686 // 1670: used for larger adjustments
)

// ErrAdjustTooLarge rejects an over-limit adjustment; it carries the
// cal_refused status (TimeCalRefused).
var ErrAdjustTooLarge = kerrors.New("TIME_$ADJUST_TIME_OF_DAY", kerrors.TimeCalRefused, "adjustment magnitude exceeds 8000 seconds")

// AdjustTimeOfDay requests a gradual clock skew of deltaSec seconds
// plus deltaUsec microseconds, returning the previously outstanding
// adjustment. A magnitude over MaxAdjustSeconds is rejected outright
// rather than applied, matching the original's upfront bounds check.
func (c *VirtualClock) AdjustTimeOfDay(deltaSec, deltaUsec int32) (oldSec, oldUsec int32, err error) {
	abs := deltaSec
	if abs < 0 {
		abs = -abs
	}
	if abs > MaxAdjustSeconds {
		return 0, 0, ErrAdjustTooLarge
	}

	deltaTicks := deltaSec*ktick.TicksPerSecond + deltaUsec/4

	var skew int16
	if deltaTicks != 0 {
		absTicks := deltaTicks
		if absTicks < 0 {
			absTicks = -absTicks
		}
		divisor := int32(skewDivisorSlow)
		if absTicks > ktick.TicksPerSecond {
			divisor = skewDivisorFast
		}
		if deltaTicks < 0 {
			divisor = -divisor
		}
		skew = int16(divisor)
	}

	c.mu.Lock()
	oldDelta := c.delta
	c.skew = skew
	c.delta = deltaTicks
	c.mu.Unlock()

	oldSec = oldDelta / ktick.TicksPerSecond
	oldUsec = (oldDelta % ktick.TicksPerSecond) * 4
	return oldSec, oldUsec, nil
}
