// Package kcal implements the calendar subsystem (spec §4.9): civil
// time, local-offset/drift correction, and timezone persistence to the
// boot volume's label block.
package kcal

import (
	"github.com/dmkernel/domainkernel/internal/klog"
	"github.com/dmkernel/domainkernel/internal/ktick"
	"github.com/dmkernel/domainkernel/internal/ktimer"
	"github.com/dmkernel/domainkernel/internal/kwire"
)

// LabelBlockOffset is where the 10-byte timezone record lives within
// the boot volume's label block, per spec §6.
const LabelBlockOffset = 0xE0

// Volume is the narrow boundary to the boot disk's label block that
// CAL_$READ_TIMEZONE/CAL_$WRITE_TIMEZONE cross. A diskless system never
// calls it; internal/kdisk provides the real implementation.
type Volume interface {
	ReadLabelBlock() ([]byte, error)
	WriteLabelBlock(data []byte) error
}

// Calendar holds the in-memory timezone/drift state layered on top of
// a VirtualClock, plus the optional boot-volume persistence boundary.
type Calendar struct {
	clock    *ktimer.VirtualClock
	volume   Volume // nil on a diskless system
	diskless bool

	timezone      kwire.TimezoneRecord
	drift         ktick.Clock
	lastValidTime uint32

	log *klog.Logger
}

// NewCalendar creates a calendar with zeroed timezone/drift state.
// Pass a nil volume for a diskless boot; ReadTimezone/WriteTimezone
// then operate purely on the in-memory record.
func NewCalendar(clock *ktimer.VirtualClock, volume Volume, log *klog.Logger) *Calendar {
	return &Calendar{clock: clock, volume: volume, diskless: volume == nil, log: log}
}

// offsetClock converts the timezone's UTC delta (minutes) to ticks.
func (c *Calendar) offsetClock() ktick.Clock {
	offSeconds := int32(c.timezone.UTCDeltaMinutes) * 60
	return ktick.SecToClock(offSeconds)
}

// ApplyLocalOffset returns clock shifted by the configured UTC delta,
// matching CAL_$APPLY_LOCAL_OFFSET.
func (c *Calendar) ApplyLocalOffset(clock ktick.Clock) ktick.Clock {
	return ktick.Add48(clock, c.offsetClock())
}

// RemoveLocalOffset is ApplyLocalOffset's inverse, matching
// CAL_$REMOVE_LOCAL_OFFSET.
func (c *Calendar) RemoveLocalOffset(clock ktick.Clock) ktick.Clock {
	return ktick.Sub48(clock, c.offsetClock())
}

// GetLocalTime returns the current system clock plus local offset plus
// drift correction, matching CAL_$GET_LOCAL_TIME.
func (c *Calendar) GetLocalTime() ktick.Clock {
	now := c.clock.Now()
	now = ktick.Add48(now, c.offsetClock())
	now = ktick.Add48(now, c.drift)
	return now
}

// SetDrift sets the accumulated drift correction applied by GetLocalTime.
func (c *Calendar) SetDrift(drift ktick.Clock) { c.drift = drift }
