package kcal

import (
	"github.com/dmkernel/domainkernel/internal/kerrors"
	"github.com/dmkernel/domainkernel/internal/kwire"
)

// ErrInvalidTimezoneName is returned for a timezone name byte outside
// printable ASCII or the high-ASCII range; it carries the cal_refused
// status.
var ErrInvalidTimezoneName = kerrors.New("CAL_$WRITE_TIMEZONE", kerrors.TimeCalRefused, "timezone name contains non-printable characters")

// ReadTimezone loads the timezone record, matching CAL_$READ_TIMEZONE:
// on a diskless system the in-memory record is authoritative and no
// I/O happens; otherwise the label block is read and the in-memory
// copy refreshed from it.
func (c *Calendar) ReadTimezone() (kwire.TimezoneRecord, error) {
	if c.diskless {
		return c.timezone, nil
	}

	block, err := c.volume.ReadLabelBlock()
	if err != nil {
		return kwire.TimezoneRecord{}, kerrors.Wrap("CAL_$READ_TIMEZONE", kerrors.MakeStatus(kerrors.SubsystemTIME, 3), err)
	}

	rec := kwire.UnmarshalTimezoneRecord(block[LabelBlockOffset : LabelBlockOffset+kwire.TimezoneRecordSize])
	c.timezone = *rec
	c.lastValidTime = rec.LastValidTime
	return c.timezone, nil
}

// WriteTimezone validates and persists tz, matching
// CAL_$WRITE_TIMEZONE: the name must be printable ASCII (0x20..0x7E)
// or high-ASCII (>=0xA1).
func (c *Calendar) WriteTimezone(tz kwire.TimezoneRecord) error {
	for _, ch := range tz.TZName {
		if ch < 0x20 || (ch > 0x7E && ch < 0xA1) {
			return ErrInvalidTimezoneName
		}
	}

	c.timezone = tz

	if c.diskless {
		return nil
	}

	block, err := c.volume.ReadLabelBlock()
	if err != nil {
		return kerrors.Wrap("CAL_$WRITE_TIMEZONE", kerrors.MakeStatus(kerrors.SubsystemTIME, 3), err)
	}

	now := c.clock.Now()
	tz.LastValidTime = now.High
	copy(block[LabelBlockOffset:LabelBlockOffset+kwire.TimezoneRecordSize], kwire.MarshalTimezoneRecord(&tz))

	if err := c.volume.WriteLabelBlock(block); err != nil {
		return kerrors.Wrap("CAL_$WRITE_TIMEZONE", kerrors.MakeStatus(kerrors.SubsystemTIME, 4), err)
	}
	c.lastValidTime = tz.LastValidTime
	return nil
}
