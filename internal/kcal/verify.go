package kcal

import (
	"strings"

	"github.com/dmkernel/domainkernel/internal/kerrors"
	"github.com/dmkernel/domainkernel/internal/ktick"
)

var zeroClock = ktick.Clock{}

// backwardToleranceTicks is the ~1-minute-of-high-word tolerance for
// clock regression, matching CAL_$VERIFY's -229 threshold.
const backwardToleranceTicks = -229

// ErrCalRefused is status_$cal_refused: the operator declined to run
// with the current (suspect) calendar setting.
var ErrCalRefused = kerrors.New("CAL_$VERIFY", kerrors.TimeCalRefused, "operator refused to accept the current calendar")

// Console is the operator confirmation boundary CAL_$VERIFY prompts
// through when the clock looks wrong and interactive confirmation was
// requested.
type Console interface {
	Prompt(message string) (answer string, err error)
}

// Verify checks that the clock has not regressed more than about a
// minute, nor advanced more than maxDeltaTicks, since the last known-
// good time recorded in the timezone record. Both the regression
// tolerance and maxDeltaTicks are compared against the difference of
// the clock's high words, so they count units of 65536 ticks (about
// 0.26 s), not single ticks. If the check fails and
// console is non-nil, the operator is asked to confirm running with
// the current setting; declining returns ErrCalRefused. A nil console
// with a failed check returns ErrCalRefused without prompting,
// matching the non-interactive (param_3 >= 0) branch of CAL_$VERIFY.
func (c *Calendar) Verify(maxDeltaTicks int32, console Console) error {
	if _, err := c.ReadTimezone(); err != nil {
		return err
	}
	c.drift = zeroClock

	now := c.clock.Now()
	delta := int32(now.High) - int32(c.lastValidTime)

	if delta >= backwardToleranceTicks && delta <= maxDeltaTicks {
		return nil
	}

	if c.log != nil {
		if delta < backwardToleranceTicks {
			c.log.Warn("calendar is more than a minute behind the last valid time")
		} else {
			c.log.Warn("more than the allowed interval has elapsed since the last valid time", "delta", delta, "max", maxDeltaTicks)
		}
	}

	if console == nil {
		return ErrCalRefused
	}

	for {
		answer, err := console.Prompt("Do you want to run DOMAIN/OS with the current calendar setting? (Y/N) ")
		if err != nil {
			return kerrors.Wrap("CAL_$VERIFY", kerrors.TimeCalRefused, err)
		}
		answer = strings.TrimSpace(answer)
		if len(answer) == 0 {
			continue
		}
		switch answer[0] {
		case 'Y', 'y':
			return nil
		case 'N', 'n':
			if c.log != nil {
				c.log.Info("please set the calendar using the set_time command")
			}
			return ErrCalRefused
		}
	}
}
