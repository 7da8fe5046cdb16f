package ktimer

import (
	"github.com/dmkernel/domainkernel/internal/kec"
	"github.com/dmkernel/domainkernel/internal/kerrors"
	"github.com/dmkernel/domainkernel/internal/ktick"
)

// ErrTimedOut is returned by TimeWait when the deadline passes before
// ec reaches target, matching TIME_$WAIT's timeout return.
var ErrTimedOut = kerrors.New("TIME_$WAIT", kerrors.TimeWaitTimedOut, "time_wait deadline expired")

// TimeWait blocks until ec.Value() >= target, until rtq fires a
// callback at deadline, or until quit (if non-nil) reaches quitTarget
// — whichever comes first. It layers a timeout on top of kec.WaitN the
// way the original builds TIME_$WAIT from EC_$WAIT2 plus a synthetic
// EC a queued RT callback advances once at the deadline: the timeout
// is itself just another event count racing the caller's, so the same
// multi-EC select kec.WaitN already implements for quit-EC cancellation
// covers it with no separate code path.
func TimeWait(rtq *Queue, ec *kec.EC1, target uint32, deadline ktick.Clock, quit *kec.EC1, quitTarget uint32) error {
	timeoutEC := kec.NewEC1(kec.WakeAll)
	entry := &Entry{
		Expire:   deadline,
		Callback: func() { timeoutEC.Advance() },
	}
	rtq.QEnter(entry)
	defer rtq.QRemove(entry)

	i, err := kec.WaitN([]*kec.EC1{ec, timeoutEC}, []uint32{target, 1}, quit, quitTarget)
	if err != nil {
		return err
	}
	if i == 1 {
		return ErrTimedOut
	}
	return nil
}
