package kec

import "github.com/dmkernel/domainkernel/internal/kerrors"

// MaxWaitCount mirrors EC2_$WAIT's 128-entry limit on simultaneous ECs.
const MaxWaitCount = 128

// ErrTooManyECs is returned when WaitN is called with more than
// MaxWaitCount event counts, matching status_$too_many_ecs.
var ErrTooManyECs = kerrors.New("EC_$WAITN", kerrors.ECTooManyWaits, "too many event counts")

// ErrQuit is returned when a wait is interrupted by its quit EC
// advancing before any of the waited-on ECs reached their target.
var ErrQuit = kerrors.New("EC_$WAITN", kerrors.ECAsyncFaultWhileWaiting, "wait aborted by quit event count")

// WaitN blocks until ecs[i].Value() >= targets[i] for some i, or until
// quit (if non-nil) reaches quitTarget, whichever comes first.
// It returns the index of the first EC found satisfied. This is the Go
// rendering of EC_$WAITN/EC2_$WAIT's core loop: rather than registering
// a waiter entry on each EC and parking the calling process, it takes a
// consistent (value, generation-channel) snapshot of every EC plus the
// quit EC, and selects across all the generation channels at once —
// there is no separate waiter-list teardown step because nothing is
// ever registered; when select returns, every channel reference it held
// is simply dropped.
func WaitN(ecs []*EC1, targets []uint32, quit *EC1, quitTarget uint32) (int, error) {
	if len(ecs) > MaxWaitCount {
		return 0, ErrTooManyECs
	}
	if len(ecs) != len(targets) {
		return 0, kerrors.New("EC_$WAITN", kerrors.ECBadEventCount, "ecs/targets length mismatch")
	}

	for {
		gens := make([]chan struct{}, len(ecs))
		for i, ec := range ecs {
			v, g := ec.snapshot()
			if v >= targets[i] {
				return i, nil
			}
			gens[i] = g
		}

		var quitGen chan struct{}
		if quit != nil {
			qv, qg := quit.snapshot()
			if qv >= quitTarget {
				return -1, ErrQuit
			}
			quitGen = qg
		}

		if waitAny(gens, quitGen) == quitFired {
			return -1, ErrQuit
		}
		// else: one of the ECs' generation advanced; loop and re-check
		// every value, since the one that fired may not have reached
		// its target yet (another waiter's Advance can race in).
	}
}

type waitResult int

const (
	ecFired waitResult = iota
	quitFired
)

// waitAny blocks until any of gens or quitGen closes. Implemented with
// a goroutine-per-channel fan-in since Go's select requires a static
// case list; MaxWaitCount bounds the fan-in to 128 goroutines, the same
// ceiling the original imposed on simultaneous ECs.
func waitAny(gens []chan struct{}, quitGen chan struct{}) waitResult {
	done := make(chan waitResult, 1)
	stop := make(chan struct{})
	defer close(stop)

	notify := func(ch chan struct{}, r waitResult) {
		select {
		case <-ch:
			select {
			case done <- r:
			default:
			}
		case <-stop:
		}
	}

	for _, g := range gens {
		go notify(g, ecFired)
	}
	if quitGen != nil {
		go notify(quitGen, quitFired)
	}
	return <-done
}
