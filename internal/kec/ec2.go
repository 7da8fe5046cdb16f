package kec

import "github.com/dmkernel/domainkernel/internal/kerrors"

// EC2 is the general, indirect event-count handle: a process-visible
// reference that may name a kernel-resident EC1 by registered index, or
// a guarded pointer bounds-checked against an address-space boundary.
// EC2_$WAIT's job (spec §4.2) is to normalize every EC2 in a wait set
// down to its underlying EC1 under a global lock, then delegate to
// WaitN; this type carries exactly the state that normalization needs.
type EC2 struct {
	// Guard reports whether target lies within the caller's address
	// space; nil means "no bounds check" (kernel-resident handle).
	Guard func(target *EC1) bool
	ec    *EC1
}

// NewEC2 wraps an EC1 with an optional guard. Guard may be nil.
func NewEC2(ec *EC1, guard func(*EC1) bool) *EC2 {
	return &EC2{ec: ec, Guard: guard}
}

// ErrBadEventCount is status_$ec2_bad_event_count: the EC2 handle's
// target failed its guard check or is otherwise not a valid EC1.
var ErrBadEventCount = kerrors.New("EC2_$WAIT", kerrors.ECBadEventCount, "ec2 handle does not resolve to a valid event count")

// resolve normalizes an EC2 down to its EC1, applying the guard check.
func (e *EC2) resolve() (*EC1, error) {
	if e == nil || e.ec == nil {
		return nil, ErrBadEventCount
	}
	if e.Guard != nil && !e.Guard(e.ec) {
		return nil, ErrBadEventCount
	}
	return e.ec, nil
}

// ec2Lock serializes EC2 normalization across all wait sets, mirroring
// EC2_$WAIT's ML_$LOCK(EC2_LOCK_ID) around the resolve-and-enqueue step.
var ec2Lock lockStub

// lockStub is a minimal mutex placeholder until internal/klock's
// ML_$LOCK(EC2_LOCK_ID) is wired in by the kernel package; kec must not
// import klock (klock depends on kec for its own waiting), so it takes
// only the narrow behavior it needs directly.
type lockStub struct{ ch chan struct{} }

func (l *lockStub) init() {
	if l.ch == nil {
		l.ch = make(chan struct{}, 1)
	}
}

func (l *lockStub) Lock() {
	l.init()
	l.ch <- struct{}{}
}

func (l *lockStub) Unlock() {
	<-l.ch
}

// Wait2 normalizes a set of EC2 handles to EC1s under the EC2 lock,
// then blocks via WaitN exactly as EC2_$WAIT does. quit may be nil.
func Wait2(ecs []*EC2, targets []uint32, quit *EC1, quitTarget uint32) (int, error) {
	ec2Lock.Lock()
	resolved := make([]*EC1, len(ecs))
	for i, e := range ecs {
		r, err := e.resolve()
		if err != nil {
			ec2Lock.Unlock()
			return i, err
		}
		resolved[i] = r
	}
	ec2Lock.Unlock()

	return WaitN(resolved, targets, quit, quitTarget)
}
