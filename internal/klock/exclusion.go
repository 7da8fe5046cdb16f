package klock

import (
	"sync"

	"github.com/dmkernel/domainkernel/internal/kec"
)

// Exclusion is a counting-semaphore region scheduled identically to a
// resource lock: holders inhibit preemption and are boosted, per spec
// §4.3. state tracks ML_$EXCLUSION_START's f5 field: -1 means
// unlocked, >=0 is the number of processes currently queued behind the
// first holder.
type Exclusion struct {
	ec        *kec.EC1
	mu        sync.Mutex
	state     int32
	waitCount uint32
}

// NewExclusion creates an unlocked exclusion region.
func NewExclusion() *Exclusion {
	return &Exclusion{ec: kec.NewEC1(kec.WakeAll), state: -1}
}

// Start enters the exclusion region, blocking if already occupied, or
// until p's quit EC fires.
func (e *Exclusion) Start(p Process) error {
	p.InhibitBegin()

	e.mu.Lock()
	e.state++
	entered := e.state == 0
	var target uint32
	if !entered {
		e.waitCount++
		target = e.waitCount
	}
	e.mu.Unlock()

	if !entered {
		quit, quitTarget := p.QuitEC()
		if err := e.ec.WaitUntil(target, quit, quitTarget); err != nil {
			e.mu.Lock()
			e.state--
			e.mu.Unlock()
			p.InhibitEnd()
			return err
		}
	}
	return nil
}

// Stop leaves the exclusion region, waking a waiter if any, then
// running the same last-lock-released path as Unlock.
func (e *Exclusion) Stop(p Process) {
	e.mu.Lock()
	hadWaiters := e.state >= 1
	e.state--
	e.mu.Unlock()

	if hadWaiters {
		e.ec.Advance()
	}

	p.InhibitEnd()
	p.Reorder()

	if p.HeldMask() == 0 {
		p.OnLastLockReleased()
	}
}
