// Package klock implements the kernel's resource-lock lattice (spec
// §4.3): 32 numbered locks with a strict ascending-acquisition-order
// invariant that makes deadlock cycles statically impossible.
package klock

import (
	"sync"
	"sync/atomic"

	"github.com/dmkernel/domainkernel/internal/kec"
	"github.com/dmkernel/domainkernel/internal/kerrors"
)

// NumLocks is the fixed lock-id space, spec §4.3: locks are numbered 0..31.
const NumLocks = 32

// Process is the slice of scheduler state the lock lattice touches.
// ksched.PCB implements this; klock never imports ksched (ksched
// imports klock, to let PCB-level acquire/release drive ready-list
// placement), so this interface is the seam between the two.
type Process interface {
	ID() int32
	HeldMask() uint32
	SetHeldMask(mask uint32)
	InhibitBegin()
	InhibitEnd()
	// Reorder re-sorts p within the ready list after its locks-held
	// count changed, matching proc1_$reorder_if_needed.
	Reorder()
	// OnLastLockReleased runs once HeldMask returns to zero: clear the
	// priority-boost-for-holding-locks flag, consume a deferred
	// suspend if one was posted while locks were held, and dispatch.
	OnLastLockReleased()
	// QuitEC returns the per-process quit event count and the target
	// it must reach to cancel a wait this process is blocked in,
	// matching PROC1_$EC_WAITN's quit-EC argument.
	QuitEC() (ec *kec.EC1, target uint32)
}

type lockSlot struct {
	held      atomic.Bool
	ec        *kec.EC1
	mu        sync.Mutex
	waitCount uint32
}

// Table is the kernel-wide set of 32 resource locks.
type Table struct {
	slots [NumLocks]lockSlot
}

// NewTable constructs a lock table with every lock initially free.
func NewTable() *Table {
	t := &Table{}
	for i := range t.slots {
		t.slots[i].ec = kec.NewEC1(kec.WakeAll)
	}
	return t
}

// Lock acquires resource lock id for p, blocking until available or
// until p's quit EC fires, whichever comes first. Panics via
// kerrors.Crash on an ordering violation, matching
// CRASH_SYSTEM(&Lock_ordering_violation) in ML_$LOCK.
func (t *Table) Lock(p Process, id int) error {
	if id < 0 || id >= NumLocks {
		kerrors.Crash(kerrors.MsgIllegalLockErr, kerrors.ProcIllegalLockErr)
	}

	p.InhibitBegin()

	mask := uint32(1) << uint(id&0x1F)
	held := p.HeldMask()
	if mask <= held {
		kerrors.Crash(kerrors.MsgLockOrderingViolation, kerrors.MMUIllegalLockOrderViolation)
	}

	p.SetHeldMask(held | mask)
	p.Reorder()

	quit, quitTarget := p.QuitEC()
	slot := &t.slots[id]
	for {
		if !slot.held.Swap(true) {
			return nil
		}

		slot.mu.Lock()
		slot.waitCount++
		target := slot.waitCount
		slot.mu.Unlock()

		if err := slot.ec.WaitUntil(target, quit, quitTarget); err != nil {
			// Quit fired before the lock was granted: unwind the
			// held-mask bit Lock set speculatively above, leaving p as
			// if it had never attempted the lock.
			p.SetHeldMask(p.HeldMask() &^ mask)
			p.Reorder()
			p.InhibitEnd()
			return err
		}
	}
}

// Unlock releases resource lock id for p, waking a waiter if any, then
// handles the deferred-suspend/priority-unboost path once the last
// lock is dropped, matching ML_$UNLOCK's shared exit with
// ML_$EXCLUSION_STOP.
func (t *Table) Unlock(p Process, id int) {
	if id < 0 || id >= NumLocks {
		kerrors.Crash(kerrors.MsgIllegalLockErr, kerrors.ProcIllegalLockErr)
	}

	slot := &t.slots[id]
	slot.held.Store(false)

	slot.mu.Lock()
	hasWaiters := slot.ec.Value() != slot.waitCount
	slot.mu.Unlock()
	if hasWaiters {
		slot.ec.Advance()
	}

	mask := uint32(1) << uint(id&0x1F)
	held := p.HeldMask()
	if held&mask == 0 {
		kerrors.Crash(kerrors.MsgIllegalLockErr, kerrors.ProcIllegalLockErr)
	}
	held &^= mask
	p.SetHeldMask(held)

	p.InhibitEnd()
	p.Reorder()

	if held == 0 {
		p.OnLastLockReleased()
	}
}
