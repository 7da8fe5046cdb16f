// Package ksched implements the single-CPU preemptive scheduler and
// dispatcher (spec §4.4): ready list maintenance ordered by
// (locks-held desc, state asc), preemption-inhibit regions, atomic-op
// depth guard, suspend/resume, virtual timeslice, and load averages.
package ksched

import (
	"container/list"
	"sync"

	"github.com/dmkernel/domainkernel/internal/kec"
)

// Process-flag bits, named after PROC1_FLAG_* in proc1_internal.h.
const (
	FlagBound       uint8 = 0x01
	FlagWaiting     uint8 = 0x02
	FlagSuspended   uint8 = 0x08
	FlagDeferSuspend uint8 = 0x04
	FlagDeferReorder uint8 = 0x10
)

// MaxProcesses mirrors PCBS[1..64].
const MaxProcesses = 64

// IdleProcessID is the special-cased idle process, always maximally
// time-sliced and pinned at its own state level.
const IdleProcessID = 2

// PCB is a process control block: the scheduler's unit of dispatch.
type PCB struct {
	mu sync.Mutex

	id       int32
	heldMask uint32
	state    int32 // lower = higher priority; decremented on timeslice expiry
	inhCount int32
	flags    uint8

	vtimerTicks uint64 // accumulated virtual-time ticks (cpu_total)
	elem        *list.Element
	sched       *Scheduler

	// quitEC is the per-process quit event count every wait primitive
	// this process blocks in (ML_$LOCK, ML_$EXCLUSION_START, ...)
	// selects on alongside its own EC, matching spec §4.2/§5's
	// "every waiting primitive honors a per-process quit EC". It starts
	// at 0; RequestQuit advances it once, which is enough to satisfy
	// quitTarget for the rest of the process's lifetime.
	quitEC *kec.EC1
}

func (p *PCB) ID() int32 { return p.id }

func (p *PCB) HeldMask() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heldMask
}

func (p *PCB) SetHeldMask(mask uint32) {
	p.mu.Lock()
	p.heldMask = mask
	p.mu.Unlock()
}

func (p *PCB) State() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *PCB) bound() bool     { return p.flags&FlagBound != 0 }
func (p *PCB) waiting() bool   { return p.flags&FlagWaiting != 0 }
func (p *PCB) suspended() bool { return p.flags&FlagSuspended != 0 }

// quitTarget is the fixed target every quit-EC wait watches for: the
// EC starts at 0, so a single RequestQuit (which calls Advance once)
// is enough to satisfy it permanently.
const quitTarget uint32 = 1

// QuitEC returns the quit event count and target a wait primitive
// should pass alongside its own EC, satisfying klock.Process.
func (p *PCB) QuitEC() (*kec.EC1, uint32) {
	return p.quitEC, quitTarget
}

// RequestQuit cancels any wait this process is currently blocked in —
// ML_$LOCK, ML_$EXCLUSION_START, and any future quit-EC-aware wait —
// and prevents it from blocking again. Matches a quit-EC post issued
// by process deletion/abort (PROC1_$DELETE_P's cleanup path).
func (p *PCB) RequestQuit() {
	p.quitEC.Advance()
}
