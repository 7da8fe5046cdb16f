package ksched

import (
	"container/list"
	"sync"

	"github.com/dmkernel/domainkernel/internal/kec"
	"github.com/dmkernel/domainkernel/internal/kerrors"
	"github.com/dmkernel/domainkernel/internal/klog"
)

// Scheduler owns the ready list and dispatcher for one virtual CPU.
// Only one PCB is ever "current"; this is a single-CPU design per
// spec §4.4, so there is no cross-core ready-list contention to
// model — one mutex over the whole list is faithful, not a shortcut.
type Scheduler struct {
	mu sync.Mutex

	ready       *list.List // ordered: locks-held desc, then state asc
	processes   [MaxProcesses + 1]*PCB
	current     *PCB
	atomicDepth int32
	suspendEC   *kec.EC1
	loadavg     LoadAverages

	// TimesliceTable maps a process's state level to its timeslice in
	// ticks, matching TIMESLICE_TABLE. Index 0 corresponds to state 1.
	TimesliceTable []int32

	log *klog.Logger
}

// NewScheduler constructs an empty scheduler; Bind must be called for
// each process before it can be made ready.
func NewScheduler(log *klog.Logger) *Scheduler {
	return &Scheduler{
		ready:     list.New(),
		suspendEC: kec.NewEC1(kec.WakeAll),
		log:       log,
	}
}

// Bind registers pid as an in-use process slot, per PROC1_$CREATE_P /
// the PROC1_FLAG_BOUND convention. pid must be in [1, MaxProcesses].
func (s *Scheduler) Bind(pid int32) (*PCB, error) {
	if pid <= 0 || int(pid) > MaxProcesses {
		kerrors.Crash(kerrors.MsgIllegalProcessID, kerrors.ProcIllegalProcessID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &PCB{id: pid, flags: FlagBound, sched: s, quitEC: kec.NewEC1(kec.WakeOwner)}
	s.processes[pid] = p
	return p, nil
}

func (s *Scheduler) lookup(pid int32) *PCB {
	if pid <= 0 || int(pid) > MaxProcesses {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processes[pid]
}

// InhibitBegin raises p's preemption-inhibit counter, satisfying
// klock.Process.
func (p *PCB) InhibitBegin() {
	p.mu.Lock()
	p.inhCount++
	p.mu.Unlock()
}

// InhibitEnd lowers the inhibit counter and does nothing else;
// reordering and a deferred suspend are handled by OnLastLockReleased.
func (p *PCB) InhibitEnd() {
	p.mu.Lock()
	p.inhCount--
	p.mu.Unlock()
}

func (p *PCB) inhibited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inhCount != 0
}

// Reorder re-sorts p in the ready list if its (locks, state) key moved
// out of position relative to its neighbors, matching
// proc1_$reorder_if_needed. It is a no-op if p is not currently in the
// ready list.
func (p *PCB) Reorder() {
	if p.sched == nil {
		return
	}
	p.sched.reorder(p)
}

// OnLastLockReleased implements the shared ML_$UNLOCK /
// ML_$EXCLUSION_STOP exit path: clear the priority-boost-for-holding
// flag, consume a deferred suspend if one was posted, then dispatch.
func (p *PCB) OnLastLockReleased() {
	if p.sched == nil {
		return
	}
	p.sched.consumeDeferredOnUnlock(p)
}

func insertionKey(p *PCB) (locks uint32, state int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heldMask, p.state
}

// less reports whether a sorts strictly before b in the ready list:
// higher locks-held first, then lower state first.
func less(a, b *PCB) bool {
	al, as := insertionKey(a)
	bl, bs := insertionKey(b)
	if al != bl {
		return al > bl
	}
	return as < bs
}

// AddReady inserts p into the ready list at its sorted position.
func (s *Scheduler) AddReady(p *PCB) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(p)
}

func (s *Scheduler) insertLocked(p *PCB) {
	for e := s.ready.Front(); e != nil; e = e.Next() {
		if less(p, e.Value.(*PCB)) {
			p.elem = s.ready.InsertBefore(p, e)
			return
		}
	}
	p.elem = s.ready.PushBack(p)
}

// RemoveReady removes p from the ready list, if present.
func (s *Scheduler) RemoveReady(p *PCB) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(p)
}

func (s *Scheduler) removeLocked(p *PCB) {
	if p.elem != nil {
		s.ready.Remove(p.elem)
		p.elem = nil
	}
}

func (s *Scheduler) reorder(p *PCB) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.elem == nil {
		return
	}
	// Cheap check against neighbors before paying for a full
	// remove+reinsert, matching the original's neighbor-only probe.
	if prev := p.elem.Prev(); prev != nil && less(p, prev.Value.(*PCB)) {
		s.removeLocked(p)
		s.insertLocked(p)
		return
	}
	if next := p.elem.Next(); next != nil && less(next.Value.(*PCB), p) {
		s.removeLocked(p)
		s.insertLocked(p)
	}
}

// BeginAtomicOp increments the atomic-op nesting depth; while positive,
// Dispatch is fatal, matching PROC1_$BEGIN_ATOMIC_OP.
func (s *Scheduler) BeginAtomicOp() {
	s.mu.Lock()
	s.atomicDepth++
	s.mu.Unlock()
}

// EndAtomicOp decrements the depth counter.
func (s *Scheduler) EndAtomicOp() {
	s.mu.Lock()
	s.atomicDepth--
	s.mu.Unlock()
}

// Dispatch selects the ready-list head and makes it current, switching
// away from whatever PCB was current before. Crashes if called inside
// an atomic-op region, matching the original's invariant that
// ready-list mutators must not be preempted mid-update.
func (s *Scheduler) Dispatch() *PCB {
	s.mu.Lock()
	if s.atomicDepth != 0 {
		s.mu.Unlock()
		kerrors.Crash("Dispatch called inside atomic op region", kerrors.ProcIllegalLockErr)
	}
	front := s.ready.Front()
	if front == nil {
		s.mu.Unlock()
		return s.current
	}
	head := front.Value.(*PCB)
	switched := head != s.current
	s.current = head
	s.mu.Unlock()

	if switched && s.log != nil {
		s.log.Debug("dispatch", "pid", head.id)
	}
	return head
}

func (s *Scheduler) consumeDeferredOnUnlock(p *PCB) {
	p.mu.Lock()
	if p.heldMask != 0 {
		p.mu.Unlock()
		return
	}
	boosted := p.flags&FlagDeferReorder != 0
	p.flags &^= FlagDeferReorder
	deferSuspend := p.flags&FlagDeferSuspend != 0
	p.mu.Unlock()

	if boosted {
		s.RemoveReady(p)
		s.AddReady(p)
	}
	if deferSuspend {
		s.TryToSuspend(p)
	}
	s.Dispatch()
}
