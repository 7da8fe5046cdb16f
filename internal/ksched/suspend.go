package ksched

import "github.com/dmkernel/domainkernel/internal/kerrors"

// Suspend suspends pid, deferring if the process is currently
// inhibited, matching PROC1_$SUSPEND.
func (s *Scheduler) Suspend(pid int32) (suspended bool, err error) {
	p := s.lookup(pid)
	if pid <= 0 || int(pid) > MaxProcesses {
		return false, kerrors.New("PROC1_$SUSPEND", kerrors.ProcIllegalProcessID, "illegal process id")
	}
	if p == nil || !p.bound() {
		return false, kerrors.New("PROC1_$SUSPEND", kerrors.MakeStatus(kerrors.SubsystemPROC, 4), "process not bound")
	}

	p.mu.Lock()
	already := p.flags&(FlagSuspended|FlagDeferSuspend) != 0
	wasSuspended := p.flags&FlagSuspended != 0
	p.mu.Unlock()
	if already {
		return wasSuspended, kerrors.New("PROC1_$SUSPEND", kerrors.MakeStatus(kerrors.SubsystemPROC, 5), "process already suspended")
	}

	s.TryToSuspend(p)
	s.Dispatch()

	p.mu.Lock()
	suspended = p.flags&FlagSuspended != 0
	p.mu.Unlock()
	return suspended, nil
}

// TryToSuspend attempts to suspend p now, or defers if p is currently
// inside an inhibit region, matching PROC1_$TRY_TO_SUSPEND.
func (s *Scheduler) TryToSuspend(p *PCB) {
	p.mu.Lock()
	p.flags |= FlagDeferSuspend
	inhibited := p.inhCount != 0
	waiting := p.flags&FlagWaiting != 0
	p.mu.Unlock()

	if inhibited {
		return
	}

	if !waiting {
		s.RemoveReady(p)
	}

	p.mu.Lock()
	p.flags = (p.flags &^ FlagDeferSuspend) | FlagSuspended
	p.mu.Unlock()

	s.suspendEC.Advance()
}

// Resume resumes a suspended (or deferred-suspend) process, matching
// PROC1_$RESUME.
func (s *Scheduler) Resume(pid int32) error {
	if pid <= 0 || int(pid) > MaxProcesses {
		return kerrors.New("PROC1_$RESUME", kerrors.ProcIllegalProcessID, "illegal process id")
	}
	p := s.lookup(pid)
	if p == nil || !p.bound() {
		return kerrors.New("PROC1_$RESUME", kerrors.MakeStatus(kerrors.SubsystemPROC, 4), "process not bound")
	}

	p.mu.Lock()
	suspended := p.flags&FlagSuspended != 0
	deferred := p.flags&FlagDeferSuspend != 0
	waiting := p.flags&FlagWaiting != 0
	p.mu.Unlock()

	switch {
	case suspended:
		p.mu.Lock()
		p.flags &^= FlagSuspended
		p.mu.Unlock()
		if !waiting {
			s.AddReady(p)
		}
		s.Dispatch()
		return nil
	case deferred:
		p.mu.Lock()
		p.flags &^= FlagDeferSuspend
		p.mu.Unlock()
		return nil
	default:
		return kerrors.New("PROC1_$RESUME", kerrors.MakeStatus(kerrors.SubsystemPROC, 6), "process not suspended")
	}
}
