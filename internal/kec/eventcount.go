// Package kec implements event counts (spec §4.2): the wait/signal
// primitive beneath every blocking operation in the kernel — locks,
// timers, device I/O, and remote-object fetches all wait on an EC
// rather than spin.
package kec

import "sync"

// WakePolicy names an EC's wake policy, per spec §3/§4.2: per-lock ECs
// wake all waiters, per-process ECs wake only the owner, per-condition
// ECs (AOTE IN_TRANS etc.) wake all. The policy is recorded on the EC1
// but Advance does not consult it: every Advance wakes every blocked
// waiter, whatever the policy.
type WakePolicy int

const (
	WakeAll WakePolicy = iota
	WakeOwner
)

// EC1 is the kernel-resident event count: a monotonic counter plus a
// generation channel that is closed and replaced on every Advance.
// Waiters read the current generation channel under the lock, release
// the lock, then select on it — closing a channel wakes every
// goroutine blocked on it, giving WaitN a way to block on several ECs
// at once without an intrusive per-EC waiter list, which is how the
// original PCB-based implementation did it.
type EC1 struct {
	mu     sync.Mutex
	value  uint32
	gen    chan struct{}
	policy WakePolicy
}

// NewEC1 creates an event count with value 0, per spec §3's INIT.
func NewEC1(policy WakePolicy) *EC1 {
	return &EC1{policy: policy, gen: make(chan struct{})}
}

// Value returns the current counter value.
func (ec *EC1) Value() uint32 {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.value
}

// Advance atomically increments value, then wakes every blocked waiter
// (the policy is not consulted); each waiter re-checks its own target.
// Matches spec §4.2/§8: the post-call value is strictly greater than
// the pre-call value.
func (ec *EC1) Advance() uint32 {
	ec.mu.Lock()
	ec.value++
	v := ec.value
	old := ec.gen
	ec.gen = make(chan struct{})
	ec.mu.Unlock()
	close(old)
	return v
}

// AdvanceWithoutDispatch is Advance's interrupt-context twin: on a
// single-CPU kernel it differs by never yielding the caller's timeslice.
// There is no separate scheduler tick to suppress here, so it is
// functionally identical to Advance; kept as a distinct method so
// callers (e.g. internal/ktimer's interrupt-context scan) document
// their intent the same way the original source does.
func (ec *EC1) AdvanceWithoutDispatch() uint32 {
	return ec.Advance()
}

// snapshot returns the current value and generation channel together,
// so a waiter can decide "already satisfied" and "what to select on"
// from one consistent read.
func (ec *EC1) snapshot() (uint32, chan struct{}) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.value, ec.gen
}

// WaitUntil blocks until value >= target or quit advances, mirroring
// PROC1_$EC_WAITN's single-EC case. quit may be nil.
func (ec *EC1) WaitUntil(target uint32, quit *EC1, quitTarget uint32) error {
	_, err := WaitN([]*EC1{ec}, []uint32{target}, quit, quitTarget)
	return err
}
