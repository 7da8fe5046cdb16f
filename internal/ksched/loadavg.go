package ksched

import "sync"

// EWMA decay constants, spec §4.4: 16-bit fixed-point fractions, one
// per averaging window.
const (
	decay1Min  = 0xEB88
	decay5Min  = 0xFBC5
	decay15Min = 0xFE95
)

// Scale factors converting a ready-list sample into a load contribution.
const (
	scale1Min  = 0x1478
	scale5Min  = 0x043B
	scale15Min = 0x016B
)

// LoadAverages holds the three EWMA samples as 8.24 fixed-point values,
// matching LOADAV_1MIN/5MIN/15MIN.
type LoadAverages struct {
	mu                     sync.Mutex
	oneMin, fiveMin, fifteenMin int32
}

// arithShiftRightRound8 performs the original's ">>8 with +0xff rounding
// for negative values" — a division by 256 that rounds toward zero for
// both positive and negative samples (a bare >>8 would round negative
// values toward -inf).
func arithShiftRightRound8(v int32) int32 {
	if v < 0 {
		v += 0xff
	}
	return v >> 8
}

func ewmaStep(old int32, decay uint32, readyCount int16, scale int32) int32 {
	temp := arithShiftRightRound8(old)
	temp = int32((int64(temp) * int64(decay)) >> 16)
	temp = arithShiftRightRound8(temp)
	return temp + int32(readyCount)*scale
}

// Sample updates all three averages from the current ready-list length,
// matching PROC1_$LOADAV_CALLBACK. Called periodically (every 5
// simulated seconds) by internal/ktimer's RT queue.
func (l *LoadAverages) Sample(readyCount int16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.oneMin = ewmaStep(l.oneMin, decay1Min, readyCount, scale1Min)
	l.fiveMin = ewmaStep(l.fiveMin, decay5Min, readyCount, scale5Min)
	l.fifteenMin = ewmaStep(l.fifteenMin, decay15Min, readyCount, scale15Min)
}

// Get returns the three averages in (1, 5, 15)-minute order.
func (l *LoadAverages) Get() (oneMin, fiveMin, fifteenMin int32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.oneMin, l.fiveMin, l.fifteenMin
}

// ReadyCount returns the number of PCBs currently on the ready list,
// the sample PROC1_$LOADAV_CALLBACK feeds into Sample.
func (s *Scheduler) ReadyCount() int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int16(s.ready.Len())
}
