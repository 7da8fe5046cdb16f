// Package kpage implements working-set tracking and the local/remote
// page purifier daemons (spec §4.7): background processes that keep
// the pageable-page free list above threshold by writing dirty pages
// out, aging idle working sets under memory pressure.
package kpage

import (
	"sync"

	"github.com/dmkernel/domainkernel/internal/ktick"
)

// WorkingSet is one process's working-set list entry: how many pages
// it currently holds, when it was last scanned, and the high-water
// mark MMAP_$WSL_HI_MARK records for iteration bounds.
type WorkingSet struct {
	Slot       int
	HiMark     uint16
	PageCount  uint32
	LastScan   ktick.Clock
	touchedAt  ktick.Clock
	Idle       bool
}

// Table tracks every live working set plus the scan-interval tuning
// parameters the local purifier adjusts over time.
type Table struct {
	mu sync.Mutex

	sets []*WorkingSet
	rng  uint32 // PRNG state, seeded like the original's DAT_00e254e2

	WSInterval    uint32
	MinWSInterval uint32
	MaxWSInterval uint32
	WSScanDelta   uint32
	IdleInterval  uint32
}

// NewTable builds an empty working-set table with the scan-interval
// defaults pmap_internal.h documents.
func NewTable() *Table {
	return &Table{
		rng:           1,
		WSInterval:    100,
		MinWSInterval: 10,
		MaxWSInterval: 1000,
		WSScanDelta:   10,
		IdleInterval:  3600,
	}
}

// Add registers a new working set at slot, matching process creation
// extending MMAP_$WSL_HI_MARK.
func (t *Table) Add(slot int, hiMark uint16) *WorkingSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	ws := &WorkingSet{Slot: slot, HiMark: hiMark}
	t.sets = append(t.sets, ws)
	return ws
}

// next advances the original's linear congruential generator:
// DAT = (DAT * 0x3039) & 0x3FF. Kept as the same constants rather than
// math/rand so working-set selection stays reproducible across runs
// with the same seed.
func (t *Table) next() uint32 {
	t.rng = (t.rng * 0x3039) & 0x3FF
	return t.rng
}

// candidates returns sets eligible for this scan pass: any whose page
// count exceeds its high mark, or every set when totalPages is zero
// (critically low — scan regardless of individual headroom). Sets
// holding no pages are never included.
func (t *Table) candidates(totalPages uint32) []*WorkingSet {
	var out []*WorkingSet
	for _, ws := range t.sets {
		if ws.PageCount == 0 {
			continue
		}
		if uint32(ws.HiMark) < ws.PageCount || totalPages == 0 {
			out = append(out, ws)
		}
	}
	return out
}

// Overdue reports whether ws hasn't been scanned within the current
// WSInterval, matching the "overdue for scan" branch that jumps
// straight to a scan instead of waiting for its turn in the weighted pick.
func (t *Table) Overdue(ws *WorkingSet, now ktick.Clock) bool {
	elapsed := ktick.Sub48(now, ws.LastScan)
	return elapsed.High != 0 || uint32(elapsed.Low) > t.WSInterval
}

// Stale reports whether ws has gone untouched longer than IdleInterval
// and should be purged rather than rescanned.
func (t *Table) Stale(ws *WorkingSet, now ktick.Clock) bool {
	elapsed := ktick.Sub48(now, ws.touchedAt)
	return elapsed.High != 0 || uint32(elapsed.Low) > t.IdleInterval
}

// Purge drops slot's working set entirely, matching MMAP_$PURGE.
func (t *Table) Purge(slot int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, ws := range t.sets {
		if ws.Slot == slot {
			t.sets = append(t.sets[:i], t.sets[i+1:]...)
			return
		}
	}
}

// Touch records that slot had activity at now, resetting its idle clock.
func (t *Table) Touch(slot int, now ktick.Clock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ws := range t.sets {
		if ws.Slot == slot {
			ws.touchedAt = now
			return
		}
	}
}

// SelectForScan finds a working set to rescan this pass, matching
// PMAP_$PURIFIER_L's working-set-aging loop: an overdue set is
// returned immediately, an idle one is flagged for purge, otherwise a
// weighted-random candidate (weighted by page count) is picked.
func (t *Table) SelectForScan(totalPages uint32, now ktick.Clock) (ws *WorkingSet, purge bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	candidates := t.candidates(totalPages)
	for _, c := range candidates {
		if t.Overdue(c, now) {
			return c, false
		}
		if t.Stale(c, now) {
			return c, true
		}
	}

	var slotPages uint32
	for _, c := range candidates {
		slotPages += c.PageCount
	}
	if slotPages == 0 {
		return nil, false
	}

	target := (slotPages * t.next()) >> 10
	var accumulator uint32
	for _, c := range candidates {
		accumulator += c.PageCount
		if accumulator > target {
			return c, false
		}
	}
	return nil, false
}
