package kpage

import (
	"context"
	"time"

	"github.com/dmkernel/domainkernel/internal/kdisk"
	"github.com/dmkernel/domainkernel/internal/kec"
	"github.com/dmkernel/domainkernel/internal/klog"
	"github.com/dmkernel/domainkernel/internal/kmmu"
	"github.com/dmkernel/domainkernel/internal/kobject"
	"github.com/dmkernel/domainkernel/internal/ktick"
	"github.com/dmkernel/domainkernel/internal/kwire"
)

// DirtyPage names one page waiting to be written out: its physical
// frame and the object that owns it.
type DirtyPage struct {
	PPN uint32
	UID kwire.UID
}

// ImpureSource supplies batches of dirty pages, standing in for the
// segment-map scan MMAP_$GET_IMPURE performs. The local purifier asks
// for up to a batch size; the remote purifier always asks for one.
type ImpureSource interface {
	GetImpure(max int, urgent bool) []DirtyPage
	Avail(ppn uint32)
}

const (
	batchSize            = 16
	criticalThreshold    = 24
	shortWaitDelay       = 50 * time.Millisecond
	lowThreshDivisor     = 50
	midThreshDivisor     = 20
)

// Thresholds derives low_thresh/mid_thresh from the pageable limit,
// matching PMAP_$LOW_THRESH/PMAP_$MID_THRESH's init.
func Thresholds(pageableLimit uint32) (low, mid uint32) {
	return pageableLimit / lowThreshDivisor, pageableLimit / midThreshDivisor
}

// LocalPurifier is PMAP_$PURIFIER_L: batches dirty local pages to the
// disk controller and ages working sets when the free list runs low.
type LocalPurifier struct {
	source ImpureSource
	mmu    *kmmu.MMU
	objs   *kobject.Cache
	disk   *kdisk.Controller
	ws     *Table
	log    *klog.Logger

	wake      *kec.EC1 // PMAP_$L_PURIFIER_EC
	pagesEC   *kec.EC1 // PMAP_$PAGES_EC
	freePages func() uint32
	now       func() ktick.Clock

	lowThresh, midThresh uint32
	carryover            uint32
}

// NewLocalPurifier wires the daemon's collaborators. freePages reports
// the current count of free pageable pages; now returns the current
// absolute clock.
func NewLocalPurifier(source ImpureSource, mmu *kmmu.MMU, objs *kobject.Cache, disk *kdisk.Controller, ws *Table, wake, pagesEC *kec.EC1, freePages func() uint32, now func() ktick.Clock, log *klog.Logger) *LocalPurifier {
	return &LocalPurifier{
		source: source, mmu: mmu, objs: objs, disk: disk, ws: ws, log: log,
		wake: wake, pagesEC: pagesEC, freePages: freePages, now: now,
	}
}

// SetThresholds installs low/mid thresholds, matching the purifier's
// PMAP_$LOW_THRESH/PMAP_$MID_THRESH initialization from the pageable limit.
func (p *LocalPurifier) SetThresholds(pageableLimit uint32) {
	p.lowThresh, p.midThresh = Thresholds(pageableLimit)
}

// Wake signals the purifier, matching EC_$ADVANCE(&PMAP_$L_PURIFIER_EC).
func (p *LocalPurifier) Wake() { p.wake.Advance() }

// sweep runs one impure-page batch, matching the body of
// PMAP_$PURIFIER_L's inner do/while(0). It returns the number of pages
// written.
func (p *LocalPurifier) sweep() int {
	free := p.freePages()
	belowMid := free < p.midThresh
	if !belowMid && p.carryover == 0 {
		return 0
	}

	batch := p.source.GetImpure(batchSize, belowMid)
	if len(batch) == 0 {
		return 0
	}

	now := p.now()
	written := 0
	for _, dp := range batch {
		if err := p.writeOne(dp, now); err != nil {
			if p.log != nil {
				p.log.Warn("local purifier write failed", "ppn", dp.PPN, "error", err)
			}
			continue
		}
		written++
	}

	if written > 0 {
		p.pagesEC.Advance()
	}

	// A full batch means the source still had work queued past what we
	// just drained: carry that debt into the next sweep so it runs
	// again even once free recovers above midThresh. A short batch
	// means we caught up, so any outstanding debt clears.
	if len(batch) == batchSize {
		p.carryover = batchSize
	} else {
		p.carryover = 0
	}
	return written
}

func (p *LocalPurifier) writeOne(dp DirtyPage, now ktick.Clock) error {
	page := p.mmu.Page(dp.PPN)
	if _, err := p.disk.DiskIO(kdisk.WriteCached, 0, dp.PPN, page, kdisk.Header{}); err != nil {
		return err
	}
	p.mmu.ClrModified(dp.PPN)
	p.objs.MarkPurified(dp.UID, now)
	p.source.Avail(dp.PPN)
	return nil
}

// ageWorkingSets scans working sets while the pageable free count
// stays critically low, matching the purifier's "while (total_pages <
// 0x18)" loop: scan overdue lists, purge idle ones, otherwise pick a
// weighted-random candidate, then wait briefly and recount.
func (p *LocalPurifier) ageWorkingSets(ctx context.Context) {
	for p.freePages() < criticalThreshold {
		ws, purge := p.ws.SelectForScan(p.freePages(), p.now())
		if ws == nil {
			return
		}
		if purge {
			p.ws.Purge(ws.Slot)
		} else {
			ws.LastScan = p.now()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(shortWaitDelay):
		}
	}
}

// Run executes the daemon loop until ctx is canceled, in the
// wait-signal/process/age shape of the teacher's Runner.ioLoop.
func (p *LocalPurifier) Run(ctx context.Context) error {
	target := p.wake.Value() + 1
	for {
		if err := waitOrCancel(ctx, p.wake, target); err != nil {
			return err
		}
		target = p.wake.Value() + 1

		p.sweep()
		p.ageWorkingSets(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// waitOrCancel blocks until ec reaches target or ctx is canceled.
func waitOrCancel(ctx context.Context, ec *kec.EC1, target uint32) error {
	done := make(chan error, 1)
	go func() { done <- ec.WaitUntil(target, nil, 0) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
