package kpage

import (
	"context"

	"github.com/dmkernel/domainkernel/internal/kec"
	"github.com/dmkernel/domainkernel/internal/klog"
	"github.com/dmkernel/domainkernel/internal/kmmu"
	"github.com/dmkernel/domainkernel/internal/kobject"
	"github.com/dmkernel/domainkernel/internal/kremote"
	"github.com/dmkernel/domainkernel/internal/ktick"
)

// RemotePurifier is PMAP_$PURIFIER_R: writes remote dirty pages one at
// a time through the remote-file RPC rather than batching to local disk.
type RemotePurifier struct {
	source ImpureSource
	mmu    *kmmu.MMU
	objs   *kobject.Cache
	remote kremote.Client
	log    *klog.Logger

	wake    *kec.EC1 // PMAP_$R_PURIFIER_EC
	pagesEC *kec.EC1 // PMAP_$PAGES_EC
	now     func() ktick.Clock

	midThresh func() uint32
	freePages func() uint32
	carryover uint32
}

// NewRemotePurifier wires the remote daemon's collaborators.
func NewRemotePurifier(source ImpureSource, mmu *kmmu.MMU, objs *kobject.Cache, remote kremote.Client, wake, pagesEC *kec.EC1, freePages, midThresh func() uint32, now func() ktick.Clock, log *klog.Logger) *RemotePurifier {
	return &RemotePurifier{
		source: source, mmu: mmu, objs: objs, remote: remote, log: log,
		wake: wake, pagesEC: pagesEC, freePages: freePages, midThresh: midThresh, now: now,
	}
}

// Wake signals the remote purifier, matching
// EC_$ADVANCE(&PMAP_$R_PURIFIER_EC).
func (p *RemotePurifier) Wake() { p.wake.Advance() }

// sweep writes remote dirty pages one at a time while the free list is
// under mid threshold or carryover remains, matching the body of
// PMAP_$PURIFIER_R's while loop.
func (p *RemotePurifier) sweep() int {
	written := 0
	for {
		free := p.freePages()
		belowMid := free < p.midThresh()
		if !belowMid && p.carryover == 0 {
			break
		}

		batch := p.source.GetImpure(1, belowMid)
		if len(batch) == 0 {
			break
		}
		dp := batch[0]

		now := p.now()
		if err := p.writeOne(dp, now); err != nil {
			if p.log != nil {
				p.log.Warn("remote purifier write failed", "ppn", dp.PPN, "error", err)
			}
		} else {
			written++
			p.pagesEC.Advance()
		}

		if p.carryover > 0 {
			p.carryover--
		}
	}
	return written
}

func (p *RemotePurifier) writeOne(dp DirtyPage, now ktick.Clock) error {
	page := p.mmu.Page(dp.PPN)
	if err := p.remote.WritePage(dp.UID, dp.UID, page); err != nil {
		if err == kremote.ErrNotFound {
			// Recoverable: leave the page marked for retry, matching
			// the original's "recoverable error" branch.
			p.source.Avail(dp.PPN)
			return nil
		}
		return err
	}
	p.mmu.ClrModified(dp.PPN)
	p.objs.MarkPurified(dp.UID, now)
	p.source.Avail(dp.PPN)
	return nil
}

// Run executes the remote daemon loop until ctx is canceled.
func (p *RemotePurifier) Run(ctx context.Context) error {
	target := p.wake.Value() + 1
	for {
		if err := waitOrCancel(ctx, p.wake, target); err != nil {
			return err
		}
		target = p.wake.Value() + 1
		p.sweep()
	}
}
