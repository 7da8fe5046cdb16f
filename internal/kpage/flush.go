package kpage

import (
	"github.com/dmkernel/domainkernel/internal/kdisk"
	"github.com/dmkernel/domainkernel/internal/kmmu"
	"github.com/dmkernel/domainkernel/internal/kobject"
	"github.com/dmkernel/domainkernel/internal/ktick"
	"github.com/dmkernel/domainkernel/internal/kwire"
)

// FlushFlags mirrors PMAP_$FLUSH's flags parameter.
type FlushFlags uint16

const (
	FlushRemoveFromMMU FlushFlags = 1 << 0
	FlushSkipWrite     FlushFlags = 1 << 1
	FlushForceSync     FlushFlags = 1 << 2
)

// Flush walks ppns — the pages belonging to one object — writing out
// any the MMU reports modified, clearing their dirty bits, and
// optionally unmapping them. This models PMAP_$FLUSH at the
// object-page level rather than walking a raw segment map, the same
// scope kobject's Truncate/Reserve/Invalidate already settled on in
// the absence of a modeled ASTE/segment-map layer. Returns the count
// of pages actually written.
func Flush(mmu *kmmu.MMU, disk *kdisk.Controller, objs *kobject.Cache, uid kwire.UID, ppns []uint32, flags FlushFlags, now ktick.Clock) (int, error) {
	flushed := 0
	anyDirty := false

	for _, ppn := range ppns {
		if !mmu.Modified(ppn) {
			continue
		}
		anyDirty = true
		mmu.ClrModified(ppn)

		if flags&FlushSkipWrite == 0 {
			page := mmu.Page(ppn)
			if _, err := disk.DiskIO(kdisk.WriteCached, 0, ppn, page, kdisk.Header{}); err != nil {
				return flushed, err
			}
			flushed++
		}

		if flags&FlushRemoveFromMMU != 0 {
			mmu.Remove(ppn)
		}
	}

	if anyDirty {
		objs.MarkPurified(uid, now)
	}
	return flushed, nil
}
