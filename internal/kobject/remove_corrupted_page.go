package kobject

import "github.com/dmkernel/domainkernel/internal/kwire"

// PageRemover is the narrow MMU boundary RemoveCorruptedPage crosses:
// query whether a physical page carries unwritten data, and unmap it.
// internal/kmmu.MMU satisfies this.
type PageRemover interface {
	Modified(ppn uint32) bool
	Remove(ppn uint32)
}

// RemoveCorruptedPage handles a hardware-reported bad physical page,
// matching AST_$REMOVE_CORRUPTED_PAGE. If the page hasn't been
// modified it can be safely unmapped and reclaimed (true). Otherwise
// its owner's UID is recorded for the trouble handler and the page is
// left mapped (false) — the original does the same rather than losing
// unwritten data silently.
func (c *Cache) RemoveCorruptedPage(mmu PageRemover, ppn uint32, owner *AOTE) bool {
	if mmu.Modified(ppn) {
		if owner != nil {
			c.clobbered = append(c.clobbered, owner.UID)
		}
		return false
	}
	mmu.Remove(ppn)
	return true
}

// ClobberedUIDs returns the UIDs saved by RemoveCorruptedPage for the
// trouble handler, matching AST_$SAVE_CLOBBERED_UID's accumulation.
func (c *Cache) ClobberedUIDs() []kwire.UID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]kwire.UID, len(c.clobbered))
	copy(out, c.clobbered)
	return out
}
