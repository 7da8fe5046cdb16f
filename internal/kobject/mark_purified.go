package kobject

import (
	"github.com/dmkernel/domainkernel/internal/ktick"
	"github.com/dmkernel/domainkernel/internal/kwire"
)

// MarkPurified clears uid's dirty flag and bumps its modification
// timestamps after the purifier writes a page out, matching the AOTE
// timestamp update purifier_l.c/purifier_r.c perform inline once a
// write succeeds and the MMU modified bit has been cleared. Remote
// objects don't get their timestamps touched locally; the remote side
// owns that.
func (c *Cache) MarkPurified(uid kwire.UID, now ktick.Clock) {
	a, ok := c.LookupAOTEByUID(uid)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	a.Dirty = false
	if !a.Remote {
		a.ModTime = now
		a.DataTimestamp = now
		a.AccessTime = now
		a.Touched = true
	}
}
