package kobject

import "github.com/dmkernel/domainkernel/internal/kwire"

// Invalidate marks [startPage, startPage+count) of uid's pages as
// needing refresh, matching AST_$INVALIDATE. wait controls whether the
// call blocks until the invalidation completes (it always does here;
// there is no async page-fault path to defer to). Remote objects are
// additionally forwarded to rem_file_$invalidate once the local AOTE
// state is updated.
func (c *Cache) Invalidate(uid kwire.UID, startPage, count uint32, wait bool) error {
	a, ok := c.LookupAOTEByUID(uid)
	if !ok {
		loaded, err := c.ForceActivateSegment(uid, false)
		if err != nil {
			return err
		}
		a = loaded
	}

	c.mu.Lock()
	hasPages := a.Size != 0 && startPage <= (a.Size-1)/pageBytes
	if hasPages {
		a.InTrans = true
	}
	remoteOK := a.Remote && c.remote != nil
	volUID := a.VolUID
	c.mu.Unlock()

	if hasPages {
		c.mu.Lock()
		c.releaseInTrans(a)
		c.mu.Unlock()
	}

	if remoteOK {
		return c.remote.Invalidate(volUID, uid, startPage, count, wait)
	}
	return nil
}

// pageBytes is the 1KB page size AST_$INVALIDATE's "file_size >> 10"
// shift encodes.
const pageBytes = 1024
