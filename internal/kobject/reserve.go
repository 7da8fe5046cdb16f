package kobject

import "github.com/dmkernel/domainkernel/internal/kwire"

// Reserve ensures disk space is allocated for [start, start+count) of
// uid, matching AST_$RESERVE. The original walks every ASTE overlapping
// the byte range, allocating disk blocks segment by segment; this port
// tracks reservation at the whole-object level (no ASTE/segment-map
// model exists here) and forwards to the remote client when uid isn't
// local, which is the only branch AST_$RESERVE itself fully implements
// (its local-allocation loop ends in an unfinished bounds check marked
// "TODO: Complete bounds checking logic").
func (c *Cache) Reserve(uid kwire.UID, start, count uint32) error {
	a, ok := c.LookupAOTEByUID(uid)
	if !ok {
		loaded, err := c.ForceActivateSegment(uid, false)
		if err != nil {
			return err
		}
		a = loaded
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if a.Remote && c.remote != nil {
		return c.remote.Reserve(a.VolUID, uid, start, count)
	}

	a.InTrans = true
	end := start + count
	if end > a.Size {
		a.Size = end
	}
	c.releaseInTrans(a)
	return nil
}
