package kobject

import (
	"github.com/dmkernel/domainkernel/internal/kerrors"
	"github.com/dmkernel/domainkernel/internal/kwire"
)

// Truncate flags, matching AST_$TRUNCATE's bit 0/1.
const (
	TruncateFlagToZero uint16 = 1 << 0
	TruncateFlagExtend uint16 = 1 << 1
	// TruncateFlagACLRelease is the flags value set_attr_dispatch.c
	// passes when truncating a released ACL object (flags=3 in the
	// original: truncate-to-zero plus an internal "ignore not found" bit).
	TruncateFlagACLRelease uint16 = TruncateFlagToZero | TruncateFlagExtend
)

// Truncate resizes uid to newSize, matching AST_$TRUNCATE. Freeing
// pages above the new size and allocating new disk blocks on an
// extend are kpage/kdisk concerns this port models at the size-and-
// dirty-bit level only, the same scope truncate.c itself implements
// (its own page-freeing and extension branches are left as "TODO:
// Implement" comments in the original).
func (c *Cache) Truncate(uid kwire.UID, newSize uint32, flags uint16) error {
	if flags&TruncateFlagToZero != 0 {
		newSize = 0
	}

	a, ok := c.LookupAOTEByUID(uid)
	if !ok {
		loaded, err := c.ForceActivateSegment(uid, false)
		if err != nil {
			if flags == TruncateFlagACLRelease && kerrors.StatusOf(err) == kerrors.ASTObjectNotFound {
				return nil
			}
			return err
		}
		a = loaded
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if a.Remote && c.remote != nil {
		a.InTrans = true
		_, err := c.remote.Truncate(a.VolUID, uid, newSize, flags)
		c.releaseInTrans(a)
		return err
	}

	a.InTrans = true
	a.Size = newSize
	a.Dirty = true
	c.releaseInTrans(a)
	return nil
}
