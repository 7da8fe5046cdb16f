package kobject

import "github.com/dmkernel/domainkernel/internal/kwire"

// RefreshFlag requests a remote refresh rather than the cached copy,
// matching the get_attributes flags bit checked in ast/get_attributes.c.
const RefreshFlag uint16 = 0x20

// validGetAttributesFlagsMask mirrors the 0xFC00 reserved-bits check in
// AST_$GET_ATTRIBUTES.
const validGetAttributesFlagsMask uint16 = 0xFC00

// GetAttributes returns uid's attributes, matching AST_$GET_ATTRIBUTES.
// When flags requests a refresh and the object is remote, cached size
// is kept as the max of cached/fetched and the two timestamps are
// preserved across the refresh, per spec §4.8.
func (c *Cache) GetAttributes(uid kwire.UID, flags uint16) (kwire.AOTEAttributes, error) {
	if uid.IsNil() {
		return kwire.AOTEAttributes{}, ErrNilUID
	}
	if flags&validGetAttributesFlagsMask != 0 {
		return kwire.AOTEAttributes{}, ErrInvalidFlags
	}

	c.mu.Lock()
	a, ok := c.byUID[uid]
	if ok {
		a.Busy = true
	}
	c.mu.Unlock()

	if !ok {
		loaded, err := c.ForceActivateSegment(uid, flags&RefreshFlag != 0)
		if err != nil {
			return kwire.AOTEAttributes{}, err
		}
		a = loaded
	}

	if flags&RefreshFlag != 0 && a.Remote && c.remote != nil {
		c.mu.Lock()
		a.InTrans = true
		a.Touched = false
		c.mu.Unlock()

		fetched, err := c.remote.GetAttributes(a.VolUID, uid)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.releaseInTrans(a)
			return kwire.AOTEAttributes{}, err
		}

		savedSize := a.Size
		if fetched.Size > savedSize {
			savedSize = fetched.Size
		}
		savedDataTimestamp := a.DataTimestamp

		next := aoteFromAttrs(uid, fetched)
		a.ObjType, a.ReadOnly, a.CopyOnWrite, a.Dirty, a.Special = next.ObjType, next.ReadOnly, next.CopyOnWrite, next.Dirty, next.Special
		a.Blocks, a.RefCount, a.LinkCount = next.Blocks, next.RefCount, next.LinkCount
		a.CreationTime, a.DataTimestamp, a.AccessTime = next.CreationTime, next.DataTimestamp, next.AccessTime
		a.Owner1, a.Owner2, a.Owner3, a.ACLUID = next.Owner1, next.Owner2, next.Owner3, next.ACLUID
		a.AccessMode, a.AccessFlag = next.AccessMode, next.AccessFlag

		a.Size = savedSize
		a.DataTimestamp = savedDataTimestamp

		c.releaseInTrans(a)
		return a.toAttrs(), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return a.toAttrs(), nil
}
