package kobject

import (
	"github.com/dmkernel/domainkernel/internal/kerrors"
	"github.com/dmkernel/domainkernel/internal/ktick"
	"github.com/dmkernel/domainkernel/internal/kwire"
)

// SetDTS flag bits, matching AST_$SET_DTS's selector mask.
const (
	SetDTSAccessTime   uint16 = 1 << 0
	SetDTSCreationTime uint16 = 1 << 1
	SetDTSDataTimestamp uint16 = 1 << 2
	SetDTSUseCurrent   uint16 = 1 << 3
	SetDTSModTime      uint16 = 1 << 4
)

// SetDTS updates uid's date/time/stamp fields selectively per the bits
// set in flags, matching AST_$SET_DTS. When SetDTSUseCurrent is set,
// now is substituted for every timestamp the other bits select rather
// than relying on caller-supplied values.
func (c *Cache) SetDTS(uid kwire.UID, flags uint16, accessTime, creationTime, dataTimestamp, modTime ktick.Clock, now ktick.Clock) error {
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

	if a.Special {
		return kerrors.New("AST_$SET_DTS", kerrors.ASTIncompatibleRequest, "dts not settable on special objects")
	}

	a.InTrans = true

	useCurrent := flags&SetDTSUseCurrent != 0
	if flags&SetDTSAccessTime != 0 {
		if useCurrent {
			a.AccessTime = now
		} else {
			a.AccessTime = accessTime
		}
	}
	if flags&SetDTSCreationTime != 0 {
		if useCurrent {
			a.CreationTime = now
		} else {
			a.CreationTime = creationTime
		}
	}
	if flags&SetDTSDataTimestamp != 0 {
		if useCurrent {
			a.DataTimestamp = now
		} else {
			a.DataTimestamp = dataTimestamp
		}
	}
	if flags&SetDTSModTime != 0 {
		if useCurrent {
			a.ModTime = now
		} else {
			a.ModTime = modTime
		}
	}

	a.Dirty = true
	c.releaseInTrans(a)
	return nil
}
