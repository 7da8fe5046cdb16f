// Package kobject implements the AOTE/ASTE object cache (spec §4.8):
// UID-addressed attribute storage, the set_attr_dispatch attribute
// table, and the truncate/reserve/invalidate/cond_flush/set_dts family
// of operations layered on top of it.
package kobject

import (
	"sync"

	"github.com/dmkernel/domainkernel/internal/kec"
	"github.com/dmkernel/domainkernel/internal/kerrors"
	"github.com/dmkernel/domainkernel/internal/klog"
	"github.com/dmkernel/domainkernel/internal/kremote"
	"github.com/dmkernel/domainkernel/internal/ktick"
	"github.com/dmkernel/domainkernel/internal/kwire"
)

// AOTE is an Active Object Table Entry: the in-memory handle for one
// object, whether a local file or a remote one cached from another
// node.
type AOTE struct {
	UID kwire.UID

	ObjType    uint8
	ReadOnly   bool
	CopyOnWrite bool
	Dirty      bool
	Special    bool

	Busy    bool
	InTrans bool
	Touched bool

	Size   uint32
	Blocks uint32

	RefCount  uint16
	LinkCount uint16

	CreationTime  ktick.Clock
	ModTime       ktick.Clock
	DataTimestamp ktick.Clock // DTM
	AccessTime    ktick.Clock

	Owner1, Owner2, Owner3 kwire.UID
	ACLUID                 kwire.UID
	AccessMode             uint8
	AccessFlag             uint8

	Remote bool
	VolUID kwire.UID
}

// Cache is the AOTE table: a UID-keyed map guarded by a single lock,
// matching AST_LOCK_ID's coverage of the whole table in the original.
type Cache struct {
	mu      sync.Mutex
	byUID   map[kwire.UID]*AOTE
	inTrans *kec.EC1
	remote  kremote.Client
	log     *klog.Logger

	// clobbered accumulates UIDs saved by RemoveCorruptedPage, awaiting
	// a trouble handler that doesn't exist as a separate subsystem here.
	clobbered []kwire.UID
}

// NewCache builds an empty object cache. remote may be nil on a
// diskless/standalone boot with no remote objects.
func NewCache(remote kremote.Client, log *klog.Logger) *Cache {
	return &Cache{
		byUID:   make(map[kwire.UID]*AOTE),
		inTrans: kec.NewEC1(kec.WakeAll),
		remote:  remote,
		log:     log,
	}
}

// ErrNilUID is status_$ast_nil_uid: operations on the reserved NIL UID
// are always rejected.
var ErrNilUID = kerrors.New("AST", kerrors.ASTNilUID, "uid is nil")

// ErrInvalidFlags is status_$ast_incompatible_request: reserved flag
// bits were set in a get_attributes request.
var ErrInvalidFlags = kerrors.New("AST_$GET_ATTRIBUTES", kerrors.ASTIncompatibleRequest, "incompatible request flags")

// LookupAOTEByUID returns the cached AOTE for uid, matching
// ast_$lookup_aote_by_uid. The boolean is false on a cache miss.
func (c *Cache) LookupAOTEByUID(uid kwire.UID) (*AOTE, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.byUID[uid]
	return a, ok
}

// ForceActivateSegment loads attributes for uid and creates its AOTE
// if not already cached. An uncached object is fetched from the remote
// client only when force is set and a remote client exists; otherwise
// it fails with object_not_found. Matches
// ast_$force_activate_segment's role in get_attributes/set_dts.
func (c *Cache) ForceActivateSegment(uid kwire.UID, force bool) (*AOTE, error) {
	if uid.IsNil() {
		return nil, ErrNilUID
	}

	c.mu.Lock()
	if a, ok := c.byUID[uid]; ok {
		a.Busy = true
		c.mu.Unlock()
		return a, nil
	}
	c.mu.Unlock()

	if c.remote == nil || !force {
		return nil, kerrors.New("AST", kerrors.ASTObjectNotFound, "object not cached and no remote source available")
	}

	attrs, err := c.remote.GetAttributes(uid, uid)
	if err != nil {
		return nil, err
	}

	a := aoteFromAttrs(uid, attrs)
	a.Remote = true
	a.Busy = true

	c.mu.Lock()
	c.byUID[uid] = a
	c.mu.Unlock()
	return a, nil
}

func aoteFromAttrs(uid kwire.UID, attrs kwire.AOTEAttributes) *AOTE {
	return &AOTE{
		UID:           uid,
		ObjType:       attrs.ObjType,
		ReadOnly:      attrs.Flags&kwire.AttrFlagReadOnly != 0,
		CopyOnWrite:   attrs.Flags&kwire.AttrFlagCopyOnWrite != 0,
		Dirty:         attrs.Flags&kwire.AttrFlagDirty != 0,
		Special:       attrs.Flags&kwire.AttrFlagSpecial != 0,
		Size:          attrs.Size,
		Blocks:        attrs.Blocks,
		RefCount:      attrs.RefCount,
		LinkCount:     attrs.LinkCount,
		CreationTime:  attrs.CreationTime,
		ModTime:       attrs.ModTime,
		DataTimestamp: attrs.DataTimestamp,
		AccessTime:    attrs.AccessTime,
		Owner1:        attrs.Owner1,
		Owner2:        attrs.Owner2,
		Owner3:        attrs.Owner3,
		ACLUID:        attrs.ACLUID,
		AccessMode:    attrs.AccessMode,
		AccessFlag:    attrs.AccessFlag,
	}
}

func (a *AOTE) toAttrs() kwire.AOTEAttributes {
	var flags kwire.Prot8
	if a.ReadOnly {
		flags |= kwire.AttrFlagReadOnly
	}
	if a.CopyOnWrite {
		flags |= kwire.AttrFlagCopyOnWrite
	}
	if a.Dirty {
		flags |= kwire.AttrFlagDirty
	}
	if a.Special {
		flags |= kwire.AttrFlagSpecial
	}
	return kwire.AOTEAttributes{
		ObjType:       a.ObjType,
		Flags:         flags,
		AccessMode:    a.AccessMode,
		AccessFlag:    a.AccessFlag,
		Size:          a.Size,
		Blocks:        a.Blocks,
		RefCount:      a.RefCount,
		LinkCount:     a.LinkCount,
		CreationTime:  a.CreationTime,
		ModTime:       a.ModTime,
		DataTimestamp: a.DataTimestamp,
		AccessTime:    a.AccessTime,
		Owner1:        a.Owner1,
		Owner2:        a.Owner2,
		Owner3:        a.Owner3,
		ACLUID:        a.ACLUID,
	}
}

// releaseInTrans clears InTrans and advances the in-transition event
// count, matching the "EC_$ADVANCE(&AST_$AST_IN_TRANS_EC)" that every
// ast/*.c operation performs on exit.
func (c *Cache) releaseInTrans(a *AOTE) {
	a.InTrans = false
	c.inTrans.Advance()
}
