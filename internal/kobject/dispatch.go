package kobject

import (
	"github.com/dmkernel/domainkernel/internal/kerrors"
	"github.com/dmkernel/domainkernel/internal/ktick"
	"github.com/dmkernel/domainkernel/internal/kwire"
)

// AttrType is a set_attr_dispatch attribute type code. Spec §4.8 lists
// 28 names; several (SET_OWNERx variants, SIZE_AND_DTM variants,
// UPDATE_DTM variants) collapse to the same handler here, the way
// ast/set_attr_dispatch.c's own switch groups SET_OWNER1/2/3 and
// SIZE_AND_DTM/SIZE_AND_DTM2 under shared fallthrough cases.
type AttrType uint16

const (
	AttrReadOnly AttrType = iota
	AttrCopyOnWrite
	AttrDirty
	AttrACLUID
	AttrCreationTime
	AttrModTime
	AttrAddRefcount
	AttrSubRefcount
	AttrSetRefcount
	AttrSize
	AttrDTM
	AttrBlocks
	AttrAccessFlag
	AttrAccessMode
	AttrOwner1UID
	AttrOwner2UID
	AttrOwner3UID
	AttrSetOwner1
	AttrSetOwner2
	AttrSetOwner3
	AttrSetAllOwners
	AttrSetAllExt
	AttrSetModes
	AttrSetLinkCount
	AttrSizeAndDTM
	AttrSpecialFlag
	AttrUpdateDTM
)

// refcountOverflowCeiling is the 0xFFF4 saturation point: ADD_REFCOUNT
// beyond it is silently ignored rather than wrapping.
const refcountOverflowCeiling = 0xFFF4

// defaultAccessMode is the access-mode reset value ACL_UID change
// applies, matching the 0x10 bytes set_attr_dispatch.c writes to
// offsets 0x6c-0x6e.
const defaultAccessMode uint8 = 0x10

// attrTimestampMask names the attribute codes that, on a local object,
// also bump the absolute-clock access timestamp (AST_$ATTR_TIMESTAMP_MASK).
var attrTimestampMask = map[AttrType]bool{
	AttrReadOnly: true, AttrCopyOnWrite: true, AttrDirty: true,
	AttrSize: true, AttrDTM: true, AttrBlocks: true,
	AttrAccessFlag: true, AttrAccessMode: true,
}

// SetAttrDispatch writes value into aote's attribute slot named by
// attrType, matching AST_$SET_ATTR_DISPATCH. now is the current
// absolute clock, used for the attribute-timestamp-mask update and as
// the new modification time after any non-special write other than
// MOD_TIME itself.
//
// After an ACL_UID swap, applyACLUIDChange runs synchronously: it bumps
// the new ACL's refcount and truncates the old ACL object, standing in
// for the AST_$TRUNCATE the original calls once the attribute lock is
// released.
func (c *Cache) SetAttrDispatch(a *AOTE, attrType AttrType, value any, now ktick.Clock) error {
	if a.Special {
		switch attrType {
		case AttrModTime:
			a.ModTime = value.(ktick.Clock)
			return nil
		case AttrBlocks:
			a.Blocks = value.(uint32)
			return nil
		default:
			return kerrors.New("AST_$SET_ATTR_DISPATCH", kerrors.ASTSpecialObjectRestricted, "special objects only accept mod_time/blocks")
		}
	}

	var oldACLUID, newACLUID kwire.UID
	aclChanged := false

	switch attrType {
	case AttrReadOnly:
		a.ReadOnly = value.(bool)
	case AttrCopyOnWrite:
		a.CopyOnWrite = value.(bool)
	case AttrDirty:
		a.Dirty = value.(bool)

	case AttrACLUID:
		newUID := value.(kwire.UID)
		if newUID == a.ACLUID {
			return nil
		}
		oldACLUID, newACLUID = a.ACLUID, newUID
		aclChanged = true
		a.ACLUID = newUID
		a.AccessMode = defaultAccessMode
		a.AccessFlag = 0

	case AttrCreationTime:
		a.CreationTime = value.(ktick.Clock)
	case AttrModTime:
		a.ModTime = value.(ktick.Clock)

	case AttrAddRefcount:
		if a.RefCount > refcountOverflowCeiling {
			return nil
		}
		a.RefCount++
		a.Dirty = true

	case AttrSubRefcount:
		if a.RefCount > refcountOverflowCeiling {
			return nil
		}
		if a.RefCount == 0 || (a.RefCount == 1 && (a.ObjType == 1 || a.ObjType == 2)) {
			return kerrors.New("AST_$SET_ATTR_DISPATCH", kerrors.ASTRefcountUnderflow, "reference count underflow")
		}
		a.RefCount--
		if a.RefCount == 0 {
			a.Dirty = false
			return kerrors.New("AST_$SET_ATTR_DISPATCH", kerrors.ASTRefcountUnderflow, "reference count reached zero")
		}

	case AttrSetRefcount:
		a.RefCount = value.(uint16)

	case AttrSize:
		a.Size = value.(uint32)

	case AttrDTM, AttrSizeAndDTM:
		a.DataTimestamp = value.(ktick.Clock)

	case AttrBlocks:
		newBlocks := value.(uint32)
		if newBlocks == a.Blocks {
			return nil
		}
		a.Blocks = newBlocks

	case AttrAccessFlag:
		a.AccessFlag = value.(uint8)

	case AttrAccessMode:
		a.AccessMode = value.(uint8)

	case AttrOwner1UID, AttrSetOwner1:
		a.Owner1 = value.(kwire.UID)
	case AttrOwner2UID, AttrSetOwner2:
		a.Owner2 = value.(kwire.UID)
	case AttrOwner3UID, AttrSetOwner3:
		a.Owner3 = value.(kwire.UID)
	case AttrSetAllOwners:
		owners := value.([3]kwire.UID)
		a.Owner1, a.Owner2, a.Owner3 = owners[0], owners[1], owners[2]

	case AttrSetLinkCount:
		a.LinkCount = value.(uint16)

	case AttrSetModes, AttrSetAllExt, AttrSpecialFlag, AttrUpdateDTM:
		// Extended attribute variants set_attr_dispatch.c itself left
		// unimplemented; accepted as no-ops for forward compatibility.

	default:
		return kerrors.New("AST_$SET_ATTR_DISPATCH", kerrors.ASTInvalidAttrCode, "invalid attribute type code")
	}

	if attrType != AttrModTime {
		a.ModTime = now
	}
	a.Dirty = true

	if attrTimestampMask[attrType] && !a.Remote {
		a.AccessTime = now
	}

	if aclChanged {
		c.applyACLUIDChange(a, oldACLUID, newACLUID, now)
	}

	return nil
}

// applyACLUIDChange runs the "purify, bump new ACL's refcount, truncate
// old ACL" sequence that follows an ACL_UID write in the original,
// ignoring object_not_found on the truncate side the way
// AST_$SET_ATTR_DISPATCH does.
func (c *Cache) applyACLUIDChange(a *AOTE, oldACLUID, newACLUID kwire.UID, now ktick.Clock) {
	if !newACLUID.IsNil() {
		if acl, ok := c.LookupAOTEByUID(newACLUID); ok {
			_ = c.SetAttrDispatch(acl, AttrAddRefcount, nil, now)
		}
	}
	if !oldACLUID.IsNil() {
		_ = c.Truncate(oldACLUID, 0, TruncateFlagACLRelease)
	}
}
