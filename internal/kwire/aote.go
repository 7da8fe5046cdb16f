package kwire

import (
	"encoding/binary"

	"github.com/dmkernel/domainkernel/internal/ktick"
)

// AOTEAttributesSize is the fixed 144-byte on-disk/wire layout of an
// object's attribute block, matching spec §3's AOTE record.
const AOTEAttributesSize = 144

// Attribute bit flags packed into AOTEAttributes.Flags.
const (
	AttrFlagReadOnly Prot8 = 1 << iota
	AttrFlagCopyOnWrite
	AttrFlagDirty
	AttrFlagSpecial
)

// Prot8 is a small bitset of attribute flags; distinct from kmmu.Prot
// so the two packages don't need to import each other for an 8-bit mask.
type Prot8 uint8

// AOTEAttributes is the object cache's fixed attribute block: size,
// the four timestamps, reference count, owner/ACL UIDs, block count,
// and object type, per spec §4.8's get_attributes/set_attr_dispatch.
type AOTEAttributes struct {
	ObjType    uint8
	Flags      Prot8
	AccessMode uint8
	AccessFlag uint8

	Size   uint32
	Blocks uint32

	RefCount  uint16
	LinkCount uint16

	CreationTime   ktick.Clock
	ModTime        ktick.Clock
	DataTimestamp  ktick.Clock // DTM
	AccessTime     ktick.Clock

	Owner1 UID
	Owner2 UID
	Owner3 UID
	ACLUID UID
}

func putClock(buf []byte, c ktick.Clock) {
	binary.BigEndian.PutUint32(buf[0:4], c.High)
	binary.BigEndian.PutUint16(buf[4:6], c.Low)
}

func getClock(buf []byte) ktick.Clock {
	return ktick.Clock{High: binary.BigEndian.Uint32(buf[0:4]), Low: binary.BigEndian.Uint16(buf[4:6])}
}

func putUID(buf []byte, u UID) {
	binary.BigEndian.PutUint32(buf[0:4], u.High)
	binary.BigEndian.PutUint32(buf[4:8], u.Low)
}

func getUID(buf []byte) UID {
	return UID{High: binary.BigEndian.Uint32(buf[0:4]), Low: binary.BigEndian.Uint32(buf[4:8])}
}

// MarshalAOTEAttributes encodes a into the 144-byte big-endian record.
// Bytes 72..144 are reserved for the extended owner/ACL attribute
// variants set_attr_dispatch.c left unimplemented (its own "TODO:
// Implement extended attribute cases" comment) and are always zeroed.
func MarshalAOTEAttributes(a *AOTEAttributes) []byte {
	buf := make([]byte, AOTEAttributesSize)
	buf[0] = a.ObjType
	buf[1] = byte(a.Flags)
	buf[2] = a.AccessMode
	buf[3] = a.AccessFlag
	binary.BigEndian.PutUint32(buf[4:8], a.Size)
	binary.BigEndian.PutUint32(buf[8:12], a.Blocks)
	binary.BigEndian.PutUint16(buf[12:14], a.RefCount)
	binary.BigEndian.PutUint16(buf[14:16], a.LinkCount)
	putClock(buf[16:22], a.CreationTime)
	putClock(buf[22:28], a.ModTime)
	putClock(buf[28:34], a.DataTimestamp)
	putClock(buf[34:40], a.AccessTime)
	putUID(buf[40:48], a.Owner1)
	putUID(buf[48:56], a.Owner2)
	putUID(buf[56:64], a.Owner3)
	putUID(buf[64:72], a.ACLUID)
	return buf
}

// UnmarshalAOTEAttributes decodes a 144-byte big-endian record.
func UnmarshalAOTEAttributes(data []byte) AOTEAttributes {
	var a AOTEAttributes
	a.ObjType = data[0]
	a.Flags = Prot8(data[1])
	a.AccessMode = data[2]
	a.AccessFlag = data[3]
	a.Size = binary.BigEndian.Uint32(data[4:8])
	a.Blocks = binary.BigEndian.Uint32(data[8:12])
	a.RefCount = binary.BigEndian.Uint16(data[12:14])
	a.LinkCount = binary.BigEndian.Uint16(data[14:16])
	a.CreationTime = getClock(data[16:22])
	a.ModTime = getClock(data[22:28])
	a.DataTimestamp = getClock(data[28:34])
	a.AccessTime = getClock(data[34:40])
	a.Owner1 = getUID(data[40:48])
	a.Owner2 = getUID(data[48:56])
	a.Owner3 = getUID(data[56:64])
	a.ACLUID = getUID(data[64:72])
	return a
}
