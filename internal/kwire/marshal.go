// Package kwire marshals the kernel's fixed on-disk/wire records. Spec
// §3 specifies the label-block and object-cache layouts as big-endian,
// matching the 68010's native byte order; the teacher's uapi package
// marshals its ublk structures the same field-by-field way, just in
// host-native little-endian since that's what the ioctl ABI it talks
// to expects. The approach carries over; only the byte order flips.
package kwire

import "encoding/binary"

// TimezoneRecordSize is the 10-byte on-disk layout at label-block
// offset 0xE0: utc_delta(2) + tz_name(4) + last_valid_time(4).
const TimezoneRecordSize = 10

// TimezoneRecord is CAL_$TIMEZONE plus CAL_$LAST_VALID_TIME, the pair
// persisted together to the boot volume label block.
type TimezoneRecord struct {
	UTCDeltaMinutes int16
	TZName          [4]byte
	LastValidTime   uint32
}

// MarshalTimezoneRecord encodes r as the 10-byte big-endian record.
func MarshalTimezoneRecord(r *TimezoneRecord) []byte {
	buf := make([]byte, TimezoneRecordSize)
	binary.BigEndian.PutUint16(buf[0:2], uint16(r.UTCDeltaMinutes))
	copy(buf[2:6], r.TZName[:])
	binary.BigEndian.PutUint32(buf[6:10], r.LastValidTime)
	return buf
}

// UnmarshalTimezoneRecord decodes a 10-byte big-endian record.
func UnmarshalTimezoneRecord(data []byte) *TimezoneRecord {
	r := &TimezoneRecord{}
	r.UTCDeltaMinutes = int16(binary.BigEndian.Uint16(data[0:2]))
	copy(r.TZName[:], data[2:6])
	r.LastValidTime = binary.BigEndian.Uint32(data[6:10])
	return r
}
