// Package kconfig carries the kernel's boot-time tunables, mirroring
// the teacher's DeviceParams/DefaultParams pattern.
package kconfig

import "time"

// Config holds every tunable a Kernel needs before Boot: lock-id space
// sizing, MMU page-arena bounds, purifier thresholds, and the RTC poll
// interval the calendar subsystem uses in the absence of real hardware.
type Config struct {
	// NumLocks is the number of resource-lock ids in use; klock.NumLocks
	// is the hard ceiling (32), but a boot config may reserve fewer.
	NumLocks int

	// LowPPN/HighPPN bound the simulated physical-page arena kmmu.New
	// allocates.
	LowPPN  uint32
	HighPPN uint32

	// M68020 names the MMU variant (true: 68020, false: 68010). kmmu
	// records it and reports it back; no packing layout depends on it.
	M68020 bool

	// PageableLimit is the budget kpage.Thresholds derives low/mid
	// purifier thresholds from.
	PageableLimit uint32

	// WorkingSetListCount is the number of working-set slots
	// kpage.Table starts with room for.
	WorkingSetListCount int

	// RTCPollInterval is how often the calendar subsystem's driver
	// loop samples the (simulated) real-time clock chip.
	RTCPollInterval time.Duration

	// VolumePath, when non-empty, is the backing file kdisk's real
	// giouring ring opens; empty means boot diskless with the stub ring.
	VolumePath string

	// BlockSize is the disk controller's block size in bytes.
	BlockSize int
}

// DefaultConfig returns the tunables a diskless development boot uses:
// a modest page arena, default purifier thresholds, and no backing
// volume (the stub ring is selected).
func DefaultConfig() Config {
	return Config{
		NumLocks:            32,
		LowPPN:              1,
		HighPPN:             4096,
		M68020:              true,
		PageableLimit:       4096,
		WorkingSetListCount: 32,
		RTCPollInterval:     time.Second,
		BlockSize:           1024,
	}
}
