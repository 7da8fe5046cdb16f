// Package kmmu implements the inverted-page-table MMU driver (spec
// §4.6): a reverse-mapped table indexed by physical page number, hash
// chained by virtual address, in the style of the 68010/68020 PMMU
// this kernel core was written against.
package kmmu

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/dmkernel/domainkernel/internal/kerrors"
)

// Prot holds the protection bits stored in a PMAPE entry's low nibble.
type Prot uint8

const (
	ProtNone    Prot = 0
	ProtRead    Prot = 1 << 0
	ProtWrite   Prot = 1 << 1
	ProtExecute Prot = 1 << 2
)

// entry is one PMAPE slot: the reverse mapping for a single physical
// page, plus its position in the VA hash chain.
type entry struct {
	valid      bool
	va         uint32
	asid       uint8
	prot       Prot
	global     bool
	referenced bool
	modified   bool
	next       uint32 // next PPN in this VA's hash chain, 0 = end
}

// MMU is the inverted page table. pmape is indexed by physical page
// number (PPN); ptt maps a PTT index (derived from VA) to the PPN at
// the head of its hash chain, mirroring the hardware's PTT_BASE table.
type MMU struct {
	mu sync.Mutex

	m68020   bool
	pttShift uint8
	sysrev   uint8

	lowPPN, highPPN uint32
	pmape           []entry
	ptt             map[uint32]uint32

	arena []byte // anonymous-mmap-backed physical page arena
}

// ErrMiss is status_$mmu_miss: the requested physical page number has
// no installed mapping.
var ErrMiss = kerrors.New("MMU_$PTOV", kerrors.MakeStatus(kerrors.SubsystemMMU, 1), "mmu miss")

const pageSize = 1024 // 1KB page, matching spec §4.6's VA increment

// New builds an MMU with lowPPN..highPPN as the pageable PPN range.
// The physical arena is backed by an anonymous mmap of one pageSize
// page per PPN slot, standing in for the real PMMU's physical RAM the
// way the teacher's queue package backs its descriptor rings with
// mmap rather than a plain Go slice.
func New(lowPPN, highPPN uint32, m68020 bool) (*MMU, error) {
	count := highPPN - lowPPN + 1
	arena, err := unix.Mmap(-1, 0, int(count)*pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, kerrors.Wrap("MMU_$INIT", kerrors.MakeStatus(kerrors.SubsystemMMU, 2), err)
	}
	return &MMU{
		m68020:  m68020,
		lowPPN:  lowPPN,
		highPPN: highPPN,
		pmape:   make([]entry, count),
		ptt:     make(map[uint32]uint32),
		arena:   arena,
	}, nil
}

// Close releases the physical arena's backing memory.
func (m *MMU) Close() error {
	if m.arena == nil {
		return nil
	}
	err := unix.Munmap(m.arena)
	m.arena = nil
	return err
}

// Page returns the pageSize-byte slice of the physical arena backing
// ppn, for callers that need to read or write page contents directly
// (the purifier and object cache do).
func (m *MMU) Page(ppn uint32) []byte {
	i := ppn - m.lowPPN
	return m.arena[int(i)*pageSize : int(i+1)*pageSize]
}

func (m *MMU) slot(ppn uint32) *entry {
	return &m.pmape[ppn-m.lowPPN]
}

// pttIndex is the VA's hash-chain key: the page number, matching the
// hardware's PTT_BASE indexing by VA with the page offset masked off.
func pttIndex(va uint32) uint32 { return va / pageSize }

// Install creates a shared (global-bit set) mapping from va to ppn
// with the given asid and protection, matching MMU_$INSTALL.
func (m *MMU) Install(ppn, va uint32, asid uint8, prot Prot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installLocked(ppn, va, asid, prot, true)
}

// InstallPrivate is Install but clears the global bit, matching
// MMU_$INSTALL_PRIVATE: the mapping is visible only within asid's
// address space.
func (m *MMU) InstallPrivate(ppn, va uint32, asid uint8, prot Prot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.installLocked(ppn, va, asid, prot, false)
}

// InstallList installs mappings for a contiguous run of physical
// pages starting at va, incrementing va by pageSize per entry,
// matching MMU_$INSTALL_LIST's single-critical-section bulk install.
func (m *MMU) InstallList(ppns []uint32, va uint32, asid uint8, prot Prot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ppn := range ppns {
		if err := m.installLocked(ppn, va, asid, prot, true); err != nil {
			return err
		}
		va += pageSize
	}
	return nil
}

func (m *MMU) installLocked(ppn, va uint32, asid uint8, prot Prot, global bool) error {
	if ppn < m.lowPPN || ppn > m.highPPN {
		return kerrors.New("MMU_$INSTALL", kerrors.MakeStatus(kerrors.SubsystemMMU, 3), "ppn out of pageable range")
	}

	e := m.slot(ppn)
	if e.valid {
		m.removeLocked(ppn)
	}

	idx := pttIndex(va)
	head, hasChain := m.ptt[idx]

	*e = entry{valid: true, va: va, asid: asid, prot: prot, global: global}
	if hasChain {
		e.next = head
	}
	m.ptt[idx] = ppn
	return nil
}

// Remove clears the mapping for ppn, unlinking it from its VA hash
// chain, matching MMU_$REMOVE / mmu_$remove_pmape.
func (m *MMU) Remove(ppn uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(ppn)
}

func (m *MMU) removeLocked(ppn uint32) {
	e := m.slot(ppn)
	if !e.valid {
		return
	}
	idx := pttIndex(e.va)

	head := m.ptt[idx]
	if head == ppn {
		if e.next == 0 {
			delete(m.ptt, idx)
		} else {
			m.ptt[idx] = e.next
		}
	} else {
		prev := m.findPredecessor(idx, ppn)
		if prev != 0 {
			m.slot(prev).next = e.next
		}
	}

	referenced, modified := e.referenced, e.modified
	*e = entry{}
	e.referenced, e.modified = referenced, modified
}

func (m *MMU) findPredecessor(idx, target uint32) uint32 {
	curr := m.ptt[idx]
	for curr != 0 {
		next := m.slot(curr).next
		if next == target {
			return curr
		}
		curr = next
	}
	return 0
}

// RemoveList removes the mappings for every ppn in ppns, matching
// MMU_$REMOVE_LIST.
func (m *MMU) RemoveList(ppns []uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ppn := range ppns {
		m.removeLocked(ppn)
	}
}

// RemoveASID removes every mapping belonging to asid, scanning the
// whole pageable PPN range, matching MMU_$REMOVE_ASID.
func (m *MMU) RemoveASID(asid uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ppn := m.lowPPN; ppn <= m.highPPN; ppn++ {
		if e := m.slot(ppn); e.valid && e.asid == asid {
			m.removeLocked(ppn)
		}
	}
}

// SetProt sets ppn's protection bits and returns the previous value,
// matching MMU_$SET_PROT.
func (m *MMU) SetProt(ppn uint32, prot Prot) (Prot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ppn < m.lowPPN || ppn > m.highPPN {
		return 0, kerrors.New("MMU_$SET_PROT", kerrors.MakeStatus(kerrors.SubsystemMMU, 3), "ppn out of pageable range")
	}
	e := m.slot(ppn)
	old := e.prot
	e.prot = prot
	return old, nil
}

// ClrUsed clears ppn's referenced bit, matching MMU_$CLR_USED. Used by
// the purifier's clock-hand page-replacement scan.
func (m *MMU) ClrUsed(ppn uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ppn >= m.lowPPN && ppn <= m.highPPN {
		m.slot(ppn).referenced = false
	}
}

// SetUsed marks ppn as referenced; the hardware sets this bit on every
// access, which the Go port has no way to trap, so callers touching a
// page through Page() call this explicitly.
func (m *MMU) SetUsed(ppn uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ppn >= m.lowPPN && ppn <= m.highPPN {
		m.slot(ppn).referenced = true
	}
}

// SetModified marks ppn as modified, the PMAPE dirty bit.
func (m *MMU) SetModified(ppn uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ppn >= m.lowPPN && ppn <= m.highPPN {
		m.slot(ppn).modified = true
	}
}

// ClrModified clears ppn's modified bit, matching the purifier's
// "clear MMU modified bit" step once a dirty page has been written out.
func (m *MMU) ClrModified(ppn uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ppn >= m.lowPPN && ppn <= m.highPPN {
		m.slot(ppn).modified = false
	}
}

// Referenced reports ppn's referenced bit.
func (m *MMU) Referenced(ppn uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ppn >= m.lowPPN && ppn <= m.highPPN && m.slot(ppn).referenced
}

// Modified reports ppn's modified bit.
func (m *MMU) Modified(ppn uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ppn >= m.lowPPN && ppn <= m.highPPN && m.slot(ppn).modified
}

// PToV reconstructs the virtual address mapped to ppn, matching
// MMU_$PTOV. Returns ErrMiss if ppn has no installed mapping.
func (m *MMU) PToV(ppn uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ppn < m.lowPPN || ppn > m.highPPN {
		return 0, ErrMiss
	}
	e := m.slot(ppn)
	if !e.valid {
		return 0, ErrMiss
	}
	return e.va, nil
}

// VToP translates a virtual address to its physical page number by
// walking the hash chain for va's PTT index, matching MMU_$VTOP.
func (m *MMU) VToP(va uint32, asid uint8) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := pttIndex(va)
	curr := m.ptt[idx]
	for curr != 0 {
		e := m.slot(curr)
		if e.va == va && (e.global || e.asid == asid) {
			return curr, nil
		}
		curr = e.next
	}
	return 0, ErrMiss
}

// SetSysrev records the hardware MMU revision, matching
// MMU_$SET_SYSREV. There is no real register to read in this port, so
// the caller supplies the value it wants recorded (e.g. from a
// platform-config struct read at boot).
func (m *MMU) SetSysrev(rev uint8) { m.sysrev = rev }

// Sysrev returns the recorded MMU hardware revision.
func (m *MMU) Sysrev() uint8 { return m.sysrev }

// M68020 reports the MMU variant recorded at construction. The flag is
// only recorded: Install stores ASID, VA and protection as separate
// fields of the entry and does not pack them into a 68010 or 68020
// layout.
func (m *MMU) M68020() bool { return m.m68020 }
