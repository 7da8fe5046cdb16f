package kmmu

import "testing"

func newTestMMU(t *testing.T) *MMU {
	t.Helper()
	m, err := New(10, 20, true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestInstallThenPToVRoundTrips(t *testing.T) {
	m := newTestMMU(t)
	if err := m.Install(12, 0x4000, 3, ProtRead|ProtWrite); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	va, err := m.PToV(12)
	if err != nil {
		t.Fatalf("PToV() error = %v", err)
	}
	if va != 0x4000 {
		t.Errorf("PToV() = %#x, want %#x", va, 0x4000)
	}
}

func TestVToPFindsHeadOfChain(t *testing.T) {
	m := newTestMMU(t)
	if err := m.Install(12, 0x4000, 3, ProtRead); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	ppn, err := m.VToP(0x4000, 3)
	if err != nil {
		t.Fatalf("VToP() error = %v", err)
	}
	if ppn != 12 {
		t.Errorf("VToP() = %d, want 12", ppn)
	}
}

func TestVToPWalksHashChainPastHead(t *testing.T) {
	m := newTestMMU(t)
	if err := m.Install(12, 0x4000, 3, ProtRead); err != nil {
		t.Fatalf("first Install() error = %v", err)
	}
	if err := m.InstallPrivate(13, 0x4000, 5, ProtRead); err != nil {
		t.Fatalf("second Install() error = %v", err)
	}

	ppn, err := m.VToP(0x4000, 5)
	if err != nil {
		t.Fatalf("VToP() error = %v", err)
	}
	if ppn != 13 {
		t.Errorf("VToP() = %d, want 13 (most recently installed head)", ppn)
	}

	ppnOld, err := m.VToP(0x4000, 3)
	if err != nil {
		t.Fatalf("VToP() for older asid error = %v", err)
	}
	if ppnOld != 12 {
		t.Errorf("VToP() for older asid = %d, want 12 (still linked behind the new head)", ppnOld)
	}
}

func TestRemoveUnlinksHeadAndPromotesNext(t *testing.T) {
	m := newTestMMU(t)
	_ = m.Install(12, 0x4000, 3, ProtRead)
	_ = m.Install(13, 0x4000, 5, ProtRead)

	m.Remove(13)

	if _, err := m.PToV(13); err != ErrMiss {
		t.Errorf("PToV(13) after Remove = %v, want ErrMiss", err)
	}
	ppn, err := m.VToP(0x4000, 3)
	if err != nil {
		t.Fatalf("VToP() error = %v", err)
	}
	if ppn != 12 {
		t.Errorf("VToP() after removing head = %d, want 12", ppn)
	}
}

func TestRemoveASIDClearsOnlyMatchingMappings(t *testing.T) {
	m := newTestMMU(t)
	_ = m.Install(12, 0x4000, 3, ProtRead)
	_ = m.Install(14, 0x8000, 3, ProtRead)
	_ = m.Install(16, 0xC000, 7, ProtRead)

	m.RemoveASID(3)

	if _, err := m.PToV(12); err != ErrMiss {
		t.Errorf("PToV(12) = %v, want ErrMiss after RemoveASID(3)", err)
	}
	if _, err := m.PToV(14); err != ErrMiss {
		t.Errorf("PToV(14) = %v, want ErrMiss after RemoveASID(3)", err)
	}
	if va, err := m.PToV(16); err != nil || va != 0xC000 {
		t.Errorf("PToV(16) = (%#x, %v), want (0xC000, nil)", va, err)
	}
}

func TestSetProtReturnsPreviousValue(t *testing.T) {
	m := newTestMMU(t)
	_ = m.Install(12, 0x4000, 3, ProtRead)

	old, err := m.SetProt(12, ProtRead|ProtWrite|ProtExecute)
	if err != nil {
		t.Fatalf("SetProt() error = %v", err)
	}
	if old != ProtRead {
		t.Errorf("SetProt() old = %v, want ProtRead", old)
	}
}

func TestClrUsedClearsReferencedBit(t *testing.T) {
	m := newTestMMU(t)
	_ = m.Install(12, 0x4000, 3, ProtRead)
	m.SetUsed(12)
	if !m.Referenced(12) {
		t.Fatalf("Referenced(12) = false after SetUsed")
	}

	m.ClrUsed(12)
	if m.Referenced(12) {
		t.Errorf("Referenced(12) = true after ClrUsed, want false")
	}
}

func TestInstallOutOfRangePPNFails(t *testing.T) {
	m := newTestMMU(t)
	if err := m.Install(999, 0x4000, 3, ProtRead); err == nil {
		t.Errorf("Install() with out-of-range ppn returned nil error")
	}
}

func TestInstallPrivateReplacesExistingMapping(t *testing.T) {
	m := newTestMMU(t)
	_ = m.Install(12, 0x4000, 3, ProtRead)
	if err := m.InstallPrivate(12, 0x8000, 3, ProtWrite); err != nil {
		t.Fatalf("InstallPrivate() error = %v", err)
	}

	if _, err := m.VToP(0x4000, 3); err != ErrMiss {
		t.Errorf("old VA mapping still present after InstallPrivate re-mapped ppn 12")
	}
	ppn, err := m.VToP(0x8000, 3)
	if err != nil || ppn != 12 {
		t.Errorf("VToP(0x8000) = (%d, %v), want (12, nil)", ppn, err)
	}
}

func TestPageReturnsDistinctBackingSlices(t *testing.T) {
	m := newTestMMU(t)
	a := m.Page(10)
	b := m.Page(11)
	a[0] = 0xAB
	if b[0] == 0xAB {
		t.Errorf("Page(10) and Page(11) alias the same backing memory")
	}
}

func TestClrModifiedClearsModifiedBit(t *testing.T) {
	m := newTestMMU(t)
	m.SetModified(12)
	if !m.Modified(12) {
		t.Fatal("expected Modified(12) true after SetModified")
	}
	m.ClrModified(12)
	if m.Modified(12) {
		t.Error("expected Modified(12) false after ClrModified")
	}
}
