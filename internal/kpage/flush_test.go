package kpage

import (
	"testing"

	"github.com/dmkernel/domainkernel/internal/kdisk"
	"github.com/dmkernel/domainkernel/internal/kobject"
	"github.com/dmkernel/domainkernel/internal/kremote"
	"github.com/dmkernel/domainkernel/internal/ktick"
	"github.com/dmkernel/domainkernel/internal/kwire"
)

func newFlushTestObjs(t *testing.T, uid kwire.UID) *kobject.Cache {
	t.Helper()
	remote := kremote.NewFake()
	remote.Seed(uid, kwire.AOTEAttributes{})
	objs := kobject.NewCache(remote, nil)
	if _, err := objs.ForceActivateSegment(uid, true); err != nil {
		t.Fatalf("ForceActivateSegment() error = %v", err)
	}
	return objs
}

func TestFlushWritesOnlyModifiedPagesAndMarksPurified(t *testing.T) {
	mmu := newTestMMU(t)
	mmu.SetModified(11)
	// 12 left clean.
	disk := kdisk.NewController(kdisk.NewStubRing(), nil)
	uid := kwire.UID{High: 9, Low: 1}
	objs := newFlushTestObjs(t, uid)

	flushed, err := Flush(mmu, disk, objs, uid, []uint32{11, 12}, 0, ktick.Clock{High: 3})
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if flushed != 1 {
		t.Fatalf("Flush() flushed = %d, want 1", flushed)
	}
	if mmu.Modified(11) {
		t.Error("expected page 11's modified bit cleared")
	}

	a, ok := objs.LookupAOTEByUID(uid)
	if !ok {
		t.Fatal("expected AOTE still present")
	}
	if a.ModTime != (ktick.Clock{High: 3}) {
		t.Errorf("ModTime = %v, want {High:3}", a.ModTime)
	}
}

func TestFlushSkipWriteClearsDirtyWithoutDiskIO(t *testing.T) {
	mmu := newTestMMU(t)
	mmu.SetModified(11)
	disk := kdisk.NewController(kdisk.NewStubRing(), nil)
	uid := kwire.UID{High: 9, Low: 2}
	objs := newFlushTestObjs(t, uid)

	flushed, err := Flush(mmu, disk, objs, uid, []uint32{11}, FlushSkipWrite, ktick.Clock{})
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if flushed != 0 {
		t.Errorf("flushed = %d, want 0 with FlushSkipWrite", flushed)
	}
	if mmu.Modified(11) {
		t.Error("expected modified bit cleared even with FlushSkipWrite")
	}
}

func TestFlushRemoveFromMMUUnmapsFlushedPages(t *testing.T) {
	mmu := newTestMMU(t)
	mmu.Install(11, 0x1000, 1, 0)
	mmu.SetModified(11)
	disk := kdisk.NewController(kdisk.NewStubRing(), nil)
	uid := kwire.UID{High: 9, Low: 3}
	objs := newFlushTestObjs(t, uid)

	if _, err := Flush(mmu, disk, objs, uid, []uint32{11}, FlushRemoveFromMMU, ktick.Clock{}); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if _, err := mmu.PToV(11); err == nil {
		t.Error("expected page 11 unmapped after FlushRemoveFromMMU")
	}
}

func TestFlushIsNoOpWhenNothingModified(t *testing.T) {
	mmu := newTestMMU(t)
	disk := kdisk.NewController(kdisk.NewStubRing(), nil)
	uid := kwire.UID{High: 9, Low: 4}
	objs := newFlushTestObjs(t, uid)
	before, _ := objs.LookupAOTEByUID(uid)
	beforeMod := before.ModTime

	flushed, err := Flush(mmu, disk, objs, uid, []uint32{11, 12}, 0, ktick.Clock{High: 9})
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if flushed != 0 {
		t.Errorf("flushed = %d, want 0 when nothing is dirty", flushed)
	}

	after, _ := objs.LookupAOTEByUID(uid)
	if after.ModTime != beforeMod {
		t.Error("expected ModTime untouched when nothing was dirty")
	}
}
