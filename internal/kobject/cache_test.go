package kobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmkernel/domainkernel/internal/kremote"
	"github.com/dmkernel/domainkernel/internal/ktick"
	"github.com/dmkernel/domainkernel/internal/kwire"
)

func newTestCache(remote kremote.Client) *Cache {
	return NewCache(remote, nil)
}

func putLocal(c *Cache, uid kwire.UID, a *AOTE) {
	a.UID = uid
	c.mu.Lock()
	c.byUID[uid] = a
	c.mu.Unlock()
}

func TestLookupAOTEByUIDMissReturnsFalse(t *testing.T) {
	c := newTestCache(nil)
	_, ok := c.LookupAOTEByUID(kwire.UID{High: 1, Low: 2})
	assert.False(t, ok)
}

func TestForceActivateSegmentRejectsNilUID(t *testing.T) {
	c := newTestCache(nil)
	_, err := c.ForceActivateSegment(kwire.NilUID, true)
	require.ErrorIs(t, err, ErrNilUID)
}

func TestForceActivateSegmentReturnsCachedEntry(t *testing.T) {
	c := newTestCache(nil)
	uid := kwire.UID{High: 1, Low: 1}
	putLocal(c, uid, &AOTE{Size: 42})

	a, err := c.ForceActivateSegment(uid, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), a.Size)
	assert.True(t, a.Busy)
}

func TestForceActivateSegmentFetchesFromRemoteWhenForced(t *testing.T) {
	remote := kremote.NewFake()
	uid := kwire.UID{High: 2, Low: 2}
	remote.Seed(uid, kwire.AOTEAttributes{Size: 7, ObjType: 3})

	c := newTestCache(remote)
	a, err := c.ForceActivateSegment(uid, true)
	require.NoError(t, err)
	assert.EqualValues(t, 7, a.Size)
	assert.True(t, a.Remote)
}

func TestForceActivateSegmentFailsWithoutRemote(t *testing.T) {
	c := newTestCache(nil)
	_, err := c.ForceActivateSegment(kwire.UID{High: 9, Low: 9}, true)
	assert.Error(t, err)
}

func TestGetAttributesRejectsNilUID(t *testing.T) {
	c := newTestCache(nil)
	_, err := c.GetAttributes(kwire.NilUID, 0)
	require.ErrorIs(t, err, ErrNilUID)
}

func TestGetAttributesRejectsReservedFlagBits(t *testing.T) {
	c := newTestCache(nil)
	uid := kwire.UID{High: 1, Low: 1}
	putLocal(c, uid, &AOTE{})

	_, err := c.GetAttributes(uid, validGetAttributesFlagsMask)
	require.ErrorIs(t, err, ErrInvalidFlags)
}

func TestGetAttributesReturnsCachedAttributesWithoutRefresh(t *testing.T) {
	c := newTestCache(nil)
	uid := kwire.UID{High: 1, Low: 1}
	putLocal(c, uid, &AOTE{Size: 100, RefCount: 3})

	attrs, err := c.GetAttributes(uid, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 100, attrs.Size)
	assert.EqualValues(t, 3, attrs.RefCount)
}

func TestGetAttributesRefreshKeepsMaxSizeAndPreservesModTime(t *testing.T) {
	remote := kremote.NewFake()
	uid := kwire.UID{High: 4, Low: 4}
	remote.Seed(uid, kwire.AOTEAttributes{Size: 50})

	c := newTestCache(remote)
	localModTime := ktick.Clock{High: 1, Low: 1}
	putLocal(c, uid, &AOTE{Size: 200, Remote: true, ModTime: localModTime, VolUID: uid})

	attrs, err := c.GetAttributes(uid, RefreshFlag)
	require.NoError(t, err)
	assert.EqualValues(t, 200, attrs.Size, "cached size larger than fetched must win")
	assert.Equal(t, localModTime, attrs.ModTime)
}

func TestSetAttrDispatchRestrictsSpecialObjectsToModTimeAndBlocks(t *testing.T) {
	c := newTestCache(nil)
	a := &AOTE{Special: true}
	now := ktick.Clock{High: 9}

	err := c.SetAttrDispatch(a, AttrReadOnly, true, now)
	assert.Error(t, err)

	err = c.SetAttrDispatch(a, AttrBlocks, uint32(5), now)
	require.NoError(t, err)
	assert.EqualValues(t, 5, a.Blocks)
}

func TestSetAttrDispatchAddRefcountSaturatesAtCeiling(t *testing.T) {
	c := newTestCache(nil)
	a := &AOTE{RefCount: refcountOverflowCeiling + 1}
	err := c.SetAttrDispatch(a, AttrAddRefcount, nil, ktick.Clock{})
	require.NoError(t, err)
	assert.EqualValues(t, refcountOverflowCeiling+1, a.RefCount, "saturated refcount must not increment further")
}

func TestSetAttrDispatchSubRefcountUnderflowsOnZero(t *testing.T) {
	c := newTestCache(nil)
	a := &AOTE{RefCount: 0}
	err := c.SetAttrDispatch(a, AttrSubRefcount, nil, ktick.Clock{})
	assert.Error(t, err)
}

func TestSetAttrDispatchSubRefcountRejectsLastLinkOnLinkType(t *testing.T) {
	c := newTestCache(nil)
	a := &AOTE{RefCount: 1, ObjType: 1}
	err := c.SetAttrDispatch(a, AttrSubRefcount, nil, ktick.Clock{})
	assert.Error(t, err)
}

func TestSetAttrDispatchACLUIDSwapReleasesOldAndBumpsNew(t *testing.T) {
	remote := kremote.NewFake()
	c := newTestCache(remote)

	oldACL := kwire.UID{High: 10, Low: 1}
	newACL := kwire.UID{High: 10, Low: 2}

	putLocal(c, oldACL, &AOTE{RefCount: 1})
	newACLEntry := &AOTE{RefCount: 5}
	putLocal(c, newACL, newACLEntry)

	a := &AOTE{ACLUID: oldACL}
	now := ktick.Clock{High: 1}

	err := c.SetAttrDispatch(a, AttrACLUID, newACL, now)
	require.NoError(t, err)

	assert.Equal(t, newACL, a.ACLUID)
	assert.EqualValues(t, defaultAccessMode, a.AccessMode)
	assert.EqualValues(t, 6, newACLEntry.RefCount, "new ACL refcount bumped once")

	oldEntry, ok := c.LookupAOTEByUID(oldACL)
	require.True(t, ok)
	assert.EqualValues(t, 0, oldEntry.Size, "old ACL truncated to zero on release")
}

func TestSetAttrDispatchBumpsAccessTimeOnlyForMaskedLocalAttrs(t *testing.T) {
	c := newTestCache(nil)
	a := &AOTE{CreationTime: ktick.Clock{High: 1}, AccessTime: ktick.Clock{High: 1}}
	now := ktick.Clock{High: 99}

	err := c.SetAttrDispatch(a, AttrSize, uint32(10), now)
	require.NoError(t, err)
	assert.Equal(t, now, a.AccessTime)
	assert.Equal(t, ktick.Clock{High: 1}, a.CreationTime, "creation time is immutable outside AttrCreationTime")

	a2 := &AOTE{CreationTime: ktick.Clock{High: 1}, AccessTime: ktick.Clock{High: 1}}
	err = c.SetAttrDispatch(a2, AttrSetLinkCount, uint16(3), now)
	require.NoError(t, err)
	assert.Equal(t, ktick.Clock{High: 1}, a2.AccessTime, "unmasked attribute must not bump access time")
}

func TestSetAttrDispatchRejectsInvalidCode(t *testing.T) {
	c := newTestCache(nil)
	a := &AOTE{}
	err := c.SetAttrDispatch(a, AttrType(9999), nil, ktick.Clock{})
	assert.Error(t, err)
}

func TestTruncateToZeroFlagForcesSizeRegardlessOfArgument(t *testing.T) {
	c := newTestCache(nil)
	uid := kwire.UID{High: 1, Low: 1}
	putLocal(c, uid, &AOTE{Size: 500})

	err := c.Truncate(uid, 999, TruncateFlagToZero)
	require.NoError(t, err)

	a, _ := c.LookupAOTEByUID(uid)
	assert.EqualValues(t, 0, a.Size)
	assert.True(t, a.Dirty)
}

func TestTruncateACLReleaseIgnoresMissingObject(t *testing.T) {
	c := newTestCache(nil)
	err := c.Truncate(kwire.UID{High: 77, Low: 77}, 0, TruncateFlagACLRelease)
	assert.NoError(t, err)
}

func TestTruncateForwardsToRemoteForRemoteObjects(t *testing.T) {
	remote := kremote.NewFake()
	uid := kwire.UID{High: 3, Low: 3}
	remote.Seed(uid, kwire.AOTEAttributes{Size: 10})

	c := newTestCache(remote)
	putLocal(c, uid, &AOTE{Size: 10, Remote: true, VolUID: uid})

	err := c.Truncate(uid, 20, TruncateFlagExtend)
	require.NoError(t, err)

	attrs, err := remote.GetAttributes(uid, uid)
	require.NoError(t, err)
	assert.EqualValues(t, 20, attrs.Size)
}

func TestReserveExtendsSizeWhenRangeExceedsCurrent(t *testing.T) {
	c := newTestCache(nil)
	uid := kwire.UID{High: 1, Low: 1}
	putLocal(c, uid, &AOTE{Size: 100})

	err := c.Reserve(uid, 50, 100)
	require.NoError(t, err)

	a, _ := c.LookupAOTEByUID(uid)
	assert.EqualValues(t, 150, a.Size)
}

func TestReserveLeavesSizeUnchangedWhenWithinRange(t *testing.T) {
	c := newTestCache(nil)
	uid := kwire.UID{High: 1, Low: 1}
	putLocal(c, uid, &AOTE{Size: 1000})

	err := c.Reserve(uid, 0, 10)
	require.NoError(t, err)

	a, _ := c.LookupAOTEByUID(uid)
	assert.EqualValues(t, 1000, a.Size)
}

func TestInvalidateForwardsToRemoteWhenPagesExistAndObjectIsRemote(t *testing.T) {
	remote := kremote.NewFake()
	uid := kwire.UID{High: 5, Low: 5}
	remote.Seed(uid, kwire.AOTEAttributes{Size: 4096})

	c := newTestCache(remote)
	putLocal(c, uid, &AOTE{Size: 4096, Remote: true, VolUID: uid})

	err := c.Invalidate(uid, 0, 1, true)
	assert.NoError(t, err)
}

func TestInvalidateSkipsTransitionBracketWhenObjectIsEmpty(t *testing.T) {
	c := newTestCache(nil)
	uid := kwire.UID{High: 6, Low: 6}
	putLocal(c, uid, &AOTE{Size: 0})

	err := c.Invalidate(uid, 0, 1, false)
	assert.NoError(t, err)
}

func TestCondFlushClearsDirtyOnTimestampMismatch(t *testing.T) {
	c := newTestCache(nil)
	uid := kwire.UID{High: 1, Low: 1}
	putLocal(c, uid, &AOTE{Dirty: true, DataTimestamp: ktick.Clock{High: 1}})

	err := c.CondFlush(uid, ktick.Clock{High: 2})
	require.NoError(t, err)

	a, _ := c.LookupAOTEByUID(uid)
	assert.False(t, a.Dirty)
}

func TestCondFlushLeavesDirtyOnTimestampMatch(t *testing.T) {
	c := newTestCache(nil)
	uid := kwire.UID{High: 1, Low: 1}
	putLocal(c, uid, &AOTE{Dirty: true, DataTimestamp: ktick.Clock{High: 1}})

	err := c.CondFlush(uid, ktick.Clock{High: 1})
	require.NoError(t, err)

	a, _ := c.LookupAOTEByUID(uid)
	assert.True(t, a.Dirty)
}

func TestCondFlushIsNoOpOnCacheMiss(t *testing.T) {
	c := newTestCache(nil)
	err := c.CondFlush(kwire.UID{High: 1, Low: 1}, ktick.Clock{})
	assert.NoError(t, err)
}

type fakeRemover struct {
	modified bool
	removed  []uint32
}

func (f *fakeRemover) Modified(ppn uint32) bool { return f.modified }
func (f *fakeRemover) Remove(ppn uint32)        { f.removed = append(f.removed, ppn) }

func TestRemoveCorruptedPageUnmapsWhenNotModified(t *testing.T) {
	c := newTestCache(nil)
	mmu := &fakeRemover{modified: false}

	ok := c.RemoveCorruptedPage(mmu, 42, nil)
	assert.True(t, ok)
	assert.Equal(t, []uint32{42}, mmu.removed)
}

func TestRemoveCorruptedPageSavesUIDWhenModified(t *testing.T) {
	c := newTestCache(nil)
	mmu := &fakeRemover{modified: true}
	uid := kwire.UID{High: 1, Low: 1}

	ok := c.RemoveCorruptedPage(mmu, 42, &AOTE{UID: uid})
	assert.False(t, ok)
	assert.Empty(t, mmu.removed)
	assert.Equal(t, []kwire.UID{uid}, c.ClobberedUIDs())
}

func TestSetDTSUsesCurrentTimeWhenFlagSet(t *testing.T) {
	c := newTestCache(nil)
	uid := kwire.UID{High: 1, Low: 1}
	putLocal(c, uid, &AOTE{})

	now := ktick.Clock{High: 50}
	err := c.SetDTS(uid, SetDTSAccessTime|SetDTSUseCurrent, ktick.Clock{High: 1}, ktick.Clock{}, ktick.Clock{}, ktick.Clock{}, now)
	require.NoError(t, err)

	a, _ := c.LookupAOTEByUID(uid)
	assert.Equal(t, now, a.AccessTime)
}

func TestSetDTSUsesSuppliedValueWithoutCurrentFlag(t *testing.T) {
	c := newTestCache(nil)
	uid := kwire.UID{High: 1, Low: 1}
	putLocal(c, uid, &AOTE{})

	supplied := ktick.Clock{High: 7}
	err := c.SetDTS(uid, SetDTSCreationTime, ktick.Clock{}, supplied, ktick.Clock{}, ktick.Clock{}, ktick.Clock{High: 50})
	require.NoError(t, err)

	a, _ := c.LookupAOTEByUID(uid)
	assert.Equal(t, supplied, a.CreationTime)
}

func TestMarkPurifiedClearsDirtyAndBumpsTimestampsForLocalObject(t *testing.T) {
	c := newTestCache(nil)
	uid := kwire.UID{High: 1, Low: 1}
	putLocal(c, uid, &AOTE{Dirty: true})

	now := ktick.Clock{High: 42}
	c.MarkPurified(uid, now)

	a, _ := c.LookupAOTEByUID(uid)
	assert.False(t, a.Dirty)
	assert.Equal(t, now, a.ModTime)
	assert.Equal(t, now, a.DataTimestamp)
	assert.True(t, a.Touched)
}

func TestMarkPurifiedLeavesTimestampsForRemoteObject(t *testing.T) {
	c := newTestCache(nil)
	uid := kwire.UID{High: 1, Low: 1}
	staleTime := ktick.Clock{High: 1}
	putLocal(c, uid, &AOTE{Dirty: true, Remote: true, ModTime: staleTime})

	c.MarkPurified(uid, ktick.Clock{High: 99})

	a, _ := c.LookupAOTEByUID(uid)
	assert.False(t, a.Dirty)
	assert.Equal(t, staleTime, a.ModTime)
}

func TestMarkPurifiedIsNoOpOnCacheMiss(t *testing.T) {
	c := newTestCache(nil)
	c.MarkPurified(kwire.UID{High: 5, Low: 5}, ktick.Clock{})
}

func TestSetDTSRejectsSpecialObjects(t *testing.T) {
	c := newTestCache(nil)
	uid := kwire.UID{High: 1, Low: 1}
	putLocal(c, uid, &AOTE{Special: true})

	err := c.SetDTS(uid, SetDTSAccessTime, ktick.Clock{}, ktick.Clock{}, ktick.Clock{}, ktick.Clock{}, ktick.Clock{})
	assert.Error(t, err)
}
