package kremote

import (
	"errors"
	"testing"

	"github.com/dmkernel/domainkernel/internal/kwire"
)

func TestFakeGetAttributesNotFound(t *testing.T) {
	f := NewFake()
	uid := kwire.UID{High: 1, Low: 1}

	if _, err := f.GetAttributes(kwire.UID{}, uid); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAttributes() err = %v, want ErrNotFound", err)
	}
}

func TestFakeSeedThenGetAttributes(t *testing.T) {
	f := NewFake()
	uid := kwire.UID{High: 2, Low: 2}
	f.Seed(uid, kwire.AOTEAttributes{Size: 4096})

	got, err := f.GetAttributes(kwire.UID{}, uid)
	if err != nil {
		t.Fatalf("GetAttributes() error = %v", err)
	}
	if got.Size != 4096 {
		t.Errorf("Size = %d, want 4096", got.Size)
	}
}

func TestFakeTruncateUpdatesSize(t *testing.T) {
	f := NewFake()
	uid := kwire.UID{High: 3, Low: 3}
	f.Seed(uid, kwire.AOTEAttributes{Size: 100})

	if _, err := f.Truncate(kwire.UID{}, uid, 50, 0); err != nil {
		t.Fatalf("Truncate() error = %v", err)
	}

	got, _ := f.GetAttributes(kwire.UID{}, uid)
	if got.Size != 50 {
		t.Errorf("Size after Truncate = %d, want 50", got.Size)
	}
}

func TestFakeInvalidateReserveWritePageRequireSeededUID(t *testing.T) {
	f := NewFake()
	unknown := kwire.UID{High: 9, Low: 9}

	if err := f.Invalidate(kwire.UID{}, unknown, 0, 1, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("Invalidate() err = %v, want ErrNotFound", err)
	}
	if err := f.Reserve(kwire.UID{}, unknown, 0, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Reserve() err = %v, want ErrNotFound", err)
	}
	if err := f.WritePage(kwire.UID{}, unknown, []byte{1, 2}); !errors.Is(err, ErrNotFound) {
		t.Errorf("WritePage() err = %v, want ErrNotFound", err)
	}

	f.Seed(unknown, kwire.AOTEAttributes{})
	if err := f.WritePage(kwire.UID{}, unknown, []byte{1, 2}); err != nil {
		t.Errorf("WritePage() on seeded uid error = %v, want nil", err)
	}
}

var _ Client = (*Fake)(nil)
