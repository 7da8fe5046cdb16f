// Package kremote is the remote-file RPC boundary object-cache
// operations cross when an AOTE's object lives on another node: a
// narrow interface plus an in-memory fake for tests, in the shape of
// the teacher's internal/interfaces.Backend split between the real
// ublk driver and its in-memory test backend.
package kremote

import (
	"sync"

	"github.com/dmkernel/domainkernel/internal/kerrors"
	"github.com/dmkernel/domainkernel/internal/kwire"
)

// Client is what AST_$TRUNCATE/INVALIDATE/RESERVE/GET_ATTRIBUTES
// forward to once an AOTE is known to be remote (rem_file.c's RPC
// surface, as called from ast/{truncate,invalidate,reserve,
// get_attributes}.c).
type Client interface {
	Truncate(volUID, uid kwire.UID, newSize uint32, flags uint16) (result uint8, err error)
	Invalidate(volUID, uid kwire.UID, startPage, count uint32, wait bool) error
	Reserve(volUID, uid kwire.UID, startByte, byteCount uint32) error
	GetAttributes(volUID, uid kwire.UID) (kwire.AOTEAttributes, error)

	// WritePage sends one dirty page to the remote node, standing in
	// for the original's unnamed rem_file page-write call (distinct
	// from the four named boundary RPCs above): the remote purifier's
	// one-page-at-a-time write path.
	WritePage(volUID, uid kwire.UID, page []byte) error
}

// ErrNotFound is returned by Fake when no attributes were ever
// recorded for a UID, standing in for status_$file_object_not_found.
var ErrNotFound = kerrors.New("REM_FILE", kerrors.ASTObjectNotFound, "remote object not found")

// Fake is an in-memory Client for tests and for diskless development
// boots: it just remembers whatever Seed and Truncate set.
type Fake struct {
	mu    sync.Mutex
	attrs map[kwire.UID]kwire.AOTEAttributes
}

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{attrs: make(map[kwire.UID]kwire.AOTEAttributes)}
}

// Seed preloads attrs for uid, as if the remote server already held
// that object.
func (f *Fake) Seed(uid kwire.UID, attrs kwire.AOTEAttributes) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attrs[uid] = attrs
}

func (f *Fake) GetAttributes(_ kwire.UID, uid kwire.UID) (kwire.AOTEAttributes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attrs[uid]
	if !ok {
		return kwire.AOTEAttributes{}, ErrNotFound
	}
	return a, nil
}

func (f *Fake) Truncate(_ kwire.UID, uid kwire.UID, newSize uint32, _ uint16) (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attrs[uid]
	if !ok {
		return 0, ErrNotFound
	}
	a.Size = newSize
	f.attrs[uid] = a
	return 0xFF, nil
}

func (f *Fake) Invalidate(_ kwire.UID, uid kwire.UID, _, _ uint32, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.attrs[uid]; !ok {
		return ErrNotFound
	}
	return nil
}

func (f *Fake) Reserve(_ kwire.UID, uid kwire.UID, _, _ uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.attrs[uid]; !ok {
		return ErrNotFound
	}
	return nil
}

func (f *Fake) WritePage(_ kwire.UID, uid kwire.UID, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.attrs[uid]; !ok {
		return ErrNotFound
	}
	return nil
}
