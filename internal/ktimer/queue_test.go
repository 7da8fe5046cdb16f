package ktimer

import (
	"testing"

	"github.com/dmkernel/domainkernel/internal/ktick"
)

func tick(n uint32) ktick.Clock { return ktick.Clock{High: 0, Low: uint16(n)} }

func TestScanFiresExpiredEntriesInOrder(t *testing.T) {
	q := NewQueue(0)
	var fired []int

	q.QEnter(&Entry{Expire: tick(20), Callback: func() { fired = append(fired, 20) }})
	q.QEnter(&Entry{Expire: tick(10), Callback: func() { fired = append(fired, 10) }})
	q.QEnter(&Entry{Expire: tick(30), Callback: func() { fired = append(fired, 30) }})

	q.Scan(tick(25))

	want := []int{10, 20}
	if len(fired) != len(want) {
		t.Fatalf("fired = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Errorf("fired[%d] = %d, want %d", i, fired[i], want[i])
		}
	}
	if q.Len() != 1 {
		t.Errorf("queue len after scan = %d, want 1 (the not-yet-expired entry)", q.Len())
	}
}

func TestQRemoveUnlinksEntry(t *testing.T) {
	q := NewQueue(0)
	fired := false
	e := &Entry{Expire: tick(5), Callback: func() { fired = true }}
	q.QEnter(e)
	q.QRemove(e)

	q.Scan(tick(100))
	if fired {
		t.Error("removed entry fired anyway")
	}
	if q.Len() != 0 {
		t.Errorf("queue len = %d, want 0", q.Len())
	}
}

func TestScanRearmsRepeatingEntry(t *testing.T) {
	q := NewQueue(0)
	count := 0
	e := &Entry{
		Expire:   tick(10),
		Interval: tick(10),
		Repeat:   true,
	}
	e.Callback = func() { count++ }
	q.QEnter(e)

	q.Scan(tick(10))
	if count != 1 {
		t.Fatalf("count after first scan = %d, want 1", count)
	}
	if q.Len() != 1 {
		t.Fatalf("queue len after repeat rearm = %d, want 1", q.Len())
	}

	q.Scan(tick(20))
	if count != 2 {
		t.Errorf("count after second scan = %d, want 2", count)
	}
}
