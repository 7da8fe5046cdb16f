package ktimer

import (
	"testing"
	"time"

	"github.com/dmkernel/domainkernel/internal/kec"
)

func TestTimeWaitReturnsWhenECSatisfied(t *testing.T) {
	rtq := NewQueue(0)
	ec := kec.NewEC1(kec.WakeAll)

	done := make(chan error, 1)
	go func() { done <- TimeWait(rtq, ec, 1, tick(1000), nil, 0) }()

	time.Sleep(10 * time.Millisecond)
	ec.Advance()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("TimeWait returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("TimeWait never returned after EC advanced")
	}

	if rtq.Len() != 0 {
		t.Errorf("queue len after satisfied wait = %d, want 0 (timeout entry removed)", rtq.Len())
	}
}

func TestTimeWaitTimesOutWhenRTQFires(t *testing.T) {
	rtq := NewQueue(0)
	ec := kec.NewEC1(kec.WakeAll)

	done := make(chan error, 1)
	go func() { done <- TimeWait(rtq, ec, 1, tick(5), nil, 0) }()

	// Drive the RT queue as a timer daemon would: scan past the deadline.
	time.Sleep(10 * time.Millisecond)
	rtq.Scan(tick(100))

	select {
	case err := <-done:
		if err != ErrTimedOut {
			t.Fatalf("TimeWait error = %v, want ErrTimedOut", err)
		}
	case <-time.After(time.Second):
		t.Fatal("TimeWait never returned after deadline scan")
	}
}

func TestTimeWaitCancelledByQuit(t *testing.T) {
	rtq := NewQueue(0)
	ec := kec.NewEC1(kec.WakeAll)
	quit := kec.NewEC1(kec.WakeOwner)

	done := make(chan error, 1)
	go func() { done <- TimeWait(rtq, ec, 1, tick(1000), quit, 1) }()

	time.Sleep(10 * time.Millisecond)
	quit.Advance()

	select {
	case err := <-done:
		if err != kec.ErrQuit {
			t.Fatalf("TimeWait error = %v, want kec.ErrQuit", err)
		}
	case <-time.After(time.Second):
		t.Fatal("TimeWait never returned after quit fired")
	}

	if rtq.Len() != 0 {
		t.Errorf("queue len after cancelled wait = %d, want 0 (timeout entry removed)", rtq.Len())
	}
}
