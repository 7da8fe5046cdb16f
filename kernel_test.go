package domainkernel

import (
	"context"
	"testing"

	"github.com/dmkernel/domainkernel/internal/kconfig"
	"github.com/dmkernel/domainkernel/internal/kdisk"
	"github.com/dmkernel/domainkernel/internal/kremote"
	"github.com/dmkernel/domainkernel/internal/kwire"
)

func testConfig() kconfig.Config {
	cfg := DefaultConfig()
	cfg.LowPPN = 1
	cfg.HighPPN = 64
	cfg.PageableLimit = 64
	return cfg
}

func TestBootWiresEverySubsystem(t *testing.T) {
	k, err := Boot(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	defer k.Shutdown()

	if k.Locks == nil || k.Scheduler == nil || k.Clock == nil || k.Calendar == nil ||
		k.MMU == nil || k.Objects == nil || k.Disk == nil || k.Remote == nil || k.WorkingSets == nil {
		t.Fatal("Boot() left a subsystem nil")
	}
}

func TestBootUsesProvidedRingAndRemote(t *testing.T) {
	ring := kdisk.NewStubRing()
	remote := kremote.NewFake()
	k, err := Boot(context.Background(), testConfig(), &Options{Ring: ring, Remote: remote})
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	defer k.Shutdown()

	if k.Remote != remote {
		t.Error("Boot() did not use the provided remote client")
	}
}

func TestShutdownStopsBackgroundDaemonsAndClosesMMU(t *testing.T) {
	k, err := Boot(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}

	if err := k.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	snap := k.Metrics().Snapshot()
	if snap.UptimeNs == 0 {
		t.Error("expected non-zero uptime after Shutdown")
	}
}

func TestMarkPageDirtyQueuesForPurifier(t *testing.T) {
	k, err := Boot(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	defer k.Shutdown()

	uid := kwire.UID{High: 1, Low: 1}
	k.MarkPageDirty(5, uid)

	if !k.MMU.Modified(5) {
		t.Error("expected page 5 marked modified")
	}
}

func TestBindProcessAndDispatch(t *testing.T) {
	k, err := Boot(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	defer k.Shutdown()

	pcb, err := k.BindProcess(1)
	if err != nil {
		t.Fatalf("BindProcess() error = %v", err)
	}
	k.Scheduler.AddReady(pcb)

	got := k.Dispatch()
	if got == nil || got.ID() != 1 {
		t.Fatalf("Dispatch() = %v, want pid 1", got)
	}
}

func TestTickAdvancesClock(t *testing.T) {
	k, err := Boot(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	defer k.Shutdown()

	before := k.Clock.Now()
	k.Tick(100)
	after := k.Clock.Now()

	if after.Low <= before.Low && after.High == before.High {
		t.Errorf("clock did not advance: before=%v after=%v", before, after)
	}
}
