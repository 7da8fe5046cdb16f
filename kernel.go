// Package domainkernel wires the scheduler, lock lattice, event
// counts, MMU driver, timer queues, object cache, and calendar into a
// single bootable unit, mirroring the teacher's root Device/
// CreateAndServe/StopAndDelete shape.
package domainkernel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmkernel/domainkernel/internal/kcal"
	"github.com/dmkernel/domainkernel/internal/kconfig"
	"github.com/dmkernel/domainkernel/internal/kdisk"
	"github.com/dmkernel/domainkernel/internal/kec"
	"github.com/dmkernel/domainkernel/internal/klock"
	"github.com/dmkernel/domainkernel/internal/klog"
	"github.com/dmkernel/domainkernel/internal/kmmu"
	"github.com/dmkernel/domainkernel/internal/kobject"
	"github.com/dmkernel/domainkernel/internal/kpage"
	"github.com/dmkernel/domainkernel/internal/kremote"
	"github.com/dmkernel/domainkernel/internal/ksched"
	"github.com/dmkernel/domainkernel/internal/ktick"
	"github.com/dmkernel/domainkernel/internal/ktimer"
	"github.com/dmkernel/domainkernel/internal/kwire"
)

// Kernel is the booted, running instance: every subsystem this module
// implements, wired together and ready to drive a workload.
type Kernel struct {
	cfg kconfig.Config
	log *klog.Logger

	Locks     *klock.Table
	Scheduler *ksched.Scheduler
	Clock     *ktimer.VirtualClock
	RTQueue   *ktimer.Queue
	Calendar  *kcal.Calendar
	MMU       *kmmu.MMU
	Objects   *kobject.Cache
	Disk      *kdisk.Controller
	Remote    kremote.Client
	WorkingSets *kpage.Table

	localPurifier  *kpage.LocalPurifier
	remotePurifier *kpage.RemotePurifier

	metrics  *Metrics
	observer Observer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	freePages atomic.Uint32
	dirty     *pageSource
}

// pageSource is the kernel's registry of pages known to be dirty:
// Kernel.MarkPageDirty calls MarkDirty whenever a write lands on a
// mapped page, and the purifier daemons drain it through
// kpage.ImpureSource. Stands in for the segment-map scan
// MMAP_$GET_IMPURE performs in the original, since this port has no
// modeled segment map to scan.
type pageSource struct {
	mu   sync.Mutex
	list []kpage.DirtyPage
}

func newPageSource() *pageSource {
	return &pageSource{}
}

// MarkDirty registers ppn (owned by uid) as needing a purifier pass.
func (s *pageSource) MarkDirty(ppn uint32, uid kwire.UID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append(s.list, kpage.DirtyPage{PPN: ppn, UID: uid})
}

func (s *pageSource) GetImpure(max int, urgent bool) []kpage.DirtyPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.list) == 0 {
		return nil
	}
	n := max
	if n > len(s.list) {
		n = len(s.list)
	}
	out := s.list[:n]
	s.list = s.list[n:]
	return out
}

// Avail is a no-op here: freeing a page back to the pageable pool is
// the MMU driver's concern (Remove/ClrModified), not the page
// source's; it only tracks which pages still await a write.
func (s *pageSource) Avail(ppn uint32) {}

// Options configures Boot beyond Config: a logger, an Observer, a Ring
// for the disk controller, and a remote client. Nil fields fall back
// to sane diskless defaults, matching the teacher's Options struct.
type Options struct {
	Logger   *klog.Logger
	Observer Observer
	Ring     kdisk.Ring
	Remote   kremote.Client
}

// Boot constructs and wires every subsystem from cfg, starting the
// local and remote purifier daemons in the background. Matches
// CreateAndServe's role: by the time Boot returns, the kernel is ready
// to accept work.
func Boot(ctx context.Context, cfg kconfig.Config, options *Options) (*Kernel, error) {
	if options == nil {
		options = &Options{}
	}

	log := options.Logger
	if log == nil {
		log = klog.Default()
	}

	ring := options.Ring
	if ring == nil {
		ring = kdisk.NewStubRing()
	}

	remote := options.Remote
	if remote == nil {
		remote = kremote.NewFake()
	}

	mmu, err := kmmu.New(cfg.LowPPN, cfg.HighPPN, cfg.M68020)
	if err != nil {
		return nil, fmt.Errorf("boot mmu: %w", err)
	}

	var observer Observer = NoOpObserver{}
	metrics := NewMetrics()
	if options.Observer != nil {
		observer = options.Observer
	} else {
		observer = NewMetricsObserver(metrics)
	}

	k := &Kernel{
		cfg:         cfg,
		log:         log,
		Locks:       klock.NewTable(),
		Scheduler:   ksched.NewScheduler(log.Named("ksched")),
		Clock:       ktimer.NewVirtualClock(),
		RTQueue:     ktimer.NewQueue(0),
		MMU:         mmu,
		Objects:     kobject.NewCache(remote, log.Named("kobject")),
		Disk:        kdisk.NewController(ring, log.Named("kdisk")),
		Remote:      remote,
		WorkingSets: kpage.NewTable(),
		metrics:     metrics,
		observer:    observer,
	}
	k.Calendar = kcal.NewCalendar(k.Clock, nil, log.Named("kcal"))
	k.ctx, k.cancel = context.WithCancel(ctx)

	// Sample the scheduler's load averages every 5 simulated seconds.
	k.RTQueue.QEnter(&ktimer.Entry{
		Expire:   ktick.SecToClock(5),
		Interval: ktick.SecToClock(5),
		Repeat:   true,
		Callback: k.Scheduler.SampleLoad,
	})

	wakeLocal := kec.NewEC1(kec.WakeAll)
	wakeRemote := kec.NewEC1(kec.WakeAll)
	pagesEC := kec.NewEC1(kec.WakeAll)

	k.dirty = newPageSource()
	k.localPurifier = kpage.NewLocalPurifier(k.dirty, mmu, k.Objects, k.Disk, k.WorkingSets,
		wakeLocal, pagesEC, k.freePages.Load, k.now, log.Named("kpage.local"))
	k.localPurifier.SetThresholds(cfg.PageableLimit)
	k.remotePurifier = kpage.NewRemotePurifier(k.dirty, mmu, k.Objects, remote,
		wakeRemote, pagesEC, k.freePages.Load, func() uint32 { return cfg.PageableLimit / 20 }, k.now, log.Named("kpage.remote"))

	k.freePages.Store(cfg.PageableLimit)

	k.wg.Add(2)
	go func() { defer k.wg.Done(); k.localPurifier.Run(k.ctx) }()
	go func() { defer k.wg.Done(); k.remotePurifier.Run(k.ctx) }()

	log.Info("kernel booted", "low_ppn", cfg.LowPPN, "high_ppn", cfg.HighPPN, "m68020", cfg.M68020)
	return k, nil
}

func (k *Kernel) now() ktick.Clock { return k.Clock.Now() }

// MarkPageDirty flags ppn (owned by uid) modified in the MMU and
// queues it for the purifier daemons, then wakes the local one —
// the path a write-fault handler drives in the original kernel.
func (k *Kernel) MarkPageDirty(ppn uint32, uid kwire.UID) {
	k.MMU.SetModified(ppn)
	k.dirty.MarkDirty(ppn, uid)
	k.WakeLocalPurifier()
}

// Tick advances the virtual clock by n ticks and scans the real-time
// queue for expired callbacks, matching the timer-interrupt driver's
// per-tick work (TIME_$ABS_CLOCK followed by TIME_$RTEQ's scan).
func (k *Kernel) Tick(n uint32) {
	k.Clock.Advance(n)
	k.RTQueue.Scan(k.Clock.Now())
}

// BindProcess registers pid as a schedulable process, matching
// PROC1_$CREATE_P.
func (k *Kernel) BindProcess(pid int32) (*ksched.PCB, error) {
	return k.Scheduler.Bind(pid)
}

// Dispatch runs one scheduling decision, returning the PCB chosen to
// run next; with an empty ready list it returns the current PCB (nil
// if none has been dispatched yet). Every call is counted in
// Metrics.DispatcherSwitches, whether or not the running PCB changed.
func (k *Kernel) Dispatch() *ksched.PCB {
	p := k.Scheduler.Dispatch()
	k.observer.ObserveDispatch()
	return p
}

// Metrics returns the kernel's live metrics instance.
func (k *Kernel) Metrics() *Metrics { return k.metrics }

// Observer returns the Observer instance recording this kernel's
// activity, whether the caller's own or the default MetricsObserver.
func (k *Kernel) Observer() Observer { return k.observer }

// WakeLocalPurifier signals the local purifier daemon, matching
// EC_$ADVANCE(&PMAP_$L_PURIFIER_EC) from a page-dirtying caller.
func (k *Kernel) WakeLocalPurifier() { k.localPurifier.Wake() }

// WakeRemotePurifier signals the remote purifier daemon.
func (k *Kernel) WakeRemotePurifier() { k.remotePurifier.Wake() }

// Shutdown stops the purifier daemons and releases the MMU's physical
// arena, matching StopAndDelete's teardown order: stop background
// work first, then release resources it might still touch.
func (k *Kernel) Shutdown() error {
	k.cancel()
	k.wg.Wait()
	k.metrics.Stop()
	if err := k.MMU.Close(); err != nil {
		return fmt.Errorf("shutdown mmu: %w", err)
	}
	k.log.Info("kernel shut down")
	return nil
}
