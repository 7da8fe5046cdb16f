package domainkernel

import (
	"sync/atomic"
	"time"
)

// Metrics tracks kernel-core activity: lock contention, event-count
// traffic, dispatcher switches, timer fires, purifier throughput, and
// object-cache hit rate. Mirrors the teacher's atomic-counter
// Metrics/MetricsSnapshot/Observer triad, with I/O byte/latency
// counters replaced by the counters this kernel's subsystems actually
// produce.
type Metrics struct {
	LockAcquisitions atomic.Uint64
	LockContentions  atomic.Uint64

	ECAdvances atomic.Uint64
	ECWaits    atomic.Uint64

	DispatcherSwitches atomic.Uint64
	TimerFires         atomic.Uint64

	PurifierPagesWritten  atomic.Uint64
	PurifierErrors        atomic.Uint64

	ObjectCacheHits   atomic.Uint64
	ObjectCacheMisses atomic.Uint64

	BootTime atomic.Int64
	StopTime atomic.Int64
}

// NewMetrics creates a new metrics instance, stamping BootTime now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.BootTime.Store(time.Now().UnixNano())
	return m
}

// RecordLockAcquire counts one lock acquisition, noting whether the
// caller had to wait for it.
func (m *Metrics) RecordLockAcquire(contended bool) {
	m.LockAcquisitions.Add(1)
	if contended {
		m.LockContentions.Add(1)
	}
}

// RecordECAdvance counts one event-count advance.
func (m *Metrics) RecordECAdvance() { m.ECAdvances.Add(1) }

// RecordECWait counts one event-count wait.
func (m *Metrics) RecordECWait() { m.ECWaits.Add(1) }

// RecordDispatch counts one dispatcher decision; Kernel.Dispatch
// records every call, including ones that keep the same PCB running.
func (m *Metrics) RecordDispatch() { m.DispatcherSwitches.Add(1) }

// RecordTimerFire counts one expired timer callback.
func (m *Metrics) RecordTimerFire() { m.TimerFires.Add(1) }

// RecordPurifierWrite counts pages a purifier pass wrote, or an error
// if the write failed.
func (m *Metrics) RecordPurifierWrite(pages uint64, err bool) {
	if err {
		m.PurifierErrors.Add(1)
		return
	}
	m.PurifierPagesWritten.Add(pages)
}

// RecordObjectCacheLookup counts one AOTE cache lookup.
func (m *Metrics) RecordObjectCacheLookup(hit bool) {
	if hit {
		m.ObjectCacheHits.Add(1)
	} else {
		m.ObjectCacheMisses.Add(1)
	}
}

// Stop marks the kernel as shut down.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read
// without further synchronization.
type MetricsSnapshot struct {
	LockAcquisitions uint64
	LockContentions  uint64

	ECAdvances uint64
	ECWaits    uint64

	DispatcherSwitches uint64
	TimerFires         uint64

	PurifierPagesWritten uint64
	PurifierErrors       uint64

	ObjectCacheHits   uint64
	ObjectCacheMisses uint64
	ObjectCacheHitRate float64

	UptimeNs uint64
}

// Snapshot creates a point-in-time snapshot of metrics, matching the
// teacher's Metrics.Snapshot pattern.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		LockAcquisitions:     m.LockAcquisitions.Load(),
		LockContentions:      m.LockContentions.Load(),
		ECAdvances:           m.ECAdvances.Load(),
		ECWaits:              m.ECWaits.Load(),
		DispatcherSwitches:   m.DispatcherSwitches.Load(),
		TimerFires:           m.TimerFires.Load(),
		PurifierPagesWritten: m.PurifierPagesWritten.Load(),
		PurifierErrors:       m.PurifierErrors.Load(),
		ObjectCacheHits:      m.ObjectCacheHits.Load(),
		ObjectCacheMisses:    m.ObjectCacheMisses.Load(),
	}

	if total := snap.ObjectCacheHits + snap.ObjectCacheMisses; total > 0 {
		snap.ObjectCacheHitRate = float64(snap.ObjectCacheHits) / float64(total) * 100.0
	}

	bootTime := m.BootTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - bootTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - bootTime)
	}

	return snap
}

// Reset zeroes every counter and restamps BootTime, useful for tests.
func (m *Metrics) Reset() {
	m.LockAcquisitions.Store(0)
	m.LockContentions.Store(0)
	m.ECAdvances.Store(0)
	m.ECWaits.Store(0)
	m.DispatcherSwitches.Store(0)
	m.TimerFires.Store(0)
	m.PurifierPagesWritten.Store(0)
	m.PurifierErrors.Store(0)
	m.ObjectCacheHits.Store(0)
	m.ObjectCacheMisses.Store(0)
	m.BootTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection, matching the teacher's
// Observer/NoOpObserver/MetricsObserver shape.
type Observer interface {
	ObserveLockAcquire(contended bool)
	ObserveECAdvance()
	ObserveDispatch()
	ObserveTimerFire()
	ObservePurifierWrite(pages uint64, err bool)
	ObserveObjectCacheLookup(hit bool)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveLockAcquire(bool)           {}
func (NoOpObserver) ObserveECAdvance()                 {}
func (NoOpObserver) ObserveDispatch()                  {}
func (NoOpObserver) ObserveTimerFire()                 {}
func (NoOpObserver) ObservePurifierWrite(uint64, bool) {}
func (NoOpObserver) ObserveObjectCacheLookup(bool)     {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveLockAcquire(contended bool) { o.metrics.RecordLockAcquire(contended) }
func (o *MetricsObserver) ObserveECAdvance()                 { o.metrics.RecordECAdvance() }
func (o *MetricsObserver) ObserveDispatch()                  { o.metrics.RecordDispatch() }
func (o *MetricsObserver) ObserveTimerFire()                 { o.metrics.RecordTimerFire() }
func (o *MetricsObserver) ObservePurifierWrite(pages uint64, err bool) {
	o.metrics.RecordPurifierWrite(pages, err)
}
func (o *MetricsObserver) ObserveObjectCacheLookup(hit bool) {
	o.metrics.RecordObjectCacheLookup(hit)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
