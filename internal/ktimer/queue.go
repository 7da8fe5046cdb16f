// Package ktimer implements the timer and callback-queue subsystem
// (spec §4.5): an ordered real-time event queue plus one virtual-time
// queue per process, time-of-day state, and gradual clock skew.
//
// No original_source file for this subsystem survived disassembly
// beyond fragments (time/q_scan_queue.c shows the scan shape but the
// insert/remove helpers it calls out to were never recovered); the
// queue itself is built in the shape spec.md's Design Notes call for
// ("implementations may use embedded list links") and in the style the
// teacher's queue.Runner uses for its own pop-until-drained request loop.
package ktimer

import (
	"container/list"
	"sync"

	"github.com/dmkernel/domainkernel/internal/ktick"
)

// Entry is one scheduled callback: fire at Expire, optionally
// rearming itself at Expire+Interval (QELEM_FLAG_REPEAT).
type Entry struct {
	Expire   ktick.Clock
	Interval ktick.Clock
	Repeat   bool
	Callback func()

	elem *list.Element
	q    *Queue
}

// Queue is a time-ordered callback list, one RT queue shared kernel-wide
// plus one VT queue per process, matching TIME_$RTEQ / per-process VT
// queues in spec §4.5.
type Queue struct {
	mu   sync.Mutex
	list *list.List
	id   uint16
}

// NewQueue creates an empty queue, matching TIME_$Q_INIT_QUEUE.
func NewQueue(id uint16) *Queue {
	return &Queue{list: list.New(), id: id}
}

// QEnter inserts e into the queue in expiry order, matching the
// insert-sorted helper TIME_$Q_SCAN_QUEUE re-invokes for repeating
// timers.
func (q *Queue) QEnter(e *Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.insertLocked(e)
}

func (q *Queue) insertLocked(e *Entry) {
	for el := q.list.Front(); el != nil; el = el.Next() {
		if e.Expire.Less(el.Value.(*Entry).Expire) {
			e.elem = q.list.InsertBefore(e, el)
			e.q = q
			return
		}
	}
	e.elem = q.list.PushBack(e)
	e.q = q
}

// QRemove removes e from whichever queue it's enqueued on, if any.
// Safe to call on an already-removed or never-enqueued entry.
func (q *Queue) QRemove(e *Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(e)
}

func (q *Queue) removeLocked(e *Entry) {
	if e.elem != nil && e.q == q {
		q.list.Remove(e.elem)
		e.elem = nil
		e.q = nil
	}
}

// Scan fires every entry whose Expire <= now, matching
// TIME_$Q_SCAN_QUEUE: repeating entries are re-armed at
// Expire+Interval and reinserted before their callback runs again on a
// later scan. Callbacks run with the queue lock released, so they may
// themselves call QEnter/QRemove on this queue.
func (q *Queue) Scan(now ktick.Clock) {
	for {
		q.mu.Lock()
		front := q.list.Front()
		if front == nil {
			q.mu.Unlock()
			return
		}
		e := front.Value.(*Entry)
		if now.Less(e.Expire) {
			q.mu.Unlock()
			return
		}

		q.list.Remove(front)
		e.elem = nil
		e.q = nil

		if e.Repeat {
			e.Expire = ktick.Add48(e.Expire, e.Interval)
			q.insertLocked(e)
		}
		q.mu.Unlock()

		if e.Callback != nil {
			e.Callback()
		}
	}
}

// Len reports the number of entries currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.list.Len()
}
