// Package queue holds completed analysis frames in playback-time order
// between the audio producer and the render consumer.
//
// The producer side (Offer, TryPruneStale) never waits for the consumer: when
// the lock is busy, offered items are parked on a lock-free stack and folded
// into the heap by the next operation that holds the lock.
package queue

import (
	"container/heap"
	"sync"
	"sync/atomic"
)

// Timed is anything carrying an estimated playback time in milliseconds.
type Timed interface {
	PlaybackTime() int64
}

// Stats reports queue counters
type Stats struct {
	Len      int
	Pushed   uint64
	Popped   uint64
	Pruned   uint64
	Dropped  uint64 // evicted because the queue was at capacity
	Deferred uint64 // offers parked because the lock was busy
}

type entry[T Timed] struct {
	item T
	time int64
	seq  uint64
}

type entryHeap[T Timed] []entry[T]

func (h entryHeap[T]) Len() int { return len(h) }

func (h entryHeap[T]) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap[T]) Push(x any) { *h = append(*h, x.(entry[T])) }

func (h *entryHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	var zero entry[T]
	old[n-1] = zero
	*h = old[:n-1]
	return e
}

type node[T Timed] struct {
	entry entry[T]
	next  *node[T]
}

// Queue is a time-ordered, concurrency-safe frame buffer.
type Queue[T Timed] struct {
	mu       sync.Mutex
	items    entryHeap[T]
	capacity int

	pending atomic.Pointer[node[T]]
	seq     atomic.Uint64

	pushed   atomic.Uint64
	popped   atomic.Uint64
	pruned   atomic.Uint64
	dropped  atomic.Uint64
	deferred atomic.Uint64
}

// New creates a queue holding at most capacity items; capacity <= 0 means
// unbounded.
func New[T Timed](capacity int) *Queue[T] {
	return &Queue[T]{capacity: capacity}
}

func (q *Queue[T]) wrap(item T) entry[T] {
	return entry[T]{item: item, time: item.PlaybackTime(), seq: q.seq.Add(1)}
}

// Push inserts items, waiting for the lock if necessary.
func (q *Queue[T]) Push(items ...T) {
	entries := make([]entry[T], len(items))
	for i, item := range items {
		entries[i] = q.wrap(item)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.foldPendingLocked()
	q.insertLocked(entries...)
}

// Offer inserts items without blocking. If the lock is held by the consumer
// the items are parked and become visible at the next locked operation. It
// reports whether the items went straight into the heap.
func (q *Queue[T]) Offer(items ...T) bool {
	entries := make([]entry[T], len(items))
	for i, item := range items {
		entries[i] = q.wrap(item)
	}

	if q.mu.TryLock() {
		q.foldPendingLocked()
		q.insertLocked(entries...)
		q.mu.Unlock()
		return true
	}

	for _, e := range entries {
		n := &node[T]{entry: e}
		for {
			head := q.pending.Load()
			n.next = head
			if q.pending.CompareAndSwap(head, n) {
				break
			}
		}
	}
	q.deferred.Add(uint64(len(entries)))
	return false
}

// Peek returns the earliest item without removing it
func (q *Queue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.foldPendingLocked()

	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.items[0].item, true
}

// Pop removes and returns the earliest item
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.foldPendingLocked()
	return q.popLocked()
}

// PopDue removes and returns the earliest item only if its playback time is
// at or before nowMs. Checking and removing happen under one lock, so an
// earlier item offered in between cannot be skipped.
func (q *Queue[T]) PopDue(nowMs int64) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.foldPendingLocked()

	if len(q.items) == 0 || q.items[0].time > nowMs {
		var zero T
		return zero, false
	}
	return q.popLocked()
}

// PruneStale drops every item with time+graceMs < nowMs and returns how many
// were dropped.
func (q *Queue[T]) PruneStale(nowMs, graceMs int64) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.foldPendingLocked()
	return q.pruneLocked(nowMs, graceMs)
}

// TryPruneStale prunes only if the lock is free. The producer uses it so a
// draining consumer never stalls the audio path.
func (q *Queue[T]) TryPruneStale(nowMs, graceMs int64) (int, bool) {
	if !q.mu.TryLock() {
		return 0, false
	}
	defer q.mu.Unlock()
	q.foldPendingLocked()
	return q.pruneLocked(nowMs, graceMs), true
}

// Len returns the number of queued items, including parked ones
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.foldPendingLocked()
	return len(q.items)
}

// Clear removes everything
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending.Store(nil)
	q.items = nil
}

// Stats returns a snapshot of the counters
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Len:      q.Len(),
		Pushed:   q.pushed.Load(),
		Popped:   q.popped.Load(),
		Pruned:   q.pruned.Load(),
		Dropped:  q.dropped.Load(),
		Deferred: q.deferred.Load(),
	}
}

func (q *Queue[T]) popLocked() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	e := heap.Pop(&q.items).(entry[T])
	q.popped.Add(1)
	return e.item, true
}

func (q *Queue[T]) pruneLocked(nowMs, graceMs int64) int {
	n := 0
	for len(q.items) > 0 && q.items[0].time+graceMs < nowMs {
		heap.Pop(&q.items)
		n++
	}
	q.pruned.Add(uint64(n))
	return n
}

func (q *Queue[T]) insertLocked(entries ...entry[T]) {
	for _, e := range entries {
		heap.Push(&q.items, e)
	}
	q.pushed.Add(uint64(len(entries)))

	for q.capacity > 0 && len(q.items) > q.capacity {
		heap.Pop(&q.items)
		q.dropped.Add(1)
	}
}

// foldPendingLocked moves parked entries into the heap. Sequence numbers were
// taken at offer time, so stack order does not matter.
func (q *Queue[T]) foldPendingLocked() {
	head := q.pending.Swap(nil)
	if head == nil {
		return
	}
	var entries []entry[T]
	for n := head; n != nil; n = n.next {
		entries = append(entries, n.entry)
	}
	q.insertLocked(entries...)
}
