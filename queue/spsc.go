// Package queue implements the lock-free SPSC (single-producer,
// single-consumer) bounded ring buffers described in spec.md §4.3:
// SignalQueue carries signal.Update records, EventQueue carries
// UIEvent records. Both are instantiations of the generic Ring type
// below.
//
// Grounded on the lock-free ingress/microtask-ring idiom used by
// eventloop.Loop (ChunkedIngress / MicrotaskRing in the example pack):
// a preallocated slice plus atomically-published head/tail indices, no
// locks, no allocation on the hot path.
package queue

import "go.uber.org/atomic"

// Ring is a fixed-capacity SPSC ring buffer of T. Exactly one goroutine
// may call Push/TryPush (the producer) and exactly one goroutine may
// call Drain (the consumer); concurrent access from more than one
// producer or more than one consumer is undefined.
//
// Ordering: Push writes the slot's payload, then publishes by storing
// the new head index (a release, per Go's memory model guarantee that
// atomic stores/loads establish happens-before edges). Drain loads head
// (an acquire) before reading any published slot, so it never observes
// a torn write.
type Ring[T any] struct {
	buf      []T
	capacity uint64
	head     atomic.Uint64 // producer-owned: next slot index to write
	tail     atomic.Uint64 // consumer-owned: next slot index to read
	dropped  atomic.Uint64 // count of TryPush calls that found the ring full
}

// NewRing creates a ring of the given capacity (rounded up to at least
// 1). Capacity is fixed for the ring's lifetime; Push never reallocates.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		buf:      make([]T, capacity),
		capacity: uint64(capacity),
	}
}

// TryPush appends v. Returns false without blocking if the ring is
// full; the caller (a worker's hot path) decides whether to drop or
// yield-and-retry (spec.md §5 backpressure policy). Never blocks.
func (r *Ring[T]) TryPush(v T) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= r.capacity {
		r.dropped.Inc()
		return false
	}
	r.buf[head%r.capacity] = v
	r.head.Store(head + 1)
	return true
}

// Drain removes up to max records (0 or negative means unlimited) from
// the ring, calling sink for each in FIFO order, and returns how many
// were drained. Never blocks; returns 0 immediately on an empty ring.
func (r *Ring[T]) Drain(max int, sink func(T)) int {
	tail := r.tail.Load()
	head := r.head.Load()
	n := 0
	for tail != head {
		if max > 0 && n >= max {
			break
		}
		sink(r.buf[tail%r.capacity])
		tail++
		n++
	}
	if n > 0 {
		r.tail.Store(tail)
	}
	return n
}

// Len returns a snapshot of the number of records currently queued.
// Racy by nature on a live ring (consumer and producer continue
// running); useful for metrics, not for control flow.
func (r *Ring[T]) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Dropped returns the number of TryPush calls that found the ring full,
// backing the QueueFull counter of spec.md §7.
func (r *Ring[T]) Dropped() uint64 {
	return r.dropped.Load()
}

// Capacity returns the ring's fixed capacity.
func (r *Ring[T]) Capacity() int {
	return int(r.capacity)
}
