// Package ringchan provides a bounded channel that never blocks producers.
package ringchan

import (
	"sync"
	"sync/atomic"
)

// RingChannel is a bounded channel-like buffer with overwrite-oldest semantics.
//
// Producers never block: if the buffer is full, the oldest element is
// discarded. Consumers read from C() like a normal channel, in send order.
// Send and Close are safe to call from multiple goroutines; Send after Close
// is a no-op.
type RingChannel[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool

	written     atomic.Int64
	overwritten atomic.Int64
	rejected    atomic.Int64
}

// NewRingChannel creates a RingChannel with the given capacity.
func NewRingChannel[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts v, discarding the oldest element if the buffer is full.
// Returns true if an element was dropped to make room.
func (rc *RingChannel[T]) Send(v T) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.closed {
		return false
	}

	dropped := false
	select {
	case rc.ch <- v:
	default:
		select {
		case <-rc.ch:
			rc.overwritten.Add(1)
			dropped = true
		default:
		}
		rc.ch <- v
	}
	rc.written.Add(1)
	return dropped
}

// Offer inserts v only while fewer than limit elements are buffered, leaving
// the remaining capacity to Send. Returns false if v was rejected.
func (rc *RingChannel[T]) Offer(v T, limit int) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.closed {
		return false
	}
	if len(rc.ch) >= limit {
		rc.rejected.Add(1)
		return false
	}

	select {
	case rc.ch <- v:
		rc.written.Add(1)
		return true
	default:
		rc.rejected.Add(1)
		return false
	}
}

// Close closes the underlying channel. Buffered elements remain readable.
func (rc *RingChannel[T]) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if !rc.closed {
		rc.closed = true
		close(rc.ch)
	}
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Metrics is a snapshot of the channel counters.
type Metrics struct {
	Written     int64
	Overwritten int64
	Rejected    int64
}

// GetMetrics returns a snapshot of current counters.
func (rc *RingChannel[T]) GetMetrics() Metrics {
	return Metrics{
		Written:     rc.written.Load(),
		Overwritten: rc.overwritten.Load(),
		Rejected:    rc.rejected.Load(),
	}
}
