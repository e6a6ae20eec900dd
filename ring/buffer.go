// Package ring implements the single-producer/single-consumer queue that
// backs the outbound pipeline: a fixed-capacity ring of references,
// power-of-two sized so indexing is a mask instead of a modulo, with
// "unsafe" fast-path accessors for callers that have already snapshotted
// Size() and know the ring is non-empty.
//
// At most one goroutine may call Offer/OfferWait; at most one goroutine
// may call the Poll/Peek family. The two counters (head, tail) are
// published with atomics so each side observes the other's progress
// without the two ends ever contending on application data.
package ring

import (
	"time"

	"go.uber.org/atomic"

	"github.com/y001j/netlet/internal/obs"
)

// Unsafe is the narrower capability a drain loop needs once it has taken
// a single Size() snapshot: peek/poll without re-checking emptiness.
// Kept distinct from the concrete type so pipeline code can depend on
// the capability rather than the struct.
type Unsafe[T any] interface {
	PeekUnsafe() T
	PollUnsafe() T
}

// Buffer is a fixed-capacity SPSC ring buffer of references.
type Buffer[T any] struct {
	mask uint64
	buf  []T

	// tail is producer-owned; head is consumer-owned. Both published
	// via atomics so Size() is safe to call from either side.
	head atomic.Uint64
	tail atomic.Uint64

	spinWait time.Duration
}

// Option configures a new Buffer.
type Option func(*options)

type options struct {
	spinWait time.Duration
}

// WithSpinWait bounds how long OfferWait spins before giving up on a full
// ring. The outbound send path doesn't use it (it grows the ring
// instead); errs.Channel uses it for its bounded offer.
func WithSpinWait(d time.Duration) Option {
	return func(o *options) { o.spinWait = d }
}

// NewBuffer creates a ring of the given requested capacity, rounded up to
// the next power of two (logging a warning when rounding occurred).
func NewBuffer[T any](requested int, opts ...Option) *Buffer[T] {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	capacity := roundUpToPowerOfTwo(requested)
	if capacity != requested {
		obs.L().Sugar().Warnf("ring capacity %d is not a power of two, rounded up to %d", requested, capacity)
	}
	return &Buffer[T]{
		mask:     uint64(capacity - 1),
		buf:      make([]T, capacity),
		spinWait: o.spinWait,
	}
}

// roundUpToPowerOfTwo implements the "smear and +1" technique: if n is
// already a power of two it is returned unchanged; any n <= 1 gives 1.
func roundUpToPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}

// Capacity returns the ring's fixed capacity.
func (b *Buffer[T]) Capacity() int {
	return int(b.mask) + 1
}

// Size returns tail - head, safe to call from either thread as a
// snapshot; the true size may have changed by the time it is observed.
func (b *Buffer[T]) Size() int {
	return int(b.tail.Load() - b.head.Load())
}

// IsEmpty reports whether the ring currently holds no elements.
func (b *Buffer[T]) IsEmpty() bool {
	return b.head.Load() == b.tail.Load()
}

// IsFull reports whether the ring is at capacity.
func (b *Buffer[T]) IsFull() bool {
	return b.tail.Load()-b.head.Load() == uint64(b.Capacity())
}

// Offer appends v if the ring is not full. Single-producer only.
func (b *Buffer[T]) Offer(v T) bool {
	tail := b.tail.Load()
	head := b.head.Load()
	if tail-head == uint64(b.Capacity()) {
		return false
	}
	b.buf[tail&b.mask] = v
	b.tail.Store(tail + 1)
	return true
}

// OfferWait spins for up to the ring's configured spin-wait duration
// before giving up on a full ring. If no spin-wait was configured it
// behaves exactly like Offer.
func (b *Buffer[T]) OfferWait(v T) bool {
	if b.Offer(v) {
		return true
	}
	if b.spinWait <= 0 {
		return false
	}
	deadline := time.Now().Add(b.spinWait)
	for time.Now().Before(deadline) {
		if b.Offer(v) {
			return true
		}
	}
	return false
}

// Poll removes and returns the head element if present.
func (b *Buffer[T]) Poll() (v T, ok bool) {
	head := b.head.Load()
	if head == b.tail.Load() {
		return v, false
	}
	v = b.buf[head&b.mask]
	var zero T
	b.buf[head&b.mask] = zero
	b.head.Store(head + 1)
	return v, true
}

// Peek returns the head element without removing it.
func (b *Buffer[T]) Peek() (v T, ok bool) {
	head := b.head.Load()
	if head == b.tail.Load() {
		return v, false
	}
	return b.buf[head&b.mask], true
}

// PollUnsafe removes and returns the head element without checking
// emptiness first. Caller must already know Size() > 0.
func (b *Buffer[T]) PollUnsafe() T {
	head := b.head.Load()
	v := b.buf[head&b.mask]
	var zero T
	b.buf[head&b.mask] = zero
	b.head.Store(head + 1)
	return v
}

// PeekUnsafe returns the head element without checking emptiness first.
// Caller must already know Size() > 0.
func (b *Buffer[T]) PeekUnsafe() T {
	return b.buf[b.head.Load()&b.mask]
}
