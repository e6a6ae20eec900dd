// Package outbound implements the outbound send queue: a current
// offer-side ring, a current poll-side ring, and a ring-of-rings
// holding retired offer-side rings awaiting drain. The pipeline grows
// by doubling on backpressure and merges back once a retired ring has
// fully drained, so Send never waits for the reactor to drain and never
// blocks the producer indefinitely.
package outbound

import (
	"sync"

	"github.com/y001j/netlet/ring"
	"github.com/y001j/netlet/slice"
)

// InterestController is the narrow capability the pipeline needs from
// whatever owns OP_WRITE on the reactor's registration key. Keeping it
// this small lets the pipeline stay ignorant of reactor/client types.
type InterestController interface {
	AssertWrite()
	ClearWrite()
}

// frameRing is the capability both a live ring.Buffer[*slice.Slice] and
// the read-through unregister sentinel (below) provide. Expressing the
// "ring that may or may not still accept offers" distinction as an
// interface, rather than a concrete type plus a subclass, is what lets
// Pipeline.Unregister swap in the sentinel without branching on the hot
// drain path.
type frameRing interface {
	Offer(*slice.Slice) bool
	Poll() (*slice.Slice, bool)
	Peek() (*slice.Slice, bool)
	PollUnsafe() *slice.Slice
	PeekUnsafe() *slice.Slice
	Size() int
	Capacity() int
	IsEmpty() bool
}

// Pipeline is the outbound queue system sitting between Send and the
// socket: a growable offer/poll ring pair plus the retired rings still
// draining behind it.
type Pipeline struct {
	// mu is the pipeline monitor: it serializes topology transitions
	// (grow, rotate, interest flip, unregister-swap). The ring Offer/Poll/
	// Peek calls themselves run without it, but TryEnqueueFast takes it
	// briefly after every successful offer to check writeAsserted.
	mu sync.Mutex

	offerRing    frameRing
	pollRing     frameRing
	retiredRings *ring.Buffer[frameRing]
	freeSlices   *slice.FreeList

	maxRingCapacity int
	interest        InterestController
	writeAsserted   bool // guarded by mu
}

// New builds a pipeline whose offer/poll ring starts at initialCapacity
// (rounded up to a power of two by ring.NewBuffer if it is not one
// already) and may grow by doubling up to maxRingCapacity.
func New(initialCapacity, maxRingCapacity int, interest InterestController) *Pipeline {
	offer := ring.NewBuffer[*slice.Slice](initialCapacity)
	return &Pipeline{
		offerRing:       offer,
		pollRing:        offer,
		retiredRings:    ring.NewBuffer[frameRing](log2(maxRingCapacity)),
		freeSlices:      slice.NewFreeList(initialCapacity),
		maxRingCapacity: maxRingCapacity,
		interest:        interest,
	}
}

func log2(n int) int {
	steps := 0
	for n > 1 {
		n >>= 1
		steps++
	}
	if steps == 0 {
		steps = 1
	}
	return steps
}

// AcquireSlice gets a (possibly recycled) *slice.Slice describing
// (array, offset, length), ready to hand to TryEnqueue.
func (p *Pipeline) AcquireSlice(array []byte, offset, length int) *slice.Slice {
	return p.freeSlices.Acquire(array, offset, length)
}

// TryEnqueue attempts to offer s onto the current offer ring, growing
// the pipeline on failure if headroom remains below maxRingCapacity.
// It returns false when the offer ring is already at max capacity and
// still full, or when Unregister has already frozen it.
//
// It is built from TryEnqueueFast and Grow so a caller that needs to
// check for a pending error between the two (client.Endpoint.SendAt
// does, to surface a connection failure ahead of growing the ring
// behind it) can call those directly instead.
func (p *Pipeline) TryEnqueue(s *slice.Slice) bool {
	if p.TryEnqueueFast(s) {
		return true
	}
	return p.Grow(s)
}

// TryEnqueueFast attempts to offer s onto the current offer ring
// without growing it: an attempt without the monitor (which, on
// success, takes the monitor to assert write interest), then one retry
// under the monitor in case the reactor drained in between. It returns
// false without taking any other action if both attempts fail,
// leaving the decision to grow (or surface a pending error instead) to
// the caller.
func (p *Pipeline) TryEnqueueFast(s *slice.Slice) bool {
	if p.offerRing.Offer(s) {
		p.assertWriteInterest()
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.offerRing.Offer(s) {
		p.assertWriteInterestLocked()
		return true
	}
	return false
}

// Grow re-attempts to offer s, retiring the current offer ring and
// allocating a bigger one if the ring is still full and below
// maxRingCapacity. It returns false when the offer ring is already at
// max capacity and still full, or when Unregister has already frozen
// it into a sentinel: the sentinel is never grown, no matter how small
// its reported capacity is, since doing so would hand the producer a
// ring the torn-down reactor will never drain again.
func (p *Pipeline) Grow(s *slice.Slice) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	// The reactor may have drained the ring since the caller's last
	// attempt.
	if p.offerRing.Offer(s) {
		p.assertWriteInterestLocked()
		return true
	}

	if _, unregistered := p.offerRing.(*sentinel); unregistered {
		return false
	}

	if p.offerRing.Capacity() >= p.maxRingCapacity {
		return false
	}

	if p.offerRing != p.pollRing {
		p.retiredRings.Offer(p.offerRing)
	}

	newCap := p.offerRing.Capacity() * 2
	if newCap > p.maxRingCapacity {
		newCap = p.maxRingCapacity
	}
	grown := ring.NewBuffer[*slice.Slice](newCap)
	grown.Offer(s) // fresh empty ring: always succeeds
	p.offerRing = grown

	p.assertWriteInterestLocked()
	return true
}

func (p *Pipeline) assertWriteInterest() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assertWriteInterestLocked()
}

func (p *Pipeline) assertWriteInterestLocked() {
	if !p.writeAsserted {
		p.interest.AssertWrite()
		p.writeAsserted = true
	}
}

// DrainInto copies as many whole or partial frames as fit from the
// current poll ring into dst, advancing (and partially consuming) the
// head frame's Slice when dst is smaller than its remaining length.
// Frames fully consumed are returned to the free list. It returns the
// number of bytes copied. Reactor-thread-exclusive: no locking.
func (p *Pipeline) DrainInto(dst []byte) int {
	size := p.pollRing.Size()
	if size == 0 || len(dst) == 0 {
		return 0
	}

	total := 0
	remaining := len(dst)
	for remaining > 0 && size > 0 {
		f := p.pollRing.PeekUnsafe()
		if remaining < f.Length {
			copy(dst[total:total+remaining], f.Array[f.Offset:f.Offset+remaining])
			f.Offset += remaining
			f.Length -= remaining
			total += remaining
			break
		}
		n := f.Length
		copy(dst[total:total+n], f.Array[f.Offset:f.Offset+n])
		total += n
		remaining -= n
		p.pollRing.PollUnsafe()
		p.freeSlices.Release(f)
		size--
	}
	return total
}

// PollRingEmpty reports whether the current poll ring has no frames.
func (p *Pipeline) PollRingEmpty() bool {
	return p.pollRing.IsEmpty()
}

// RotatePollRing is called once the staging buffer has been fully
// flushed and the current poll ring is empty; it selects the next
// ring to drain from (a retired ring, the current offer ring, or
// nothing). Returns true if the newly selected poll ring (if any)
// still has data pending, so the caller knows whether to keep draining.
func (p *Pipeline) RotatePollRing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.pollRing.IsEmpty() {
		return true
	}

	if p.offerRing == p.pollRing {
		if p.writeAsserted {
			p.interest.ClearWrite()
			p.writeAsserted = false
		}
		return false
	}

	if retired, ok := p.retiredRings.Poll(); ok {
		p.pollRing = retired
	} else {
		p.pollRing = p.offerRing
	}
	return !p.pollRing.IsEmpty()
}

// SetWriteInterestAsserted overrides the pipeline's bookkeeping of
// whether OP_WRITE is currently asserted, without touching the
// interest controller itself. client.Endpoint uses this on connect
// (the selector has no OP_WRITE interest yet, so the flag must read
// false) and on disconnect (so no further Send tries to flip OP_WRITE
// on a dead key during teardown).
func (p *Pipeline) SetWriteInterestAsserted(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeAsserted = v
}

// sentinel is the read-through ring installed by Unregister: size/peek/
// poll delegate to the frozen ring so any in-flight flush can complete,
// but Offer always rejects.
type sentinel struct {
	frozen frameRing
}

func (s *sentinel) Offer(*slice.Slice) bool    { return false }
func (s *sentinel) Poll() (*slice.Slice, bool) { return s.frozen.Poll() }
func (s *sentinel) Peek() (*slice.Slice, bool) { return s.frozen.Peek() }
func (s *sentinel) PollUnsafe() *slice.Slice   { return s.frozen.PollUnsafe() }
func (s *sentinel) PeekUnsafe() *slice.Slice   { return s.frozen.PeekUnsafe() }
func (s *sentinel) Size() int                  { return s.frozen.Size() }
func (s *sentinel) Capacity() int              { return s.frozen.Capacity() }
func (s *sentinel) IsEmpty() bool              { return s.frozen.IsEmpty() }

// Unregister swaps the live offer ring for a read-through sentinel that
// rejects all further offers while letting any in-flight drain against
// the frozen ring complete. After this call TryEnqueue always returns
// false; client.Endpoint is responsible for turning that into
// errs.ErrFatalOwnershipLost on the producer thread.
func (p *Pipeline) Unregister() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offerRing = &sentinel{frozen: p.offerRing}
}
