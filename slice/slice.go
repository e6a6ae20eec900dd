// Package slice describes the byte regions the outbound pipeline moves
// around: a (backing array, offset, length) view plus the free list used
// to recycle those views across send/drain cycles.
package slice

import "github.com/y001j/netlet/ring"

// Slice is a mutable view over a caller-owned byte array. The caller must
// not mutate Array between enqueue and the frame's final dequeue; the
// drainer is the only party allowed to mutate Offset/Length, advancing
// them as partial copies happen.
type Slice struct {
	Array  []byte
	Offset int
	Length int
}

// Reset repopulates the slice in place, used when recycling from a
// FreeList instead of allocating.
func (s *Slice) Reset(array []byte, offset, length int) {
	s.Array = array
	s.Offset = offset
	s.Length = length
}

// FreeList recycles *Slice values between the producer's enqueue path
// and the reactor's drain path. It is backed by the same SPSC ring used
// everywhere else so returning a slice never blocks either side.
type FreeList struct {
	ring *ring.Buffer[*Slice]
}

// NewFreeList creates a free list sized like the initial offer ring.
func NewFreeList(capacity int) *FreeList {
	return &FreeList{ring: ring.NewBuffer[*Slice](capacity)}
}

// Acquire returns a recycled *Slice populated with (array, offset,
// length), or a freshly allocated one if the free list is empty.
func (fl *FreeList) Acquire(array []byte, offset, length int) *Slice {
	if s, ok := fl.ring.Poll(); ok {
		s.Reset(array, offset, length)
		return s
	}
	return &Slice{Array: array, Offset: offset, Length: length}
}

// Release returns s to the free list for later reuse. s must no longer
// be referenced by any queued frame.
func (fl *FreeList) Release(s *Slice) {
	s.Array = nil
	s.Offset = 0
	s.Length = 0
	// Best effort: if the free list ring is full, the slice is simply
	// dropped and will be garbage collected instead of recycled.
	fl.ring.Offer(s)
}
