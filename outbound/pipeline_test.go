package outbound

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInterest struct {
	asserted bool
	assertN  int
	clearN   int
	woken    int
}

func (f *fakeInterest) AssertWrite() {
	f.asserted = true
	f.assertN++
	f.woken++
}

func (f *fakeInterest) ClearWrite() {
	f.asserted = false
	f.clearN++
}

func frame(s string) []byte { return []byte(s) }

func TestTryEnqueueAssertsWriteInterestOnce(t *testing.T) {
	fi := &fakeInterest{}
	p := New(4, 64, fi)

	require.True(t, p.TryEnqueue(p.AcquireSlice(frame("a"), 0, 1)))
	assert.Equal(t, 1, fi.assertN)

	require.True(t, p.TryEnqueue(p.AcquireSlice(frame("b"), 0, 1)))
	assert.Equal(t, 1, fi.assertN, "interest should only be asserted on the 0->1 transition")
}

func TestDrainPreservesFrameOrdering(t *testing.T) {
	fi := &fakeInterest{}
	p := New(4, 64, fi)

	for _, f := range []string{"ab", "cd", "ef"} {
		require.True(t, p.TryEnqueue(p.AcquireSlice(frame(f), 0, len(f))))
	}

	dst := make([]byte, 6)
	n := p.DrainInto(dst)
	assert.Equal(t, 6, n)
	assert.Equal(t, "abcdef", string(dst))
	assert.True(t, p.PollRingEmpty())
}

func TestDrainPartialFrameAdvancesOffset(t *testing.T) {
	fi := &fakeInterest{}
	p := New(4, 64, fi)
	require.True(t, p.TryEnqueue(p.AcquireSlice(frame("hello"), 0, 5)))

	dst := make([]byte, 3)
	n := p.DrainInto(dst)
	assert.Equal(t, 3, n)
	assert.Equal(t, "hel", string(dst))
	assert.False(t, p.PollRingEmpty(), "partially drained frame stays queued")

	dst2 := make([]byte, 2)
	n2 := p.DrainInto(dst2)
	assert.Equal(t, 2, n2)
	assert.Equal(t, "lo", string(dst2))
	assert.True(t, p.PollRingEmpty())
}

func TestGrowthOnFullRingAcceptsFrameAndRetiresOldRing(t *testing.T) {
	fi := &fakeInterest{}
	p := New(2, 64, fi) // tiny ring, forces growth quickly

	for i := 0; i < 2; i++ {
		require.True(t, p.TryEnqueue(p.AcquireSlice(frame("x"), 0, 1)))
	}
	// ring of capacity 2 is now full; next enqueue must grow
	require.True(t, p.TryEnqueue(p.AcquireSlice(frame("y"), 0, 1)))

	// DrainInto only reads the current poll ring (the old ring, "xx");
	// RotatePollRing then moves on to the grown ring holding "y".
	dst := make([]byte, 3)
	n := p.DrainInto(dst)
	require.True(t, p.RotatePollRing(), "grown ring still holds y")
	n += p.DrainInto(dst[n:])
	assert.Equal(t, 3, n)
	assert.Equal(t, "xxy", string(dst), "FIFO ordering preserved across growth")
}

func TestRejectsWhenAtMaxCapacityAndFull(t *testing.T) {
	fi := &fakeInterest{}
	p := New(2, 2, fi) // max == initial, no growth possible

	require.True(t, p.TryEnqueue(p.AcquireSlice(frame("a"), 0, 1)))
	require.True(t, p.TryEnqueue(p.AcquireSlice(frame("b"), 0, 1)))
	assert.False(t, p.TryEnqueue(p.AcquireSlice(frame("c"), 0, 1)))
}

func TestRotatePollRingClearsInterestWhenFullyDrained(t *testing.T) {
	fi := &fakeInterest{}
	p := New(4, 64, fi)
	require.True(t, p.TryEnqueue(p.AcquireSlice(frame("a"), 0, 1)))

	dst := make([]byte, 1)
	p.DrainInto(dst)
	require.True(t, p.PollRingEmpty())

	more := p.RotatePollRing()
	assert.False(t, more)
	assert.Equal(t, 1, fi.clearN)
	assert.False(t, fi.asserted)
}

func TestRotatePollRingAdvancesToGrownRingFIFO(t *testing.T) {
	fi := &fakeInterest{}
	p := New(1, 64, fi)

	require.True(t, p.TryEnqueue(p.AcquireSlice(frame("a"), 0, 1))) // fills ring cap 1
	require.True(t, p.TryEnqueue(p.AcquireSlice(frame("b"), 0, 1))) // forces grow; "a" stays on the poll ring

	// drain the still-current poll ring ("a") fully
	dst := make([]byte, 1)
	n := p.DrainInto(dst)
	require.Equal(t, 1, n)
	assert.Equal(t, "a", string(dst))
	require.True(t, p.PollRingEmpty())

	more := p.RotatePollRing()
	assert.True(t, more, "rotated-to ring still holds b")

	dst2 := make([]byte, 1)
	n2 := p.DrainInto(dst2)
	assert.Equal(t, "b", string(dst2[:n2]))
}

func TestUnregisterRejectsOffersButAllowsInFlightDrainToComplete(t *testing.T) {
	fi := &fakeInterest{}
	p := New(4, 64, fi)
	require.True(t, p.TryEnqueue(p.AcquireSlice(frame("a"), 0, 1)))

	p.Unregister()

	assert.False(t, p.TryEnqueue(p.AcquireSlice(frame("z"), 0, 1)))

	dst := make([]byte, 1)
	n := p.DrainInto(dst)
	assert.Equal(t, 1, n, "in-flight frame queued before Unregister still drains")
	assert.Equal(t, "a", string(dst))
}
