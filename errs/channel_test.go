package errs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelOfferPollOrder(t *testing.T) {
	ch := NewChannel()
	e1 := Wrap(CollectedReactorError, assertErr("first"))
	e2 := Wrap(CollectedReactorError, assertErr("second"))

	require.True(t, ch.Offer(e1))
	require.True(t, ch.Offer(e2))

	got, ok := ch.Poll()
	require.True(t, ok)
	assert.Same(t, e1, got)

	got, ok = ch.Poll()
	require.True(t, ok)
	assert.Same(t, e2, got)

	assert.True(t, ch.IsEmpty())
}

func TestDrainCombinedMergesAllPending(t *testing.T) {
	ch := NewChannel()
	require.True(t, ch.Offer(Wrap(CollectedReactorError, assertErr("a"))))
	require.True(t, ch.Offer(Wrap(CollectedReactorError, assertErr("b"))))

	err := ch.DrainCombined()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
	assert.True(t, ch.IsEmpty())
}

func TestDrainCombinedNilWhenEmpty(t *testing.T) {
	ch := NewChannel()
	assert.NoError(t, ch.DrainCombined())
}

type testErr string

func (e testErr) Error() string { return string(e) }

func assertErr(s string) error { return testErr(s) }
