package slice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeListAllocatesWhenEmpty(t *testing.T) {
	fl := NewFreeList(4)
	data := []byte("hello")
	s := fl.Acquire(data, 1, 3)
	require.NotNil(t, s)
	assert.Equal(t, data, s.Array)
	assert.Equal(t, 1, s.Offset)
	assert.Equal(t, 3, s.Length)
}

func TestFreeListRecyclesReleasedSlice(t *testing.T) {
	fl := NewFreeList(4)
	data := []byte("hello")
	first := fl.Acquire(data, 0, 5)
	fl.Release(first)

	second := fl.Acquire([]byte("world"), 2, 1)
	assert.Same(t, first, second, "released slice should be reused in place")
	assert.Equal(t, 2, second.Offset)
	assert.Equal(t, 1, second.Length)
}

func TestDrainerMutatesOffsetAndLength(t *testing.T) {
	s := &Slice{Array: []byte("0123456789"), Offset: 0, Length: 10}
	s.Offset += 4
	s.Length -= 4
	assert.Equal(t, 4, s.Offset)
	assert.Equal(t, 6, s.Length)
}
