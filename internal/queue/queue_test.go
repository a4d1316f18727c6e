package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushPopFIFOOrder(t *testing.T) {
	r := New[int](3)
	require.NoError(t, r.Push(1))
	require.NoError(t, r.Push(2))
	require.NoError(t, r.Push(3))
	require.True(t, r.Full())
	require.ErrorIs(t, r.Push(4), ErrFull)

	for _, want := range []int{1, 2, 3} {
		got, ok := r.Pop()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	require.True(t, r.Empty())
	_, ok := r.Pop()
	require.False(t, ok)
}

func TestWrapAroundReusesFreedSlots(t *testing.T) {
	r := New[int](2)
	require.NoError(t, r.Push(1))
	require.NoError(t, r.Push(2))
	v, _ := r.Pop()
	require.Equal(t, 1, v)
	require.NoError(t, r.Push(3))

	var got []int
	r.Each(func(v int) { got = append(got, v) })
	require.Equal(t, []int{2, 3}, got)
}

func TestZeroCapacityAlwaysFull(t *testing.T) {
	r := New[int](0)
	require.True(t, r.Full())
	require.ErrorIs(t, r.Push(1), ErrFull)
}

func TestRemoveMatchingOnlyPopsFrontMatch(t *testing.T) {
	r := New[int](3)
	r.Push(1)
	r.Push(2)

	_, ok := r.RemoveMatching(func(v int) bool { return v == 2 })
	require.False(t, ok, "front element is 1, not 2; must not pop")
	require.Equal(t, 2, r.Len())

	v, ok := r.RemoveMatching(func(v int) bool { return v == 1 })
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.Equal(t, 1, r.Len())
}
