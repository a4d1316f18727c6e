package mshr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maemo32/memsim/internal/cache"
)

func blockAddr(a uint64) uint64 { return a &^ 0x3f }

func TestAllocateOrMergeUpgradesPriority(t *testing.T) {
	f := New(4, blockAddr)

	res, entry, err := f.AllocateOrMerge(cache.TagLookup{
		Request: cache.Request{Address: 0x100, Type: cache.PREFETCH, ToReturn: []cache.Listener{1}},
	})
	require.NoError(t, err)
	require.Equal(t, Allocated, res)
	require.Equal(t, cache.PREFETCH, entry.Type)

	res, entry, err = f.AllocateOrMerge(cache.TagLookup{
		Request: cache.Request{Address: 0x100, Type: cache.LOAD, ToReturn: []cache.Listener{2}},
	})
	require.NoError(t, err)
	require.Equal(t, Merged, res)
	require.Equal(t, cache.LOAD, entry.Type, "a demand load must upgrade a pending prefetch's type")
	require.ElementsMatch(t, []cache.Listener{1, 2}, entry.ToReturn)
}

func TestAllocateOrMergeFullReportsError(t *testing.T) {
	f := New(1, blockAddr)
	_, _, err := f.AllocateOrMerge(cache.TagLookup{Request: cache.Request{Address: 0x100}})
	require.NoError(t, err)

	_, _, err = f.AllocateOrMerge(cache.TagLookup{Request: cache.Request{Address: 0x200}})
	require.Error(t, err)
}

func TestCompleteRemovesEntry(t *testing.T) {
	f := New(4, blockAddr)
	_, _, err := f.AllocateOrMerge(cache.TagLookup{Request: cache.Request{Address: 0x100, CPU: 1}})
	require.NoError(t, err)
	require.True(t, f.MarkReady(1, blockAddr(0x100), 5, []byte{1, 2, 3}))

	entry, ok := f.Lookup(1, blockAddr(0x100))
	require.True(t, ok)
	require.True(t, entry.Ready)

	_, ok = f.Complete(1, blockAddr(0x100))
	require.True(t, ok)
	_, ok = f.Lookup(1, blockAddr(0x100))
	require.False(t, ok)
}

func TestOldestTracksInsertionOrder(t *testing.T) {
	f := New(4, blockAddr)
	_, _, _ = f.AllocateOrMerge(cache.TagLookup{Request: cache.Request{Address: 0x100, CPU: 0}, CycleEnqueued: 1})
	_, _, _ = f.AllocateOrMerge(cache.TagLookup{Request: cache.Request{Address: 0x200, CPU: 0}, CycleEnqueued: 2})

	oldest, ok := f.Oldest()
	require.True(t, ok)
	require.Equal(t, uint64(0x100), oldest.Address)

	f.Invalidate(0, blockAddr(0x100))
	oldest, ok = f.Oldest()
	require.True(t, ok)
	require.Equal(t, uint64(0x200), oldest.Address)
}
