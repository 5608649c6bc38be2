package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elayo/pagepool/memsrc"
)

func newTestArena(t *testing.T, opts ...ArenaOption) *Arena {
	t.Helper()
	return NewArena(8192, 11, memsrc.Heap{}, opts...)
}

// TestArenaAllocateFreeRoundTrip verifies a region's bytes round-trip
// through Allocate/Free without corruption from neighboring regions.
func TestArenaAllocateFreeRoundTrip(t *testing.T) {
	a := newTestArena(t)

	r, err := a.Allocate(100)
	require.NoError(t, err)
	require.Len(t, r.Bytes(), r.Length)

	for i := range r.Bytes() {
		r.Bytes()[i] = byte(i)
	}
	require.NoError(t, a.Free(r))

	stats := a.Stats()
	assert.Equal(t, 1, stats.AllocCalls)
	assert.Equal(t, 1, stats.FreeCalls)
}

// TestArenaNormalizeRejectsInvalidCapacity checks the boundary errors
// normalize is responsible for.
func TestArenaNormalizeRejectsInvalidCapacity(t *testing.T) {
	a := newTestArena(t)

	_, err := a.Allocate(0)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = a.Allocate(a.chunkSize + 1)
	assert.ErrorIs(t, err, ErrCapacityTooLarge)
}

// TestArenaGrowsOnDemand verifies a second chunk is created once the
// first is exhausted by run-sized allocations.
func TestArenaGrowsOnDemand(t *testing.T) {
	a := newTestArena(t)

	_, err := a.Allocate(a.chunkSize)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Stats().Chunks)

	_, err = a.Allocate(a.pageSize)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Stats().Chunks, "arena must grow once the first chunk is full")
}

// TestArenaManySmallAllocationsDoNotExhaustDistinctChunks verifies many
// subpage-sized allocations at the same size class pack onto the same
// shared leaf page rather than each claiming a fresh one, and that a
// leaf spills over to a new one only once it is exhausted.
func TestArenaManySmallAllocationsDoNotExhaustDistinctChunks(t *testing.T) {
	a := newTestArena(t)

	const elemSize = 64
	const elemsPerLeaf = 8192 / elemSize // 128

	var regions []Region
	for i := 0; i < elemsPerLeaf; i++ {
		r, err := a.Allocate(elemSize)
		require.NoError(t, err)
		regions = append(regions, r)
	}

	firstLeaf := regions[0].Handle.memoryMapIdx()
	for i, r := range regions {
		assert.Equal(t, firstLeaf, r.Handle.memoryMapIdx(),
			"allocation %d should share the first leaf instead of claiming its own page", i)
		assert.Equal(t, i*elemSize, r.Offset-regions[0].Offset,
			"cells must pack at consecutive offsets within the shared leaf")
	}

	spill, err := a.Allocate(elemSize)
	require.NoError(t, err)
	assert.NotEqual(t, firstLeaf, spill.Handle.memoryMapIdx(),
		"the 129th 64B allocation must claim a new leaf once the first is full")
	regions = append(regions, spill)

	assert.Equal(t, 1, a.Stats().Chunks, "129x64B allocations should still fit in one 16MiB chunk")

	for _, r := range regions {
		require.NoError(t, a.Free(r))
	}
	assert.Equal(t, elemsPerLeaf+1, a.Stats().FreeCalls)
}

// TestArenaCloseReleasesChunks verifies Close invokes each chunk's
// release callback exactly once.
func TestArenaCloseReleasesChunks(t *testing.T) {
	a := newTestArena(t)
	_, err := a.Allocate(1024)
	require.NoError(t, err)

	require.NoError(t, a.Close())
}

// TestArenaRebucketMovesBetweenLists verifies a chunk migrates between
// fullness lists as its usage climbs, and lands in q000 once every
// allocation on it is freed again.
func TestArenaRebucketMovesBetweenLists(t *testing.T) {
	a := newTestArena(t)

	r, err := a.Allocate(a.chunkSize / 4)
	require.NoError(t, err)
	c := r.Chunk

	assert.Equal(t, 25, c.Usage())
	assert.NotContains(t, a.q000.chunks, c, "25%% used chunk must have left q000")

	require.NoError(t, a.Free(r))
	assert.Equal(t, 0, c.Usage())
	assert.Contains(t, a.q000.chunks, c)
}
