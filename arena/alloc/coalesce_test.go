package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Eager coalescing. Each test pins neighbors with live allocations so that
// exactly one of the four merge shapes can occur, then asserts the merged
// block's address and exact size.

// coalesceFixture carves four 128-byte blocks out of a fresh heap and
// returns their refs. The chunk remainder stays free after d.
func coalesceFixture(t *testing.T) (h *Heap, a, b, c, d Ref) {
	t.Helper()
	h = newTestHeap(t)
	a = mustMalloc(t, h, 112) // block size 128
	b = mustMalloc(t, h, 112)
	c = mustMalloc(t, h, 112)
	d = mustMalloc(t, h, 112)
	return h, a, b, c, d
}

// TestCoalesceNoNeighborsFree: both neighbors allocated, the freed block
// keeps its own address and size.
func TestCoalesceNoNeighborsFree(t *testing.T) {
	h, a, b, c, _ := coalesceFixture(t)

	require.NoError(t, h.Free(b))

	size, allocated := getBlock(h, b)
	assert.False(t, allocated)
	assert.Equal(t, int64(128), size, "no merge possible, size must be unchanged")
	assert.Equal(t, b, freeListRefs(h)[0], "freed block must be the new list head")

	_, _ = a, c
	assertHeapInvariants(t, h)
}

// TestCoalesceWithNext: the following block is free, the freed block keeps
// its address and absorbs the follower.
func TestCoalesceWithNext(t *testing.T) {
	h, _, b, c, _ := coalesceFixture(t)

	require.NoError(t, h.Free(c))
	require.NoError(t, h.Free(b))

	size, allocated := getBlock(h, b)
	assert.False(t, allocated)
	assert.Equal(t, int64(128+128), size, "merged size must be the exact sum")

	refs := freeListRefs(h)
	assert.Equal(t, b, refs[0])
	assert.NotContains(t, refs, c, "absorbed block must leave the list")
	assertHeapInvariants(t, h)
}

// TestCoalesceWithPrev: the preceding block is free, the freed block
// dissolves into it and the merged block answers to the lower address.
func TestCoalesceWithPrev(t *testing.T) {
	h, _, b, c, _ := coalesceFixture(t)

	require.NoError(t, h.Free(b))
	require.NoError(t, h.Free(c))

	size, allocated := getBlock(h, b)
	assert.False(t, allocated)
	assert.Equal(t, int64(128+128), size)

	refs := freeListRefs(h)
	assert.Equal(t, b, refs[0], "the merged block is re-inserted at the head under the lower ref")
	assert.NotContains(t, refs, c)
	assertHeapInvariants(t, h)
}

// TestCoalesceBothNeighborsFree: freeing the middle block fuses three
// blocks into one.
func TestCoalesceBothNeighborsFree(t *testing.T) {
	h, a, b, c, _ := coalesceFixture(t)

	require.NoError(t, h.Free(a))
	require.NoError(t, h.Free(c))
	require.NoError(t, h.Free(b))

	size, allocated := getBlock(h, a)
	assert.False(t, allocated)
	assert.Equal(t, int64(3*128), size, "triple merge must sum all three blocks")

	refs := freeListRefs(h)
	assert.Equal(t, a, refs[0])
	assert.NotContains(t, refs, b)
	assert.NotContains(t, refs, c)
	assertHeapInvariants(t, h)
}

// TestCoalesceStopsAtSentinels: the prologue and epilogue are allocated
// sentinels, so freeing the very first or very last block must not reach
// beyond the region.
func TestCoalesceStopsAtSentinels(t *testing.T) {
	h := newTestHeap(t)

	// One allocation covering the whole initial chunk touches the
	// prologue on the left and the epilogue on the right.
	ref := mustMalloc(t, h, 4080)
	require.NoError(t, h.Free(ref))

	size, allocated := getBlock(h, ref)
	assert.False(t, allocated)
	assert.Equal(t, int64(4096), size, "merging must stop at both sentinels")
	assertHeapInvariants(t, h)
}

// TestCoalesceNeverLeavesAdjacentFree frees every other block and then the
// gaps, in a pattern that exercises all merge shapes back to back.
func TestCoalesceNeverLeavesAdjacentFree(t *testing.T) {
	h := newTestHeap(t)

	refs := make([]Ref, 8)
	for i := range refs {
		refs[i] = mustMalloc(t, h, 112)
	}
	for i := 0; i < len(refs); i += 2 {
		require.NoError(t, h.Free(refs[i]))
		assertHeapInvariants(t, h)
	}
	for i := 1; i < len(refs); i += 2 {
		require.NoError(t, h.Free(refs[i]))
		assertHeapInvariants(t, h)
	}

	stats := h.Stats()
	assert.Equal(t, 1, stats.FreeBlocks, "a fully freed region collapses to a single block")
	assert.Equal(t, int64(4096), stats.FreeBytes)
}
