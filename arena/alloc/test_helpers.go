package alloc

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/arena"
	"github.com/joshuapare/heapkit/arena/dirty"
	"github.com/joshuapare/heapkit/internal/format"
)

// ============================================================================
// Heap Creation Utilities
// ============================================================================

// newTestHeap creates a file-backed heap in a temp directory with the real
// dirty tracker and default config. Cleanup closes the arena.
func newTestHeap(t testing.TB) *Heap {
	t.Helper()
	return newTestHeapConfig(t, nil)
}

// newTestHeapConfig is newTestHeap with an explicit allocator config.
func newTestHeapConfig(t testing.TB, cfg *Config) *Heap {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.heap")
	require.NoError(t, arena.Create(path, nil), "failed to create arena file")

	a, err := arena.Open(path)
	require.NoError(t, err, "failed to open arena")
	t.Cleanup(func() { a.Close() })

	h, err := New(a, dirty.NewTracker(a), cfg)
	require.NoError(t, err, "failed to create heap")
	return h
}

// newMemHeap creates an in-memory heap, no file and no tracker. Useful for
// tests that only exercise block arithmetic.
func newMemHeap(t testing.TB) *Heap {
	t.Helper()

	a, err := arena.OpenMem(nil)
	require.NoError(t, err, "failed to create in-memory arena")
	t.Cleanup(func() { a.Close() })

	h, err := New(a, nil, nil)
	require.NoError(t, err, "failed to create heap")
	return h
}

// reopenHeap closes nothing; it opens the image at path a second time and
// attaches a fresh Heap, exercising the free-list rebuild.
func reopenHeap(t testing.TB, path string) *Heap {
	t.Helper()

	a, err := arena.Open(path)
	require.NoError(t, err, "failed to reopen arena")
	t.Cleanup(func() { a.Close() })

	h, err := New(a, dirty.NewTracker(a), nil)
	require.NoError(t, err, "failed to attach heap")
	return h
}

// ============================================================================
// Mock Dirty Tracker
// ============================================================================

// DirtyCall records a single call to Add().
type DirtyCall struct {
	Off int
	Len int
}

// MockDirtyTracker records Add() calls for assertions instead of flushing.
type MockDirtyTracker struct {
	Calls []DirtyCall
}

func newMockDirtyTracker() *MockDirtyTracker {
	return &MockDirtyTracker{Calls: make([]DirtyCall, 0, 32)}
}

// Add records a dirty region.
func (m *MockDirtyTracker) Add(off, length int) {
	m.Calls = append(m.Calls, DirtyCall{Off: off, Len: length})
}

// WasCalledAt returns true if any recorded range covers off.
func (m *MockDirtyTracker) WasCalledAt(off int) bool {
	for _, call := range m.Calls {
		if call.Off <= off && off < call.Off+call.Len {
			return true
		}
	}
	return false
}

// CallCount returns the total number of Add() calls.
func (m *MockDirtyTracker) CallCount() int {
	return len(m.Calls)
}

// Reset clears all recorded calls.
func (m *MockDirtyTracker) Reset() {
	m.Calls = m.Calls[:0]
}

// ============================================================================
// Block and List Inspection
// ============================================================================

// getBlock reads the header tag of the block whose payload is at ref.
func getBlock(h *Heap, ref Ref) (size int64, allocated bool) {
	return h.tagAt(ref - format.WordSize)
}

// rawPutTag stomps a tag directly, bypassing the tracker. For corruption
// tests only.
func rawPutTag(h *Heap, off int64, size int64, allocated bool) {
	format.PutTag(h.a.Bytes(), int(format.HeaderSize+off), size, allocated)
}

// freeListRefs walks the explicit list from the head and returns the refs
// in list order.
func freeListRefs(h *Heap) []Ref {
	var refs []Ref
	for ref := h.freeHead; ref != 0; ref = h.freeNext(ref) {
		refs = append(refs, ref)
		if len(refs) > 1<<20 {
			panic("free list does not terminate")
		}
	}
	return refs
}

// ============================================================================
// Invariant Assertions
// ============================================================================

// assertHeapInvariants walks the whole region and the free list and fails
// the test on the first violation: mismatched tag pairs, broken tiling,
// adjacent free blocks, or a free list that disagrees with the tags.
func assertHeapInvariants(t testing.TB, h *Heap) {
	t.Helper()

	formatted := h.a.FormattedSize()
	end := formatted - format.WordSize

	size, allocated := h.tagAt(format.PrologueHeaderOffset)
	require.True(t, allocated && size == format.Overhead,
		"prologue header damaged: size=%d allocated=%v", size, allocated)
	size, allocated = h.tagAt(end)
	require.True(t, allocated && size == 0,
		"epilogue damaged: size=%d allocated=%v", size, allocated)

	freeSet := make(map[Ref]bool)
	prevFree := false
	for off := int64(format.FirstBlockOffset); off < end; {
		size, allocated := h.tagAt(off)
		require.GreaterOrEqual(t, size, int64(format.MinBlockSize),
			"undersized block at 0x%x", off)
		require.LessOrEqual(t, off+size, end,
			"block at 0x%x overruns the epilogue", off)

		fsize, falloc := h.tagAt(off + size - format.WordSize)
		require.True(t, fsize == size && falloc == allocated,
			"footer mismatch at 0x%x: header (%d,%v) footer (%d,%v)",
			off, size, allocated, fsize, falloc)

		if !allocated {
			require.False(t, prevFree, "adjacent free blocks at 0x%x", off)
			freeSet[off+format.WordSize] = true
		}
		prevFree = !allocated
		off += size
	}

	seen := make(map[Ref]bool)
	prev := Ref(0)
	for ref := h.freeHead; ref != 0; ref = h.freeNext(ref) {
		require.False(t, seen[ref], "free list cycle at 0x%x", ref)
		seen[ref] = true
		require.True(t, freeSet[ref], "free-list node 0x%x is not a free block", ref)
		assert.Equal(t, prev, h.freePrev(ref), "prev link broken at 0x%x", ref)
		prev = ref
	}
	require.Len(t, seen, len(freeSet), "free blocks missing from the free list")
}

// ============================================================================
// Test Hook Setup
// ============================================================================

// setupGrowCounter installs a test hook counting arena extensions.
// Returns a pointer to the counter updated on each extension.
func setupGrowCounter(h *Heap) *int {
	growCount := 0
	h.onGrow = func(int64) { growCount++ }
	return &growCount
}

// mustMalloc allocates or fails the test.
func mustMalloc(t testing.TB, h *Heap, size int64) Ref {
	t.Helper()
	ref, _, err := h.Malloc(size)
	require.NoError(t, err, "Malloc(%d) failed", size)
	require.NotZero(t, ref, "Malloc(%d) returned zero ref", size)
	return ref
}

// fillPayload writes a recognizable pattern into the payload at ref.
func fillPayload(t testing.TB, h *Heap, ref Ref, seed byte) {
	t.Helper()
	buf, err := h.Payload(ref)
	require.NoError(t, err)
	for i := range buf {
		buf[i] = seed + byte(i)
	}
}

// checkPayload verifies the pattern written by fillPayload.
func checkPayload(t testing.TB, h *Heap, ref Ref, seed byte) {
	t.Helper()
	buf, err := h.Payload(ref)
	require.NoError(t, err)
	for i := range buf {
		if buf[i] != seed+byte(i) {
			require.Fail(t, "payload corrupted",
				fmt.Sprintf("ref 0x%x byte %d: got 0x%02x want 0x%02x", ref, i, buf[i], seed+byte(i)))
		}
	}
}
