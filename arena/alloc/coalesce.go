package alloc

import "github.com/joshuapare/heapkit/internal/format"

// coalesce merges the free block at ref with whichever of its neighbors is
// free, unlinking absorbed neighbors from the list, then pushes the merged
// block onto the list head. Returns the ref of the merged block.
//
// The prologue and epilogue sentinels are always allocated, so neither
// direction needs a region-boundary check.
func (h *Heap) coalesce(ref Ref) Ref {
	size := h.blockSize(ref)
	_, prevAllocated := h.tagAt(ref - format.Overhead)        // previous block's footer
	_, nextAllocated := h.tagAt(ref + size - format.WordSize) // next block's header

	switch {
	case prevAllocated && nextAllocated:
		// Nothing to merge.

	case prevAllocated && !nextAllocated:
		next := ref + size
		h.removeFree(next)
		size += h.blockSize(next)
		h.writeBlock(ref, size, false)

	case !prevAllocated && nextAllocated:
		prev := h.prevBlock(ref)
		h.removeFree(prev)
		size += h.blockSize(prev)
		ref = prev
		h.writeBlock(ref, size, false)

	default: // both neighbors free
		prev, next := h.prevBlock(ref), ref+size
		h.removeFree(prev)
		h.removeFree(next)
		size += h.blockSize(prev) + h.blockSize(next)
		ref = prev
		h.writeBlock(ref, size, false)
	}

	h.insertFree(ref)
	return ref
}
