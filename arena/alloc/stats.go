package alloc

import "github.com/joshuapare/heapkit/internal/format"

// Stats is a point-in-time summary of heap state and lifetime counters.
// Sizes count whole blocks, boundary tags included.
type Stats struct {
	AllocCalls     int   // Malloc() calls that performed an allocation
	FreeCalls      int   // successful Free() calls
	GrowCalls      int   // arena extensions
	GrowBytes      int64 // total bytes added by extensions
	BytesAllocated int64 // lifetime block bytes handed out
	BytesFreed     int64 // lifetime block bytes returned

	HeapSize    int64 // formatted region bytes, sentinel frame included
	FreeBlocks  int   // blocks currently on the free list
	FreeBytes   int64 // total size of free blocks
	LargestFree int64 // size of the largest free block
	InUseBytes  int64 // total size of allocated blocks
}

// Stats walks the free list and returns current figures together with the
// lifetime counters.
func (h *Heap) Stats() Stats {
	s := Stats{
		AllocCalls:     h.stats.AllocCalls,
		FreeCalls:      h.stats.FreeCalls,
		GrowCalls:      h.stats.GrowCalls,
		GrowBytes:      h.stats.GrowBytes,
		BytesAllocated: h.stats.BytesAllocated,
		BytesFreed:     h.stats.BytesFreed,
		HeapSize:       h.a.FormattedSize(),
	}

	for ref := h.freeHead; ref != 0; ref = h.freeNext(ref) {
		size := h.blockSize(ref)
		s.FreeBlocks++
		s.FreeBytes += size
		if size > s.LargestFree {
			s.LargestFree = size
		}
	}

	// Everything between the prologue pair and the epilogue is either on
	// the free list or allocated.
	s.InUseBytes = s.HeapSize - format.BootstrapSize - s.FreeBytes
	return s
}
