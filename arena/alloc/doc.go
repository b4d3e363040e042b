// Package alloc provides block allocation and free-list management for heap
// arenas.
//
// # Overview
//
// This package implements a classic boundary-tag allocator over the flat byte
// region managed by the arena package. Every block carries an 8-byte header
// and an identical 8-byte footer packing its size with an allocated bit, so
// both neighbors of any block can be inspected in constant time. Free blocks
// are linked into a single explicit doubly-linked list threaded through their
// own payloads.
//
// # Heap Interface
//
// The core type is Heap, which supports:
//
//   - Malloc(size): Allocate a block with at least size usable bytes
//   - Free(ref): Return a previously allocated block for reuse
//   - Payload(ref): Resolve a reference to its usable byte slice
//   - Check(): Audit the region and report structural damage
//   - Stats(): Observe allocation counters and free-list totals
//
// # Allocation Policy
//
//   - First fit: the free list is searched from its head and the first block
//     large enough wins.
//   - Splitting: when the winning block leaves at least 32 spare bytes, the
//     tail is carved into a new free block; smaller remainders are absorbed.
//   - Eager coalescing: Free immediately merges the released block with any
//     free neighbor, so the region never holds two adjacent free blocks.
//   - Growth: when no block fits, the arena is extended by the larger of the
//     adjusted request and the configured chunk size.
//
// # Block References
//
// Block references (Ref) are int64 offsets of the block payload relative to
// the start of the heap region, which begins immediately after the 4KB
// superblock page:
//
//	Absolute file offset = 0x1000 + Ref
//
// Ref 0 is never a valid allocation; it doubles as the free-list terminator.
//
// # Alignment Requirements
//
// Block sizes are multiples of 16 and at least 32 bytes, leaving a minimum
// payload of 16 bytes. Payloads are 16-byte aligned within the region. The
// region is framed by an allocated prologue pair and a zero-size allocated
// epilogue header, which terminate coalescing without boundary checks.
//
// # Usage Example
//
//	a, err := arena.Create("app.heap", nil)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//
//	dt := dirty.NewTracker(a)
//	h, err := alloc.New(a, dt, nil)
//	if err != nil {
//	    return err
//	}
//
//	ref, buf, err := h.Malloc(64)
//	if err != nil {
//	    return err
//	}
//	copy(buf, payload)
//
//	// Later, release the block.
//	err = h.Free(ref)
//
// # Thread Safety
//
// Heap instances are not thread-safe. Callers must synchronize access
// externally.
//
// # Related Packages
//
//   - github.com/joshuapare/heapkit/arena: Backing file, superblock, growth
//   - github.com/joshuapare/heapkit/arena/dirty: Tracks modified pages for flushing
//   - github.com/joshuapare/heapkit/internal/format: Binary format constants
package alloc
