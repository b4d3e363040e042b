package alloc

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

// Malloc allocates a block with at least size usable bytes and returns its
// ref together with the payload slice. The payload may be longer than
// requested because block sizes are rounded up to the 16-byte grid; its
// contents are unspecified, not zeroed.
//
// A zero size is a no-op returning a zero Ref and a nil payload. When no
// free block fits, the arena is extended by the larger of the adjusted size
// and the chunk size; if that extension fails the error wraps ErrNoSpace.
func (h *Heap) Malloc(size int64) (Ref, []byte, error) {
	if size == 0 {
		return 0, nil, nil
	}
	if size < 0 {
		return 0, nil, fmt.Errorf("%w: %d", ErrBadRequest, size)
	}
	// The adjusted size must survive the overhead add and the align round-up.
	if _, ok := buf.AddI64(size, format.Overhead+format.BlockAlignMask); !ok {
		return 0, nil, fmt.Errorf("%w: %d", ErrBadRequest, size)
	}
	h.stats.AllocCalls++

	asize := format.AdjustRequest(size)

	ref := h.findFit(asize)
	if ref == 0 {
		extendBy := asize
		if extendBy < h.chunk {
			extendBy = h.chunk
		}
		var err error
		ref, err = h.extend(extendBy)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrNoSpace, err)
		}
	}

	h.place(ref, asize)
	h.stats.BytesAllocated += h.blockSize(ref)
	return ref, h.payloadSlice(ref), nil
}

// place converts the free block at ref into an allocated block of asize
// bytes. A remainder of at least MinBlockSize is split off as a new free
// block and pushed onto the list head; smaller remainders stay inside the
// allocated block.
func (h *Heap) place(ref Ref, asize int64) {
	csize := h.blockSize(ref)
	h.removeFree(ref)

	if csize-asize >= format.MinBlockSize {
		h.writeBlock(ref, asize, true)
		rest := ref + asize
		h.writeBlock(rest, csize-asize, false)
		h.insertFree(rest)
	} else {
		h.writeBlock(ref, csize, true)
	}
}

// Free returns the block at ref to the free list, merging it with any free
// neighbor. The ref must come from a Malloc on the same image and must not
// have been freed already; anything else fails with ErrBadRef or
// ErrNotAllocated before the region is touched. Detection is best effort,
// see Config.Checked for the stricter mode.
func (h *Heap) Free(ref Ref) error {
	size, err := h.validAllocated(ref)
	if err != nil {
		return err
	}
	h.stats.FreeCalls++
	h.stats.BytesFreed += size

	h.writeBlock(ref, size, false)
	h.coalesce(ref)
	return nil
}

// Payload resolves ref to the usable byte slice of its allocated block.
//
// The slice aliases the arena buffer directly; it is invalidated by any
// operation that can grow the arena, so callers must not hold it across
// Malloc.
func (h *Heap) Payload(ref Ref) ([]byte, error) {
	if _, err := h.validAllocated(ref); err != nil {
		return nil, err
	}
	return h.payloadSlice(ref), nil
}

// payloadSlice returns the usable bytes of the allocated block at ref,
// aliasing the arena buffer.
func (h *Heap) payloadSlice(ref Ref) []byte {
	size := h.blockSize(ref)
	abs := format.HeaderSize + ref
	return h.a.Bytes()[abs : abs+size-format.Overhead]
}
