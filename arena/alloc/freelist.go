package alloc

import "github.com/joshuapare/heapkit/internal/format"

// Explicit free list. Free blocks repurpose their payload for two link
// words, next at payload+0 and prev at payload+8, each holding the payload
// ref of another free block or 0 for none. The minimum block size of 32
// bytes guarantees every free block has room for both links.

// freeNext returns the ref of the free block after ref in the list.
func (h *Heap) freeNext(ref Ref) Ref {
	return format.ReadI64(h.a.Bytes(), int(format.HeaderSize+ref))
}

// freePrev returns the ref of the free block before ref in the list.
func (h *Heap) freePrev(ref Ref) Ref {
	return format.ReadI64(h.a.Bytes(), int(format.HeaderSize+ref+format.WordSize))
}

func (h *Heap) setFreeNext(ref, next Ref) {
	format.PutI64(h.a.Bytes(), int(format.HeaderSize+ref), next)
	h.dt.Add(int(format.HeaderSize+ref), format.WordSize)
}

func (h *Heap) setFreePrev(ref, prev Ref) {
	format.PutI64(h.a.Bytes(), int(format.HeaderSize+ref+format.WordSize), prev)
	h.dt.Add(int(format.HeaderSize+ref+format.WordSize), format.WordSize)
}

// insertFree pushes the free block at ref onto the head of the list.
func (h *Heap) insertFree(ref Ref) {
	h.setFreeNext(ref, h.freeHead)
	h.setFreePrev(ref, 0)
	if h.freeHead != 0 {
		h.setFreePrev(h.freeHead, ref)
	}
	h.freeHead = ref
}

// removeFree unlinks the free block at ref from the list.
func (h *Heap) removeFree(ref Ref) {
	prev, next := h.freePrev(ref), h.freeNext(ref)
	if prev == 0 {
		h.freeHead = next
	} else {
		h.setFreeNext(prev, next)
	}
	if next != 0 {
		h.setFreePrev(next, prev)
	}
}

// findFit returns the first free block with size >= asize, walking the list
// from its head, or 0 when none fits.
func (h *Heap) findFit(asize int64) Ref {
	for ref := h.freeHead; ref != 0; ref = h.freeNext(ref) {
		if h.blockSize(ref) >= asize {
			return ref
		}
	}
	return 0
}
