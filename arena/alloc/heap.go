package alloc

import (
	"errors"
	"fmt"

	"github.com/joshuapare/heapkit/arena"
	"github.com/joshuapare/heapkit/internal/format"
)

// Heap is a boundary-tag allocator over the heap region of an arena.
//
// All offsets handled by a Heap are region-relative: offset 0 is the first
// byte after the superblock page. A Ref addresses a block payload; the
// block's header sits one word below it.
type Heap struct {
	a  *arena.Arena
	dt DirtyTracker

	// Head of the explicit free list as a payload ref, 0 when empty.
	// Rebuilt from the boundary tags on every attach, never persisted.
	freeHead Ref

	chunk   int64 // extension granularity in bytes
	checked bool  // extra tag validation on Free and Payload

	// Statistics for testing and instrumentation.
	stats heapStats

	// Test hook: called after each successful extension (nil in production).
	onGrow func(int64)
}

// heapStats holds internal allocator counters.
type heapStats struct {
	AllocCalls     int   // Malloc() calls that performed an allocation
	FreeCalls      int   // successful Free() calls
	GrowCalls      int   // arena extensions
	GrowBytes      int64 // total bytes added by extensions
	BytesAllocated int64 // block bytes handed out, tags included
	BytesFreed     int64 // block bytes returned, tags included
}

// nopTracker stands in when the caller passes a nil DirtyTracker.
type nopTracker struct{}

func (nopTracker) Add(off, length int) {}

// New builds a Heap over a.
//
// A fresh arena (formatted size 0) is laid out with the prologue and
// epilogue sentinels and immediately extended by one chunk. An already
// formatted arena has its sentinels validated and its free list rebuilt by
// scanning the boundary tags; adjacent free blocks found in the image,
// possible after a torn flush, are merged during the scan.
//
// dt may be nil when dirty tracking is not needed, e.g. for in-memory
// arenas or read-mostly tooling.
func New(a *arena.Arena, dt DirtyTracker, cfg *Config) (*Heap, error) {
	if a == nil {
		return nil, errors.New("alloc: nil arena")
	}
	if cfg == nil {
		cfg = &DefaultConfig
	}
	if dt == nil {
		dt = nopTracker{}
	}

	chunk := cfg.ChunkSize
	if chunk == 0 {
		chunk = a.ChunkSize()
	}
	// An extension smaller than one block could not be stamped with legal
	// boundary tags.
	if chunk < format.MinBlockSize || chunk%format.BlockAlign != 0 {
		return nil, fmt.Errorf("alloc: invalid chunk size %d", chunk)
	}

	h := &Heap{
		a:       a,
		dt:      dt,
		chunk:   chunk,
		checked: cfg.Checked,
	}

	if a.FormattedSize() == 0 {
		if err := h.formatRegion(); err != nil {
			return nil, err
		}
	} else if err := h.attach(); err != nil {
		return nil, err
	}
	return h, nil
}

// Arena returns the arena this heap allocates from.
func (h *Heap) Arena() *arena.Arena { return h.a }

// ChunkSize returns the effective extension granularity in bytes.
func (h *Heap) ChunkSize() int64 { return h.chunk }

// Checked reports whether paranoid tag validation is enabled.
func (h *Heap) Checked() bool { return h.checked }

// formatRegion lays out an empty heap region: a zero pad word, the
// prologue header/footer pair, and the epilogue header, then extends the
// region by one chunk so the first allocation does not have to grow.
func (h *Heap) formatRegion() error {
	if err := h.a.Append(format.BootstrapSize); err != nil {
		return fmt.Errorf("%w: %v", ErrGrowFail, err)
	}

	b := h.a.Bytes()
	format.PutU64(b, format.HeaderSize+format.PadOffset, 0)
	format.PutTag(b, format.HeaderSize+format.PrologueHeaderOffset, format.Overhead, true)
	format.PutTag(b, format.HeaderSize+format.PrologueFooterOffset, format.Overhead, true)
	format.PutTag(b, format.HeaderSize+format.FirstBlockOffset, 0, true)
	h.dt.Add(format.HeaderSize, format.BootstrapSize)
	h.a.BumpFormattedSize(format.BootstrapSize)

	_, err := h.extend(h.chunk)
	return err
}

// attach validates the sentinel frame of a formatted region and rebuilds
// the explicit free list by walking the boundary tags from the prologue to
// the epilogue.
func (h *Heap) attach() error {
	formatted := h.a.FormattedSize()
	if formatted < format.BootstrapSize {
		return fmt.Errorf("%w: formatted size %d below bootstrap layout", ErrBadImage, formatted)
	}

	if size, allocated := h.tagAt(format.PrologueHeaderOffset); size != format.Overhead || !allocated {
		return fmt.Errorf("%w: bad prologue header", ErrBadImage)
	}
	if size, allocated := h.tagAt(format.PrologueFooterOffset); size != format.Overhead || !allocated {
		return fmt.Errorf("%w: bad prologue footer", ErrBadImage)
	}

	end := formatted - format.WordSize // epilogue header offset
	if size, allocated := h.tagAt(end); size != 0 || !allocated {
		return fmt.Errorf("%w: bad epilogue at 0x%x", ErrBadImage, end)
	}

	off := int64(format.FirstBlockOffset) // first block header
	for off < end {
		size, allocated := h.checkedBlockAt(off, end)
		if size < 0 {
			return fmt.Errorf("%w: bad block at 0x%x", ErrBadImage, off)
		}
		if allocated {
			off += size
			continue
		}

		// Merge runs of adjacent free blocks. Normal operation never
		// leaves two free neighbors, but a torn flush can.
		runStart, runSize := off, size
		off += size
		for off < end {
			nsize, nalloc := h.checkedBlockAt(off, end)
			if nsize < 0 {
				return fmt.Errorf("%w: bad block at 0x%x", ErrBadImage, off)
			}
			if nalloc {
				break
			}
			runSize += nsize
			off += nsize
		}
		if runSize != size {
			h.writeBlock(runStart+format.WordSize, runSize, false)
		}
		h.insertFree(runStart + format.WordSize)
	}
	return nil
}

// checkedBlockAt validates the block whose header is at off against the
// region bound and its own footer. Returns a negative size when the block
// is malformed.
func (h *Heap) checkedBlockAt(off, end int64) (int64, bool) {
	size, allocated := h.tagAt(off)
	if size < format.MinBlockSize || off+size > end {
		return -1, false
	}
	fsize, falloc := h.tagAt(off + size - format.WordSize)
	if fsize != size || falloc != allocated {
		return -1, false
	}
	return size, allocated
}

// tagAt reads the boundary tag at a region-relative offset.
func (h *Heap) tagAt(off int64) (size int64, allocated bool) {
	return format.ReadTag(h.a.Bytes(), int(format.HeaderSize+off))
}

// putTag writes a boundary tag at a region-relative offset and marks the
// word dirty.
func (h *Heap) putTag(off, size int64, allocated bool) {
	format.PutTag(h.a.Bytes(), int(format.HeaderSize+off), size, allocated)
	h.dt.Add(int(format.HeaderSize+off), format.WordSize)
}

// writeBlock stamps matching header and footer tags for the block whose
// payload starts at ref.
func (h *Heap) writeBlock(ref Ref, size int64, allocated bool) {
	h.putTag(ref-format.WordSize, size, allocated)
	h.putTag(ref+size-format.Overhead, size, allocated)
}

// blockSize returns the size recorded in the header of the block at ref.
func (h *Heap) blockSize(ref Ref) int64 {
	size, _ := h.tagAt(ref - format.WordSize)
	return size
}

// nextBlock steps to the payload ref of the block after ref.
func (h *Heap) nextBlock(ref Ref) Ref {
	return ref + h.blockSize(ref)
}

// prevBlock steps to the payload ref of the block before ref, sized via the
// previous block's footer.
func (h *Heap) prevBlock(ref Ref) Ref {
	size, _ := h.tagAt(ref - format.Overhead)
	return ref - size
}

// validAllocated checks that ref addresses an allocated block inside the
// formatted region and returns its size. In checked mode the block footer
// must also agree with the header.
func (h *Heap) validAllocated(ref Ref) (int64, error) {
	formatted := h.a.FormattedSize()
	if ref < format.FirstPayloadOffset || ref%format.BlockAlign != 0 || ref >= formatted {
		return 0, fmt.Errorf("%w: 0x%x", ErrBadRef, ref)
	}
	size, allocated := h.tagAt(ref - format.WordSize)
	if size < format.MinBlockSize || ref+size > formatted {
		return 0, fmt.Errorf("%w: 0x%x", ErrBadRef, ref)
	}
	if !allocated {
		return 0, fmt.Errorf("%w: 0x%x", ErrNotAllocated, ref)
	}
	if h.checked {
		fsize, falloc := h.tagAt(ref + size - format.Overhead)
		if fsize != size || !falloc {
			return 0, fmt.Errorf("%w: 0x%x: footer does not match header", ErrBadRef, ref)
		}
	}
	return size, nil
}
