package format

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/buf"
)

// Block is a decoded view of one boundary-tagged block in the heap region.
//
// Offsets are heap-relative: offset 0 is the first byte after the superblock
// page. The payload slice aliases the underlying buffer, so writes through
// it mutate the image directly.
type Block struct {
	Offset    int64  // heap-relative offset of the header word
	Size      int64  // full block size including both tags; 0 for the epilogue
	Allocated bool   // allocated flag from the header tag
	Payload   []byte // bytes between the tags; nil for the epilogue
}

// PayloadRef returns the heap-relative offset of the block's payload.
func (bl Block) PayloadRef() int64 {
	return bl.Offset + WordSize
}

// PayloadSize returns the usable bytes between the tags.
func (bl Block) PayloadSize() int64 {
	if bl.Size < Overhead {
		return 0
	}
	return bl.Size - Overhead
}

// ParseBlockAt decodes the block whose header sits at heap-relative offset
// off. The buffer must be the whole image, superblock page included.
//
// The footer is bounds-checked but not compared against the header; a
// mismatch is a consistency finding for the checker, not a parse failure.
func ParseBlockAt(b []byte, off int64) (Block, error) {
	abs := off + HeaderSize
	if off < 0 || !buf.Has(b, int(abs), WordSize) {
		return Block{}, fmt.Errorf("block at 0x%x: %w", off, ErrTruncated)
	}
	// Headers sit one word before a BlockAlign boundary.
	if (off-WordSize)%BlockAlign != 0 {
		return Block{}, fmt.Errorf("block at 0x%x: %w", off, ErrMisaligned)
	}

	// SizeMask keeps tag sizes on BlockAlign boundaries, so any nonzero
	// size read here is at least Overhead; corrupt raw words surface as a
	// footer mismatch for the checker or as a bounds failure below.
	size, allocated := ReadTag(b, int(abs))
	if size == 0 {
		// Epilogue: a bare header word with no footer or payload.
		return Block{Offset: off, Size: 0, Allocated: allocated}, nil
	}
	if size < 0 {
		// Tag word with the sign bit set.
		return Block{}, fmt.Errorf("block at 0x%x: size %d: %w", off, size, ErrBadSize)
	}
	end, ok := buf.AddI64(abs, size)
	if !ok || end > int64(len(b)) {
		return Block{}, fmt.Errorf("block at 0x%x: size %d: %w", off, size, ErrTruncated)
	}

	return Block{
		Offset:    off,
		Size:      size,
		Allocated: allocated,
		Payload:   b[abs+WordSize : abs+size-WordSize],
	}, nil
}
