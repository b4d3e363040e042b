package arena

import (
	"errors"
	"fmt"
	"io"

	"github.com/joshuapare/heapkit/internal/format"
)

// ErrUnformatted is returned when an operation needs block structure but the
// image has never been formatted (formatted size zero).
var ErrUnformatted = errors.New("arena: unformatted image")

// BlockIterator walks the boundary-tagged blocks of the formatted heap
// region in address order: prologue first, epilogue last.
type BlockIterator struct {
	a    *Arena
	off  int64 // heap-relative offset of the next block header
	done bool
}

// Blocks returns an iterator over the formatted region's blocks.
func (a *Arena) Blocks() (*BlockIterator, error) {
	if a.data == nil {
		return nil, ErrClosed
	}
	if a.FormattedSize() == 0 {
		return nil, ErrUnformatted
	}
	return &BlockIterator{a: a, off: format.PrologueHeaderOffset}, nil
}

// Next returns the next block in address order. The epilogue (size zero) is
// the final block; afterwards Next returns io.EOF. A structural error stops
// the iteration permanently.
func (it *BlockIterator) Next() (format.Block, error) {
	if it.done {
		return format.Block{}, io.EOF
	}

	// The only legal place for a header to start is at or before the
	// epilogue slot, one word shy of the formatted end.
	last := it.a.FormattedSize() - format.WordSize
	if it.off > last {
		it.done = true
		return format.Block{}, fmt.Errorf("arena: block run past region end at 0x%x: %w",
			it.off, format.ErrTruncated)
	}

	bl, err := format.ParseBlockAt(it.a.Bytes(), it.off)
	if err != nil {
		it.done = true
		return format.Block{}, err
	}
	if bl.Size == 0 {
		// Epilogue reached; well-formed regions place it exactly at the end.
		it.done = true
		return bl, nil
	}

	it.off += bl.Size
	return bl, nil
}
