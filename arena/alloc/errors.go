package alloc

import "errors"

var (
	// ErrNoSpace is returned when no free block is large enough and the
	// arena cannot be grown to satisfy the request.
	ErrNoSpace = errors.New("alloc: no free block large enough")

	// ErrBadRef is returned when a block reference is out of range,
	// misaligned, or does not resolve to a plausible block.
	ErrBadRef = errors.New("alloc: bad block reference")

	// ErrBadRequest is returned when an allocation size is negative or too
	// large to carry the block overhead.
	ErrBadRequest = errors.New("alloc: invalid request size")

	// ErrNotAllocated is returned when an operation expects an allocated
	// block but the header at the reference is marked free.
	ErrNotAllocated = errors.New("alloc: block is not allocated")

	// ErrGrowFail is returned when extending the arena fails.
	ErrGrowFail = errors.New("alloc: grow failed")

	// ErrBadImage is returned when attaching to a region whose structure
	// is too damaged to build a free list from.
	ErrBadImage = errors.New("alloc: malformed heap image")
)
