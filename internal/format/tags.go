package format

// Boundary tag encoding. A tag packs the full block size (a multiple of
// BlockAlign) with the allocated flag in the low bit:
//
//	Bits 63..4  block size
//	Bit  0      allocated
//
// Every block carries the same tag twice: a header word at the block start
// and a footer word at the block end. The footer lets the block before be
// sized without any auxiliary index, which is what makes constant-time
// backward coalescing possible.

// PackTag combines a block size and an allocated flag into a tag word.
func PackTag(size int64, allocated bool) uint64 {
	tag := uint64(size)
	if allocated {
		tag |= AllocBit
	}
	return tag
}

// TagSize extracts the block size from a tag word.
func TagSize(tag uint64) int64 {
	return int64(tag & SizeMask)
}

// TagAllocated reports whether a tag word has the allocated bit set.
func TagAllocated(tag uint64) bool {
	return tag&AllocBit != 0
}

// ReadTag reads and unpacks the tag word at the specified buffer offset.
func ReadTag(b []byte, off int) (size int64, allocated bool) {
	tag := ReadU64(b, off)
	return TagSize(tag), TagAllocated(tag)
}

// PutTag packs and writes a tag word at the specified buffer offset.
func PutTag(b []byte, off int, size int64, allocated bool) {
	PutU64(b, off, PackTag(size, allocated))
}
