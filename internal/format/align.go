package format

// Alignment utilities for the heap block layout. Block sizes and payload
// offsets must sit on BlockAlign (double word) boundaries.

// AlignBlock returns n aligned up to the next BlockAlign boundary.
// Because one word is 8 bytes, this is also the round-up to an even word
// count used when sizing heap extensions.
//
// Example:
//
//	AlignBlock(1)  = 16
//	AlignBlock(16) = 16
//	AlignBlock(17) = 32
func AlignBlock(n int64) int64 {
	return (n + BlockAlignMask) & ^int64(BlockAlignMask)
}

// AdjustRequest converts a requested payload size into the full block size to
// carve out: payload plus Overhead, aligned up to BlockAlign. The result is
// never below MinBlockSize for any positive request, which leaves room for
// the two free-list links the block must hold once it is freed.
//
// Example:
//
//	AdjustRequest(1)  = 32
//	AdjustRequest(16) = 32
//	AdjustRequest(17) = 48
//	AdjustRequest(24) = 48
func AdjustRequest(n int64) int64 {
	return AlignBlock(n + Overhead)
}
