// Package format houses the low-level block layout of a heap image: boundary
// tags, alignment rules, and the superblock field offsets. The goal is to keep
// the encoding focused and allocation-free so higher-level packages can
// orchestrate the data in a more ergonomic form.
package format

var (
	// SuperSignature is the four-byte signature at the start of every heap
	// image. Layout (little-endian):
	//   0x00  'h' 'e' 'a' 'p'
	SuperSignature = []byte{'h', 'e', 'a', 'p'}
)

const (
	// HeaderSize is the size of the superblock page at the start of an image.
	// The heap region begins immediately after it, so heap-relative offsets
	// are file offsets minus HeaderSize.
	HeaderSize = 4096

	// WordSize is the size of one boundary tag. Headers and footers are each
	// a single little-endian uint64 word.
	WordSize = 8

	// BlockAlign is the required alignment of payload offsets and block
	// sizes. Every block size is a multiple of this double word.
	BlockAlign = 16

	// BlockAlignMask is the bitmask used for aligning to BlockAlign
	// boundaries (BlockAlign - 1).
	BlockAlignMask = BlockAlign - 1

	// Overhead is the bookkeeping cost of one block: header plus footer.
	Overhead = 2 * WordSize

	// MinBlockSize is the smallest representable block: header, two
	// free-list link words, and footer. Split remainders below this are
	// absorbed into the allocation instead of forming a block.
	MinBlockSize = 32

	// DefaultChunkSize is the minimum heap extension. Requests larger than
	// one chunk extend by their own adjusted size instead.
	DefaultChunkSize = 0x1000

	// AllocBit is the low tag bit marking a block as allocated. Sizes are
	// BlockAlign-aligned, so the low four tag bits are free for flags.
	AllocBit = 0x1

	// SizeMask strips the flag bits from a tag, leaving the block size.
	SizeMask = ^uint64(BlockAlignMask)

	// Bootstrap layout of a freshly formatted heap region, in heap-relative
	// offsets:
	//   0x00  8  pad word (keeps payloads BlockAlign-aligned)
	//   0x08  8  prologue header, size Overhead, allocated
	//   0x10  8  prologue footer
	//   0x18  8  epilogue header, size 0, allocated
	PadOffset            = 0
	PrologueHeaderOffset = WordSize
	PrologueFooterOffset = 2 * WordSize
	BootstrapSize        = 4 * WordSize

	// FirstBlockOffset is the heap-relative offset of the first real block's
	// header: the position the epilogue occupies before the first extension.
	FirstBlockOffset = 3 * WordSize

	// FirstPayloadOffset is the heap-relative offset of the first possible
	// payload. No valid payload ref is ever smaller, which is why 0 can
	// serve as both the nil ref and the free-list terminator.
	FirstPayloadOffset = FirstBlockOffset + WordSize

	// Superblock field offsets. The remainder of the page is reserved and
	// must be zero.
	//   0x000  4  'h' 'e' 'a' 'p'
	//   0x004  4  Version
	//   0x008  4  Primary sequence number
	//   0x00C  4  Secondary sequence number
	//   0x010  8  Last write timestamp (Unix nanoseconds)
	//   0x018  8  Formatted size (heap region bytes in use past the header)
	//   0x020  8  Chunk size chosen at create time
	//   0x1FC  4  Checksum (XOR of the preceding 127 dwords)
	SuperSignatureOffset     = 0x000
	SuperSignatureSize       = 4
	SuperVersionOffset       = 0x004
	SuperPrimarySeqOffset    = 0x008
	SuperSecondarySeqOffset  = 0x00C
	SuperTimestampOffset     = 0x010
	SuperFormattedSizeOffset = 0x018
	SuperChunkSizeOffset     = 0x020
	SuperChecksumOffset      = 0x1FC

	// SuperVersion is the current image format version.
	SuperVersion = 1
)
