package arena

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

const (
	// dwordBitShift converts a dword index to a byte offset (i << 2 == i * 4).
	dwordBitShift = 2

	// checksumAllOnes is the special checksum value when the XOR comes out all 1s.
	checksumAllOnes = 0xFFFFFFFF

	// checksumAllOnesReplacement is the stored value for an all-ones checksum.
	checksumAllOnesReplacement = 0xFFFFFFFE

	// checksumAllZeros is the special checksum value when the XOR comes out all 0s.
	checksumAllZeros = 0x00000000

	// checksumAllZerosReplacement is the stored value for an all-zeros checksum.
	checksumAllZerosReplacement = 0x00000001
)

// Superblock represents the 4 KiB header page at the start of a heap image.
// Zero-copy: all accessors read directly from sb.raw, so the view must be
// re-parsed whenever the underlying mapping moves.
type Superblock struct {
	raw []byte // len >= format.HeaderSize
}

// isSuper is a fast, zero-alloc check for the image signature.
func isSuper(b []byte) bool {
	const off = format.SuperSignatureOffset
	const n = format.SuperSignatureSize
	if len(b) < off+n {
		return false
	}
	return bytes.Equal(b[off:off+n], format.SuperSignature)
}

// ParseSuperblock validates the signature and version and returns a header view.
func ParseSuperblock(b []byte) (*Superblock, error) {
	if len(b) < format.HeaderSize {
		return nil, fmt.Errorf("arena: file too small for superblock (%d): %w",
			len(b), format.ErrTruncated)
	}
	if !isSuper(b) {
		return nil, fmt.Errorf("arena: %w", format.ErrSignatureMismatch)
	}
	sb := &Superblock{raw: b[:format.HeaderSize]}
	if v := sb.Version(); v != format.SuperVersion {
		return nil, fmt.Errorf("arena: image version %d: %w", v, format.ErrUnsupportedVersion)
	}
	return sb, nil
}

// ---- Primitive field readers (no alloc) ----

// Raw returns the raw bytes of the superblock page.
func (sb *Superblock) Raw() []byte { return sb.raw }

// Signature returns the image signature bytes.
func (sb *Superblock) Signature() []byte {
	return sb.raw[format.SuperSignatureOffset : format.SuperSignatureOffset+format.SuperSignatureSize]
}

// Version returns the image format version.
func (sb *Superblock) Version() uint32 { return format.ReadU32(sb.raw, format.SuperVersionOffset) }

// Sequence1 returns the primary sequence number.
func (sb *Superblock) Sequence1() uint32 { return format.ReadU32(sb.raw, format.SuperPrimarySeqOffset) }

// Sequence2 returns the secondary sequence number.
func (sb *Superblock) Sequence2() uint32 {
	return format.ReadU32(sb.raw, format.SuperSecondarySeqOffset)
}

// IsClean returns true if the sequence numbers match, indicating no torn write.
func (sb *Superblock) IsClean() bool { return sb.Sequence1() == sb.Sequence2() }

// TimestampNanos returns the last-write time in Unix nanoseconds.
func (sb *Superblock) TimestampNanos() int64 {
	return format.ReadI64(sb.raw, format.SuperTimestampOffset)
}

// FormattedSize returns the heap region bytes in use past the superblock.
// Zero means the image was created but never formatted.
func (sb *Superblock) FormattedSize() int64 {
	return format.ReadI64(sb.raw, format.SuperFormattedSizeOffset)
}

// ChunkSize returns the extension quantum recorded at create time.
func (sb *Superblock) ChunkSize() int64 {
	return format.ReadI64(sb.raw, format.SuperChunkSizeOffset)
}

// Checksum returns the stored header checksum.
func (sb *Superblock) Checksum() uint32 { return format.ReadU32(sb.raw, format.SuperChecksumOffset) }

// ---- Mutators ----

// SetFormattedSize stores the formatted size field. Callers follow up with
// UpdateChecksum.
func (sb *Superblock) SetFormattedSize(n int64) {
	format.PutI64(sb.raw, format.SuperFormattedSizeOffset, n)
}

// TouchNowAndBumpSeq refreshes the timestamp and bumps both sequence numbers
// together, keeping the image clean. Callers follow up with UpdateChecksum.
func (sb *Superblock) TouchNowAndBumpSeq() {
	seq := sb.Sequence1() + 1
	format.PutU32(sb.raw, format.SuperPrimarySeqOffset, seq)
	format.PutU32(sb.raw, format.SuperSecondarySeqOffset, seq)
	format.PutI64(sb.raw, format.SuperTimestampOffset, time.Now().UnixNano())
}

// ComputeChecksum XORs the dwords preceding the checksum field, applying the
// all-ones and all-zeros replacement rule so the stored value is never a
// sentinel pattern.
func (sb *Superblock) ComputeChecksum() uint32 {
	var sum uint32
	for i := 0; i < format.SuperChecksumOffset; i += 1 << dwordBitShift {
		sum ^= format.ReadU32(sb.raw, i)
	}
	switch sum {
	case checksumAllOnes:
		return checksumAllOnesReplacement
	case checksumAllZeros:
		return checksumAllZerosReplacement
	}
	return sum
}

// UpdateChecksum recomputes and stores the header checksum.
func (sb *Superblock) UpdateChecksum() {
	format.PutU32(sb.raw, format.SuperChecksumOffset, sb.ComputeChecksum())
}

// ChecksumOK reports whether the stored checksum matches the contents.
func (sb *Superblock) ChecksumOK() bool { return sb.Checksum() == sb.ComputeChecksum() }

// ValidateSanity cross-checks superblock fields against the actual file size.
// The checksum is deliberately not enforced here so diagnostic tooling can
// still open damaged images; the heap checker reports mismatches instead.
func (sb *Superblock) ValidateSanity(fileSize int64) error {
	formatted := sb.FormattedSize()
	switch {
	case formatted < 0:
		return fmt.Errorf("arena: negative formatted size %d: %w", formatted, format.ErrBadSize)
	case formatted == 0:
		return nil // created but never formatted
	case formatted < format.BootstrapSize:
		return fmt.Errorf("arena: formatted size %d below bootstrap layout: %w",
			formatted, format.ErrBadSize)
	case formatted%format.BlockAlign != 0:
		return fmt.Errorf("arena: formatted size %d off block boundary: %w",
			formatted, format.ErrMisaligned)
	}
	end, ok := buf.AddI64(format.HeaderSize, formatted)
	if !ok || end > fileSize {
		return fmt.Errorf("arena: formatted size %d exceeds file size %d: %w",
			formatted, fileSize, format.ErrTruncated)
	}
	return nil
}

// formatSuperblock writes a fresh superblock into b: signature, version,
// matching sequence pair, timestamp, zero formatted size, the chosen chunk
// size, and the checksum. The rest of the page stays zero.
func formatSuperblock(b []byte, chunkSize int64) error {
	if len(b) < format.HeaderSize {
		return errors.New("arena: superblock buffer too small")
	}
	copy(b[format.SuperSignatureOffset:], format.SuperSignature)
	format.PutU32(b, format.SuperVersionOffset, format.SuperVersion)
	format.PutU32(b, format.SuperPrimarySeqOffset, 1)
	format.PutU32(b, format.SuperSecondarySeqOffset, 1)
	format.PutI64(b, format.SuperTimestampOffset, time.Now().UnixNano())
	format.PutI64(b, format.SuperFormattedSizeOffset, 0)
	format.PutI64(b, format.SuperChunkSizeOffset, chunkSize)

	sb := &Superblock{raw: b[:format.HeaderSize]}
	sb.UpdateChecksum()
	return nil
}
