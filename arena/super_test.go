package arena

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/format"
)

// freshSuper formats a superblock page in memory and returns its view.
func freshSuper(t *testing.T, chunkSize int64) *Superblock {
	t.Helper()

	buf := make([]byte, format.HeaderSize)
	require.NoError(t, formatSuperblock(buf, chunkSize))

	sb, err := ParseSuperblock(buf)
	require.NoError(t, err)
	return sb
}

func TestParseSuperblock_Fresh(t *testing.T) {
	before := time.Now().UnixNano()
	sb := freshSuper(t, format.DefaultChunkSize)

	require.Equal(t, format.SuperSignature, sb.Signature())
	require.Equal(t, uint32(format.SuperVersion), sb.Version())
	require.Equal(t, uint32(1), sb.Sequence1())
	require.Equal(t, uint32(1), sb.Sequence2())
	require.True(t, sb.IsClean())
	require.Zero(t, sb.FormattedSize())
	require.Equal(t, int64(format.DefaultChunkSize), sb.ChunkSize())
	require.True(t, sb.ChecksumOK())
	require.GreaterOrEqual(t, sb.TimestampNanos(), before)
}

func TestParseSuperblock_ShortBuffer(t *testing.T) {
	_, err := ParseSuperblock(make([]byte, 100))
	require.ErrorIs(t, err, format.ErrTruncated)
}

func TestParseSuperblock_BadSignature(t *testing.T) {
	buf := make([]byte, format.HeaderSize)
	copy(buf, []byte("xxxx"))

	_, err := ParseSuperblock(buf)
	require.ErrorIs(t, err, format.ErrSignatureMismatch)
}

func TestParseSuperblock_BadVersion(t *testing.T) {
	buf := make([]byte, format.HeaderSize)
	require.NoError(t, formatSuperblock(buf, format.DefaultChunkSize))
	format.PutU32(buf, format.SuperVersionOffset, 99)

	_, err := ParseSuperblock(buf)
	require.ErrorIs(t, err, format.ErrUnsupportedVersion)
}

func TestComputeChecksum_ReplacementRules(t *testing.T) {
	// All-zero contents XOR to zero; the stored value dodges the sentinel
	// and becomes 1.
	sb := &Superblock{raw: make([]byte, format.HeaderSize)}
	require.Equal(t, uint32(checksumAllZerosReplacement), sb.ComputeChecksum())

	// A single all-ones dword makes the XOR all ones; the stored value
	// drops to 0xFFFFFFFE.
	sb = &Superblock{raw: make([]byte, format.HeaderSize)}
	format.PutU32(sb.raw, 0, 0xFFFFFFFF)
	require.Equal(t, uint32(checksumAllOnesReplacement), sb.ComputeChecksum())

	// Ordinary values survive untouched.
	sb = &Superblock{raw: make([]byte, format.HeaderSize)}
	format.PutU32(sb.raw, 0, 0xDEADBEEF)
	require.Equal(t, uint32(0xDEADBEEF), sb.ComputeChecksum())
}

func TestChecksum_CoversSequenceWords(t *testing.T) {
	sb := freshSuper(t, format.DefaultChunkSize)
	require.True(t, sb.ChecksumOK())

	// The sequence words sit inside the checksummed range, so a lone seq
	// poke invalidates the stored checksum.
	format.PutU32(sb.raw, format.SuperPrimarySeqOffset, sb.Sequence1()+1)
	require.False(t, sb.ChecksumOK())

	sb.UpdateChecksum()
	require.True(t, sb.ChecksumOK())
}

func TestTouchNowAndBumpSeq(t *testing.T) {
	sb := freshSuper(t, format.DefaultChunkSize)
	stamp := sb.TimestampNanos()

	sb.TouchNowAndBumpSeq()

	require.Equal(t, uint32(2), sb.Sequence1())
	require.Equal(t, uint32(2), sb.Sequence2())
	require.True(t, sb.IsClean())
	require.GreaterOrEqual(t, sb.TimestampNanos(), stamp)

	// Callers reseal with UpdateChecksum afterwards.
	require.False(t, sb.ChecksumOK())
	sb.UpdateChecksum()
	require.True(t, sb.ChecksumOK())
}

func TestSetFormattedSize(t *testing.T) {
	sb := freshSuper(t, format.DefaultChunkSize)

	sb.SetFormattedSize(format.BootstrapSize + format.DefaultChunkSize)
	sb.UpdateChecksum()

	require.Equal(t, int64(format.BootstrapSize+format.DefaultChunkSize), sb.FormattedSize())
	require.True(t, sb.ChecksumOK())
}

func TestValidateSanity(t *testing.T) {
	tests := []struct {
		name      string
		formatted int64
		fileSize  int64
		wantErr   error
	}{
		{
			name:      "unformatted image",
			formatted: 0,
			fileSize:  format.HeaderSize,
			wantErr:   nil,
		},
		{
			name:      "fresh heap",
			formatted: format.BootstrapSize + format.DefaultChunkSize,
			fileSize:  format.HeaderSize + format.BootstrapSize + format.DefaultChunkSize,
			wantErr:   nil,
		},
		{
			name:      "negative formatted size",
			formatted: -16,
			fileSize:  format.HeaderSize,
			wantErr:   format.ErrBadSize,
		},
		{
			name:      "below bootstrap layout",
			formatted: 16,
			fileSize:  format.HeaderSize + 16,
			wantErr:   format.ErrBadSize,
		},
		{
			name:      "off block boundary",
			formatted: format.BootstrapSize + 8,
			fileSize:  format.HeaderSize + 64,
			wantErr:   format.ErrMisaligned,
		},
		{
			name:      "past file end",
			formatted: format.BootstrapSize,
			fileSize:  format.HeaderSize + format.BootstrapSize - 1,
			wantErr:   format.ErrTruncated,
		},
		{
			// Aligned and positive, but adding the superblock page wraps
			// past MaxInt64.
			name:      "formatted size near MaxInt64",
			formatted: math.MaxInt64 &^ int64(format.BlockAlignMask),
			fileSize:  math.MaxInt64,
			wantErr:   format.ErrTruncated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb := freshSuper(t, format.DefaultChunkSize)
			sb.SetFormattedSize(tt.formatted)

			err := sb.ValidateSanity(tt.fileSize)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
