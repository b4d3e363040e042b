package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackTagRoundTrip(t *testing.T) {
	cases := []struct {
		size      int64
		allocated bool
	}{
		{0, true},      // epilogue
		{16, true},     // prologue
		{32, false},    // minimum free block
		{32, true},
		{4096, false},  // chunk-sized free block
		{1 << 40, true},
	}

	for _, tc := range cases {
		tag := PackTag(tc.size, tc.allocated)
		assert.Equal(t, tc.size, TagSize(tag), "size for PackTag(%d, %v)", tc.size, tc.allocated)
		assert.Equal(t, tc.allocated, TagAllocated(tag), "flag for PackTag(%d, %v)", tc.size, tc.allocated)
	}
}

func TestTagFlagBitsDoNotLeakIntoSize(t *testing.T) {
	tag := PackTag(64, true)
	assert.Equal(t, uint64(64|AllocBit), tag)
	assert.Equal(t, int64(64), TagSize(tag))

	// Stray low bits below the alignment must be masked out of the size.
	assert.Equal(t, int64(64), TagSize(tag|0xE))
}

func TestReadPutTag(t *testing.T) {
	b := make([]byte, 64)

	PutTag(b, 8, 48, true)
	size, allocated := ReadTag(b, 8)
	require.Equal(t, int64(48), size)
	require.True(t, allocated)

	PutTag(b, 8, 48, false)
	size, allocated = ReadTag(b, 8)
	require.Equal(t, int64(48), size)
	require.False(t, allocated)

	// Words are little-endian: the flagged size lands in the low byte.
	PutTag(b, 0, 32, true)
	assert.Equal(t, byte(0x21), b[0])
	assert.Equal(t, byte(0x00), b[1])
}
