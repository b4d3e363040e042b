package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignBlock(t *testing.T) {
	cases := []struct {
		in   int64
		want int64
	}{
		{0, 0},
		{1, 16},
		{15, 16},
		{16, 16},
		{17, 32},
		{32, 32},
		{4095, 4096},
		{4096, 4096},
		{4097, 4112},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, AlignBlock(tc.in), "AlignBlock(%d)", tc.in)
	}
}

// TestAdjustRequest verifies the payload-to-block sizing rule: requests at or
// below one double word cost the minimum block, and every extra double word
// of payload adds exactly one alignment step.
func TestAdjustRequest(t *testing.T) {
	cases := []struct {
		request int64
		want    int64
	}{
		{1, 32},
		{8, 32},
		{15, 32},
		{16, 32},  // boundary: still the minimum block
		{17, 48},  // first size past the boundary
		{24, 48},
		{32, 48},
		{33, 64},
		{48, 64},
		{100, 128},
		{4080, 4096},
		{4081, 4112},
	}

	for _, tc := range cases {
		got := AdjustRequest(tc.request)
		assert.Equal(t, tc.want, got, "AdjustRequest(%d)", tc.request)
		assert.Zero(t, got%BlockAlign, "AdjustRequest(%d) must stay aligned", tc.request)
		assert.GreaterOrEqual(t, got, int64(MinBlockSize),
			"AdjustRequest(%d) must leave room for free-list links", tc.request)
	}
}
