// Package buf contains overflow-safe arithmetic and bounds helpers for
// offset and size fields read from untrusted heap images.
package buf

import "math"

// AddI64 adds a and b, returning ok = false when the result would overflow
// int64. Size and offset words from an image must go through this before any
// derived offset is used to slice the buffer.
func AddI64(a, b int64) (int64, bool) {
	switch {
	case b > 0 && a > math.MaxInt64-b:
		return 0, false
	case b < 0 && a < math.MinInt64-b:
		return 0, false
	default:
		return a + b, true
	}
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off > len(b) {
		return nil, false
	}
	end := off + n
	if end < 0 || end > len(b) {
		return nil, false
	}
	return b[off:end], true
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n int) bool {
	_, ok := Slice(b, off, n)
	return ok
}
