package format

import "errors"

var (
	// ErrSignatureMismatch indicates a structure had an unexpected magic.
	ErrSignatureMismatch = errors.New("format: signature mismatch")
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrMisaligned indicates an offset or size off its required boundary.
	ErrMisaligned = errors.New("format: misaligned offset")
	// ErrBadSize indicates a block size field outside the representable range.
	ErrBadSize = errors.New("format: invalid block size")
	// ErrUnsupportedVersion indicates an image version this build cannot read.
	ErrUnsupportedVersion = errors.New("format: unsupported version")
)
