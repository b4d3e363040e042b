//go:build linux || freebsd

package dirty

import (
	"golang.org/x/sys/unix"
)

// flushRanges flushes individual dirty ranges to disk.
//
// On Linux and FreeBSD, msync() handles sub-slices of a mapping correctly.
func (t *Tracker) flushRanges(data []byte) error {
	coalesced := t.coalesce()

	for _, r := range coalesced {
		// The header page is sealed separately by FlushHeaderAndMeta.
		if r.Off == 0 {
			continue
		}

		start := int(r.Off)
		end := int(r.Off + r.Len)
		if end > len(data) {
			continue
		}

		if err := unix.Msync(data[start:end], unix.MS_SYNC); err != nil {
			return err
		}
	}

	return nil
}

// msync flushes a memory region to disk.
func msync(data []byte) error {
	return unix.Msync(data, unix.MS_SYNC)
}

// fdatasync performs file descriptor sync.
//
// On Linux/FreeBSD, fdatasync() provides sufficient guarantees.
// The fullfsync parameter is ignored here.
func fdatasync(fd int, _ bool) error {
	return unix.Fdatasync(fd)
}
