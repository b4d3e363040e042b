//go:build !linux && !freebsd && !darwin

package dirty

// On platforms without the mmap loader the arena holds a plain in-memory
// copy, so there is nothing to sync.

func (t *Tracker) flushRanges(_ []byte) error { return nil }

func msync(_ []byte) error { return nil }

func fdatasync(_ int, _ bool) error { return nil }
