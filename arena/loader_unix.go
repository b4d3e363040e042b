//go:build linux || darwin

package arena

import (
	"fmt"
	"os"
	"syscall"

	"github.com/joshuapare/heapkit/internal/format"
)

// Open mmaps the heap image RW so the allocator can mutate it in place.
func Open(path string) (*Arena, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sz := st.Size()
	if sz < format.HeaderSize {
		_ = f.Close()
		return nil, fmt.Errorf("arena: image too small (%d bytes): %s", sz, path)
	}

	data, err := syscall.Mmap(
		int(f.Fd()),
		0,
		int(sz),
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_SHARED,
	)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("arena: mmap failed: %w", err)
	}

	sb, err := ParseSuperblock(data)
	if err != nil {
		_ = syscall.Munmap(data)
		_ = f.Close()
		return nil, err
	}
	if validateErr := sb.ValidateSanity(sz); validateErr != nil {
		_ = syscall.Munmap(data)
		_ = f.Close()
		return nil, validateErr
	}

	a := &Arena{
		f:     f,
		data:  data,
		size:  sz,
		super: sb,
	}

	// Drop trailing slack immediately: the heap region must be contiguous
	// block structure up to the formatted size, and anything past it is a
	// leftover from an interrupted extension. This must happen before any
	// caller stores references into the data.
	logicalEnd := format.HeaderSize + sb.FormattedSize()
	if sz > logicalEnd {
		if truncateErr := a.Truncate(logicalEnd); truncateErr != nil {
			_ = a.Close()
			return nil, fmt.Errorf("arena: truncate trailing slack: %w", truncateErr)
		}
	}

	return a, nil
}

func (a *Arena) closeFile() error {
	var err error
	if a.data != nil {
		_ = syscall.Munmap(a.data)
		a.data = nil
	}
	if a.f != nil {
		err = a.f.Close()
		a.f = nil
	}
	a.super = nil
	return err
}

// appendFile grows the image file by n bytes and remaps the memory mapping.
// The new bytes are zero-initialized by the OS.
func (a *Arena) appendFile(n int64) error {
	newSize := a.size + n

	// Unmap the current mapping
	if a.data != nil {
		if err := syscall.Munmap(a.data); err != nil {
			return fmt.Errorf("arena: failed to unmap before grow: %w", err)
		}
		a.data = nil
	}

	// Truncate file to new size (extends with zeros)
	if err := a.f.Truncate(newSize); err != nil {
		// Try to remap old size to recover
		data, _ := syscall.Mmap(
			int(a.f.Fd()),
			0,
			int(a.size),
			syscall.PROT_READ|syscall.PROT_WRITE,
			syscall.MAP_SHARED,
		)
		a.data = data
		if a.data != nil {
			_ = a.reattach()
		}
		return fmt.Errorf("arena: failed to truncate file: %w", err)
	}

	// Remap the entire file at the new size
	data, err := syscall.Mmap(
		int(a.f.Fd()),
		0,
		int(newSize),
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_SHARED,
	)
	if err != nil {
		// Try to remap old size to recover
		oldData, _ := syscall.Mmap(
			int(a.f.Fd()),
			0,
			int(a.size),
			syscall.PROT_READ|syscall.PROT_WRITE,
			syscall.MAP_SHARED,
		)
		a.data = oldData
		if a.data != nil {
			_ = a.reattach()
		}
		return fmt.Errorf("arena: failed to remap after grow: %w", err)
	}

	a.data = data
	a.size = newSize

	// Re-parse the superblock since a.data changed; the old view aliases
	// the unmapped region.
	return a.reattach()
}

// truncateFile shrinks the image file and remaps the memory mapping.
func (a *Arena) truncateFile(newSize int64) error {
	// Unmap the current mapping
	if a.data != nil {
		if err := syscall.Munmap(a.data); err != nil {
			return fmt.Errorf("arena: failed to unmap before truncate: %w", err)
		}
		a.data = nil
	}

	// Truncate file to new size
	if err := a.f.Truncate(newSize); err != nil {
		data, _ := syscall.Mmap(
			int(a.f.Fd()),
			0,
			int(a.size),
			syscall.PROT_READ|syscall.PROT_WRITE,
			syscall.MAP_SHARED,
		)
		a.data = data
		if a.data != nil {
			_ = a.reattach()
		}
		return fmt.Errorf("arena: failed to truncate file: %w", err)
	}

	// Remap the file at the new size
	data, err := syscall.Mmap(
		int(a.f.Fd()),
		0,
		int(newSize),
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_SHARED,
	)
	if err != nil {
		oldData, _ := syscall.Mmap(
			int(a.f.Fd()),
			0,
			int(a.size),
			syscall.PROT_READ|syscall.PROT_WRITE,
			syscall.MAP_SHARED,
		)
		a.data = oldData
		if a.data != nil {
			_ = a.reattach()
		}
		return fmt.Errorf("arena: failed to remap after truncate: %w", err)
	}

	a.data = data
	a.size = newSize

	return a.reattach()
}
