//go:build !linux && !darwin

package arena

import (
	"fmt"
	"io"
	"os"

	"github.com/joshuapare/heapkit/internal/format"
)

// Open loads the heap image into memory on platforms without the mmap path.
// Tag and payload writes land in the in-memory copy only; Append and
// Truncate resize both the copy and the file so the image keeps its shape
// on disk.
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

	buf := make([]byte, sz)
	if _, err := io.ReadFull(f, buf); err != nil {
		_ = f.Close()
		return nil, err
	}

	sb, err := ParseSuperblock(buf)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if validateErr := sb.ValidateSanity(sz); validateErr != nil {
		_ = f.Close()
		return nil, validateErr
	}

	a := &Arena{
		f:     f,
		data:  buf,
		size:  sz,
		super: sb,
	}

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
	if a.f != nil {
		err = a.f.Close()
		a.f = nil
	}
	a.data = nil
	a.super = nil
	return err
}

func (a *Arena) appendFile(n int64) error {
	if _, err := a.f.Seek(a.size, io.SeekStart); err != nil {
		return fmt.Errorf("arena: seek to end: %w", err)
	}
	if _, err := a.f.Write(make([]byte, n)); err != nil {
		return fmt.Errorf("arena: extend file: %w", err)
	}
	return a.appendMem(n)
}

func (a *Arena) truncateFile(newSize int64) error {
	if err := a.f.Truncate(newSize); err != nil {
		return fmt.Errorf("arena: truncate file: %w", err)
	}
	a.data = a.data[:newSize]
	a.size = newSize
	return a.reattach()
}
