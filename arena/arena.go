// Package arena manages heap image regions: a superblock page followed by a
// growable run of boundary-tagged blocks. Images are memory-mapped in place
// on unix platforms, loaded into memory elsewhere, or held purely in memory
// for ephemeral heaps. All offsets handed to callers are heap-relative
// (file offset minus the superblock page).
//
// An Arena is NOT thread-safe. Only one goroutine should use it at a time.
package arena

import (
	"errors"
	"fmt"
	"os"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

// Arena is an open heap image.
type Arena struct {
	f     *os.File // nil for in-memory arenas
	data  []byte
	size  int64
	super *Superblock
}

// CreateOptions configures image creation. The zero value selects defaults.
type CreateOptions struct {
	// ChunkSize is the heap extension quantum recorded in the superblock.
	// Zero selects format.DefaultChunkSize. Must be a BlockAlign multiple.
	ChunkSize int64
}

func (o *CreateOptions) chunkSize() (int64, error) {
	if o == nil || o.ChunkSize == 0 {
		return format.DefaultChunkSize, nil
	}
	if o.ChunkSize < format.MinBlockSize || o.ChunkSize%format.BlockAlign != 0 {
		return 0, fmt.Errorf("arena: chunk size %d: %w", o.ChunkSize, format.ErrMisaligned)
	}
	return o.ChunkSize, nil
}

// Create writes a fresh, unformatted heap image at path: a superblock page
// with formatted size zero. Open the image and hand it to the allocator to
// lay down the heap. Fails if the file already exists.
func Create(path string, opts *CreateOptions) error {
	chunk, err := opts.chunkSize()
	if err != nil {
		return err
	}

	buf := make([]byte, format.HeaderSize)
	if err := formatSuperblock(buf, chunk); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("arena: write superblock: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("arena: sync superblock: %w", err)
	}
	return f.Close()
}

// OpenMem returns an in-memory arena with the same layout as a file image,
// so refs and tooling behave identically across backends. Contents are lost
// when the arena is garbage collected.
func OpenMem(opts *CreateOptions) (*Arena, error) {
	chunk, err := opts.chunkSize()
	if err != nil {
		return nil, err
	}

	data := make([]byte, format.HeaderSize)
	if err := formatSuperblock(data, chunk); err != nil {
		return nil, err
	}
	sb, err := ParseSuperblock(data)
	if err != nil {
		return nil, err
	}

	return &Arena{data: data, size: int64(len(data)), super: sb}, nil
}

// Bytes returns the live image bytes, superblock page included. The slice is
// invalidated by Append and Truncate.
func (a *Arena) Bytes() []byte { return a.data }

// Size returns the current image size in bytes.
func (a *Arena) Size() int64 { return a.size }

// FD returns the underlying file descriptor, or -1 for in-memory arenas.
func (a *Arena) FD() int {
	if a.f == nil {
		return -1
	}
	return int(a.f.Fd())
}

// Mapped reports whether the arena is backed by a file, memory-mapped in
// place on unix builds. In-memory arenas report false and need no flushing.
func (a *Arena) Mapped() bool { return a.f != nil }

// Path returns the backing file path, or "" for in-memory arenas.
func (a *Arena) Path() string {
	if a.f == nil {
		return ""
	}
	return a.f.Name()
}

// Super returns the live superblock view. Invalidated by Append and Truncate.
func (a *Arena) Super() *Superblock { return a.super }

// FormattedSize returns the heap region bytes in use past the superblock.
func (a *Arena) FormattedSize() int64 { return a.super.FormattedSize() }

// ChunkSize returns the extension quantum recorded at create time.
func (a *Arena) ChunkSize() int64 { return a.super.ChunkSize() }

// RegionEnd returns the absolute offset one past the formatted heap region.
func (a *Arena) RegionEnd() int64 { return format.HeaderSize + a.super.FormattedSize() }

// BumpFormattedSize extends the formatted size by delta and reseals the
// superblock (timestamp, sequence pair, checksum). Call after the new bytes
// carry valid block structure so a crash in between leaves only ignorable
// slack past the old formatted size.
func (a *Arena) BumpFormattedSize(delta int64) {
	a.super.SetFormattedSize(a.super.FormattedSize() + delta)
	a.super.TouchNowAndBumpSeq()
	a.super.UpdateChecksum()
}

// Append grows the heap image by n zero bytes, remapping as needed. The new
// bytes sit past the formatted size until the caller installs block structure
// and calls BumpFormattedSize. Bytes and Super views are invalidated.
func (a *Arena) Append(n int64) error {
	if a.data == nil {
		return ErrClosed
	}
	if n <= 0 {
		return nil
	}
	if _, ok := buf.AddI64(a.size, n); !ok {
		return fmt.Errorf("arena: append of %d bytes overflows image size %d", n, a.size)
	}
	if a.f == nil {
		return a.appendMem(n)
	}
	return a.appendFile(n)
}

// Truncate shrinks the image to newSize bytes. Used to drop trailing slack
// past the formatted region, never to shrink the formatted region itself.
func (a *Arena) Truncate(newSize int64) error {
	if a.data == nil {
		return ErrClosed
	}
	if newSize < format.HeaderSize {
		return fmt.Errorf("arena: truncate size %d below superblock", newSize)
	}
	if newSize > a.size {
		return fmt.Errorf("arena: truncate cannot grow (current %d, requested %d), use Append",
			a.size, newSize)
	}
	if newSize == a.size {
		return nil
	}
	if a.f == nil {
		a.data = a.data[:newSize]
		a.size = newSize
		return a.reattach()
	}
	return a.truncateFile(newSize)
}

// Close releases the mapping and file handle. In-memory arenas just drop
// their buffer.
func (a *Arena) Close() error {
	if a.f == nil {
		a.data = nil
		a.super = nil
		return nil
	}
	return a.closeFile()
}

// reattach re-parses the superblock view after the backing bytes moved.
func (a *Arena) reattach() error {
	sb, err := ParseSuperblock(a.data)
	if err != nil {
		return fmt.Errorf("arena: reattach superblock: %w", err)
	}
	a.super = sb
	return nil
}

// appendMem grows an in-memory arena by n zero bytes.
func (a *Arena) appendMem(n int64) error {
	if n <= 0 {
		return nil
	}
	a.data = append(a.data, make([]byte, n)...)
	a.size = int64(len(a.data))
	return a.reattach()
}

// ErrClosed is returned for operations on a closed arena.
var ErrClosed = errors.New("arena: closed")
