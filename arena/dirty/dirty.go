// Package dirty provides efficient tracking and flushing of dirty pages in
// memory-mapped heap images.
//
// The tracker maintains a list of dirty byte ranges, coalesces them into
// page-aligned ranges, and flushes them to disk using platform-specific
// system calls (msync on unix). In-memory arenas accept the same calls and
// flush as no-ops, so allocator code never branches on the backend.
package dirty

import (
	"context"
	"sort"

	"github.com/joshuapare/heapkit/arena"
)

const (
	// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
	// This reduces allocations during typical workloads.
	defaultRangeCapacity = 64

	// standardPageSize is the typical OS page size (4KB).
	standardPageSize = 4096
)

// FlushMode controls durability guarantees when sealing the header.
type FlushMode int

const (
	// FlushAuto provides safe defaults: msync dirty data pages, then
	// fdatasync after the header write. On macOS this uses fsync.
	FlushAuto FlushMode = iota

	// FlushDataOnly only flushes dirty data pages via msync. The caller is
	// responsible for syncing the descriptor later. Use this when batching
	// several operations together.
	FlushDataOnly

	// FlushFull provides ultra-safe durability: msync data, msync the
	// header page, fdatasync the descriptor, and F_FULLFSYNC on macOS.
	// Use this for power-loss sensitive workflows.
	FlushFull
)

// Range represents a dirty byte range (absolute image offsets).
type Range struct {
	Off int64 // Absolute offset in the image
	Len int64 // Length in bytes
}

// Tracker accumulates dirty ranges and flushes them efficiently.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type Tracker struct {
	a        *arena.Arena
	ranges   []Range // Dirty data ranges (coalesced at flush time)
	pageSize int64   // OS page size (typically 4096)
}

// NewTracker creates a dirty tracker for the given arena.
func NewTracker(a *arena.Arena) *Tracker {
	return &Tracker{
		a:        a,
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: standardPageSize,
	}
}

// Add records a dirty range.
//
// The range is page-aligned and coalesced with its neighbors at flush time;
// recording is just an append.
func (t *Tracker) Add(off, length int) {
	t.ranges = append(t.ranges, Range{
		Off: int64(off),
		Len: int64(length),
	})
}

// FlushData flushes all dirty data ranges (not the header page) to disk and
// clears the tracked set. In-memory arenas clear and return nil.
func (t *Tracker) FlushData(ctx context.Context) error {
	if len(t.ranges) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !t.a.Mapped() {
		t.ranges = t.ranges[:0]
		return nil
	}

	data := t.a.Bytes()
	if len(data) == 0 {
		return nil
	}
	if err := t.flushRanges(data); err != nil {
		return err
	}

	t.ranges = t.ranges[:0]
	return nil
}

// FlushHeaderAndMeta flushes the header page and optionally syncs the file
// descriptor according to mode. In-memory arenas return nil.
func (t *Tracker) FlushHeaderAndMeta(ctx context.Context, mode FlushMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.a.Mapped() {
		return nil
	}

	data := t.a.Bytes()
	if len(data) == 0 {
		return nil
	}

	headerLen := int(t.pageSize)
	if headerLen > len(data) {
		headerLen = len(data)
	}
	if err := msync(data[:headerLen]); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if mode == FlushDataOnly {
		return nil
	}

	return fdatasync(t.a.FD(), mode == FlushFull)
}

// Reset clears all tracked ranges without flushing.
func (t *Tracker) Reset() {
	t.ranges = t.ranges[:0]
}

// DebugRanges returns a copy of the raw, uncoalesced ranges.
func (t *Tracker) DebugRanges() []Range {
	result := make([]Range, len(t.ranges))
	copy(result, t.ranges)
	return result
}

// DebugCoalescedRanges returns the page-aligned, sorted, merged ranges that
// a flush would issue.
func (t *Tracker) DebugCoalescedRanges() []Range {
	return t.coalesce()
}

// coalesce page-aligns all ranges, sorts them, and merges overlapping or
// adjacent ranges into a minimal set.
func (t *Tracker) coalesce() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start := (r.Off / t.pageSize) * t.pageSize

		end := r.Off + r.Len
		if end%t.pageSize != 0 {
			end = ((end / t.pageSize) + 1) * t.pageSize
		}

		aligned[i] = Range{
			Off: start,
			Len: end - start,
		}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]

	for i := 1; i < len(aligned); i++ {
		next := aligned[i]

		if next.Off <= current.Off+current.Len {
			end := current.Off + current.Len
			nextEnd := next.Off + next.Len
			if nextEnd > end {
				end = nextEnd
			}
			current.Len = end - current.Off
		} else {
			merged = append(merged, current)
			current = next
		}
	}
	merged = append(merged, current)

	return merged
}
