package dirty

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/joshuapare/heapkit/arena"
)

// setupTestArena creates a heap image with data pages past the header.
func setupTestArena(t testing.TB) (*arena.Arena, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.heap")

	if err := arena.Create(path, nil); err != nil {
		t.Fatalf("Failed to create test image: %v", err)
	}

	a, err := arena.Open(path)
	if err != nil {
		t.Fatalf("Failed to open test image: %v", err)
	}

	// A few data pages past the superblock so data flushes have real
	// pages to hit.
	if err := a.Append(4 * 4096); err != nil {
		t.Fatalf("Failed to grow test image: %v", err)
	}

	cleanup := func() {
		a.Close()
	}

	return a, cleanup
}

// Test 1: Page Alignment.
func Test_DirtyTracker_PageAlignment(t *testing.T) {
	a, cleanup := setupTestArena(t)
	defer cleanup()

	tracker := NewTracker(a)

	// Add a range that's NOT page-aligned (offset 100, length 200)
	tracker.Add(100, 200)

	// Coalesce
	coalesced := tracker.coalesce()

	// Should be aligned to page boundaries
	// Start: 100 rounds down to 0
	// End: 100+200=300 rounds up to 4096
	if len(coalesced) != 1 {
		t.Fatalf("Expected 1 coalesced range, got %d", len(coalesced))
	}

	if coalesced[0].Off != 0 {
		t.Errorf("Start not aligned: got %d, want 0", coalesced[0].Off)
	}

	if coalesced[0].Len != 4096 {
		t.Errorf("Length not aligned: got %d, want 4096", coalesced[0].Len)
	}
}

// Test 2: Coalescing Adjacent Ranges.
func Test_DirtyTracker_Coalesce_Adjacent(t *testing.T) {
	a, cleanup := setupTestArena(t)
	defer cleanup()

	tracker := NewTracker(a)

	// Add two adjacent page-aligned ranges
	tracker.Add(4096, 4096) // Pages 1-2
	tracker.Add(8192, 4096) // Pages 2-3 (adjacent to first)

	coalesced := tracker.coalesce()

	// Should merge into single range
	if len(coalesced) != 1 {
		t.Fatalf("Expected 1 merged range, got %d", len(coalesced))
	}

	if coalesced[0].Off != 4096 {
		t.Errorf("Merged range start: got %d, want 4096", coalesced[0].Off)
	}

	if coalesced[0].Len != 8192 {
		t.Errorf("Merged range length: got %d, want 8192", coalesced[0].Len)
	}
}

// Test 3: Coalescing Overlapping Ranges.
func Test_DirtyTracker_Coalesce_Overlapping(t *testing.T) {
	a, cleanup := setupTestArena(t)
	defer cleanup()

	tracker := NewTracker(a)

	// Add overlapping ranges
	tracker.Add(0, 8192)    // Pages 0-1
	tracker.Add(4096, 8192) // Pages 1-2 (overlaps with first)

	coalesced := tracker.coalesce()

	// Should merge into single range covering 0-12288
	if len(coalesced) != 1 {
		t.Fatalf("Expected 1 merged range, got %d", len(coalesced))
	}

	if coalesced[0].Off != 0 {
		t.Errorf("Merged range start: got %d, want 0", coalesced[0].Off)
	}

	if coalesced[0].Len != 12288 {
		t.Errorf("Merged range length: got %d, want 12288", coalesced[0].Len)
	}
}

// Test 4: Non-Overlapping Ranges.
func Test_DirtyTracker_Coalesce_Separate(t *testing.T) {
	a, cleanup := setupTestArena(t)
	defer cleanup()

	tracker := NewTracker(a)

	// Add two ranges with a gap between them
	tracker.Add(0, 4096)     // Page 0
	tracker.Add(20480, 4096) // Page 5 (gap of 3 pages)

	coalesced := tracker.coalesce()

	// Should remain as two separate ranges
	if len(coalesced) != 2 {
		t.Fatalf("Expected 2 separate ranges, got %d", len(coalesced))
	}

	// First range
	if coalesced[0].Off != 0 || coalesced[0].Len != 4096 {
		t.Errorf("First range: got (%d, %d), want (0, 4096)",
			coalesced[0].Off, coalesced[0].Len)
	}

	// Second range
	if coalesced[1].Off != 20480 || coalesced[1].Len != 4096 {
		t.Errorf("Second range: got (%d, %d), want (20480, 4096)",
			coalesced[1].Off, coalesced[1].Len)
	}
}

// Test 5: Flushing data clears the tracked set.
func Test_DirtyTracker_FlushData_ClearsRanges(t *testing.T) {
	a, cleanup := setupTestArena(t)
	defer cleanup()

	tracker := NewTracker(a)

	// Add header range and data range
	tracker.Add(0, 100)    // Header
	tracker.Add(4096, 100) // Data

	// FlushData syncs the data pages; the header page is sealed separately
	err := tracker.FlushData(context.Background())
	if err != nil {
		t.Fatalf("FlushData() failed: %v", err)
	}

	// Ranges should be cleared
	if len(tracker.ranges) != 0 {
		t.Errorf("Ranges not cleared after flush: got %d, want 0", len(tracker.ranges))
	}
}

// Test 6: Flush Header.
func Test_DirtyTracker_FlushHeader(t *testing.T) {
	a, cleanup := setupTestArena(t)
	defer cleanup()

	tracker := NewTracker(a)

	// FlushHeaderAndMeta should not error
	err := tracker.FlushHeaderAndMeta(context.Background(), FlushAuto)
	if err != nil {
		t.Fatalf("FlushHeaderAndMeta() failed: %v", err)
	}
}

// Test 7: Reset.
func Test_DirtyTracker_Reset(t *testing.T) {
	a, cleanup := setupTestArena(t)
	defer cleanup()

	tracker := NewTracker(a)

	// Add multiple ranges
	tracker.Add(0, 100)
	tracker.Add(4096, 200)
	tracker.Add(8192, 300)

	if len(tracker.ranges) != 3 {
		t.Fatalf("Expected 3 ranges before reset, got %d", len(tracker.ranges))
	}

	// Reset
	tracker.Reset()

	// Should be empty
	if len(tracker.ranges) != 0 {
		t.Errorf("Ranges not cleared after reset: got %d, want 0", len(tracker.ranges))
	}
}

// Test 8: Empty Flush.
func Test_DirtyTracker_FlushData_Empty(t *testing.T) {
	a, cleanup := setupTestArena(t)
	defer cleanup()

	tracker := NewTracker(a)

	// Flush with no ranges added
	err := tracker.FlushData(context.Background())
	if err != nil {
		t.Fatalf("FlushData() on empty tracker failed: %v", err)
	}
}

// Test 9: Large Range Count.
func Test_DirtyTracker_Coalesce_ManyRanges(t *testing.T) {
	a, cleanup := setupTestArena(t)
	defer cleanup()

	tracker := NewTracker(a)

	// Create a pattern: every other page for 100 pages
	for i := 0; i < 100; i++ {
		off := i * 8192 // Every 2 pages
		tracker.Add(off, 4096)
	}

	coalesced := tracker.coalesce()

	// Should be sorted
	for i := 1; i < len(coalesced); i++ {
		if coalesced[i].Off <= coalesced[i-1].Off {
			t.Errorf("Ranges not sorted: range %d offset %d <= range %d offset %d",
				i, coalesced[i].Off, i-1, coalesced[i-1].Off)
		}
	}

	// Verify no overlaps
	for i := 1; i < len(coalesced); i++ {
		prevEnd := coalesced[i-1].Off + coalesced[i-1].Len
		if coalesced[i].Off < prevEnd {
			t.Errorf("Overlapping ranges: range %d starts at %d, but range %d ends at %d",
				i, coalesced[i].Off, i-1, prevEnd)
		}
	}

	t.Logf("Coalesced %d ranges into %d", 100, len(coalesced))
}

// Test 10: FlushMode variations.
func Test_DirtyTracker_FlushModes(t *testing.T) {
	tests := []struct {
		name string
		mode FlushMode
	}{
		{"FlushAuto", FlushAuto},
		{"FlushDataOnly", FlushDataOnly},
		{"FlushFull", FlushFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, cleanup := setupTestArena(t)
			defer cleanup()

			tracker := NewTracker(a)

			// Should not error
			err := tracker.FlushHeaderAndMeta(context.Background(), tt.mode)
			if err != nil {
				t.Errorf("FlushHeaderAndMeta(%v) failed: %v", tt.mode, err)
			}
		})
	}
}

// Test 11: In-memory arenas accept flushes as no-ops.
func Test_DirtyTracker_MemArena_FlushesAreNoOps(t *testing.T) {
	a, err := arena.OpenMem(nil)
	if err != nil {
		t.Fatalf("OpenMem() failed: %v", err)
	}

	tracker := NewTracker(a)
	tracker.Add(4096, 100)

	if err := tracker.FlushData(context.Background()); err != nil {
		t.Fatalf("FlushData() on mem arena failed: %v", err)
	}
	if len(tracker.ranges) != 0 {
		t.Errorf("Ranges not cleared: got %d, want 0", len(tracker.ranges))
	}

	if err := tracker.FlushHeaderAndMeta(context.Background(), FlushFull); err != nil {
		t.Errorf("FlushHeaderAndMeta() on mem arena failed: %v", err)
	}
}

// Test 12: A canceled context aborts the flush.
func Test_DirtyTracker_FlushData_ContextCanceled(t *testing.T) {
	a, cleanup := setupTestArena(t)
	defer cleanup()

	tracker := NewTracker(a)
	tracker.Add(4096, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tracker.FlushData(ctx); err == nil {
		t.Fatal("FlushData() with canceled context should fail")
	}

	// The range survives for a later retry
	if len(tracker.ranges) != 1 {
		t.Errorf("Ranges dropped on canceled flush: got %d, want 1", len(tracker.ranges))
	}
}

// Test 13: DebugRanges returns an independent copy.
func Test_DirtyTracker_DebugRanges_Copies(t *testing.T) {
	a, cleanup := setupTestArena(t)
	defer cleanup()

	tracker := NewTracker(a)
	tracker.Add(100, 50)
	tracker.Add(8192, 10)

	got := tracker.DebugRanges()
	if len(got) != 2 {
		t.Fatalf("Expected 2 raw ranges, got %d", len(got))
	}
	if got[0].Off != 100 || got[0].Len != 50 {
		t.Errorf("First raw range: got (%d, %d), want (100, 50)", got[0].Off, got[0].Len)
	}

	// Mutating the copy must not touch the tracker
	got[0].Off = 999
	if tracker.ranges[0].Off != 100 {
		t.Errorf("DebugRanges() aliases tracker state: off became %d", tracker.ranges[0].Off)
	}

	coalesced := tracker.DebugCoalescedRanges()
	if len(coalesced) != 2 {
		t.Fatalf("Expected 2 coalesced ranges, got %d", len(coalesced))
	}
	if coalesced[0].Off != 0 || coalesced[0].Len != 4096 {
		t.Errorf("First coalesced range: got (%d, %d), want (0, 4096)",
			coalesced[0].Off, coalesced[0].Len)
	}
}

// Test 14: Coalescing with nothing tracked.
func Test_DirtyTracker_Coalesce_Empty(t *testing.T) {
	a, cleanup := setupTestArena(t)
	defer cleanup()

	tracker := NewTracker(a)

	if got := tracker.coalesce(); got != nil {
		t.Errorf("Expected nil for empty tracker, got %v", got)
	}
	if got := tracker.DebugCoalescedRanges(); got != nil {
		t.Errorf("Expected nil from DebugCoalescedRanges, got %v", got)
	}
}

// Benchmark: Add() performance.
func Benchmark_DirtyTracker_Add(b *testing.B) {
	a, cleanup := setupTestArena(b)
	defer cleanup()

	tracker := NewTracker(a)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		tracker.Add(4096*i, 4096)
	}
}

// Benchmark: Coalesce 100 ranges.
func Benchmark_DirtyTracker_Coalesce_100Ranges(b *testing.B) {
	a, cleanup := setupTestArena(b)
	defer cleanup()

	tracker := NewTracker(a)

	// Pre-populate with 100 ranges
	for i := 0; i < 100; i++ {
		tracker.Add(i*4096, 4096)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = tracker.coalesce()
	}
}

// Benchmark: Full Add + Coalesce cycle.
func Benchmark_DirtyTracker_AddAndCoalesce(b *testing.B) {
	a, cleanup := setupTestArena(b)
	defer cleanup()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		tracker := NewTracker(a)
		for j := 0; j < 10; j++ {
			tracker.Add(j*4096, 4096)
		}
		_ = tracker.coalesce()
	}
}
