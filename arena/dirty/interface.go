package dirty

// DirtyTracker is the minimal interface for reporting dirty (modified) byte
// ranges. Implementations track which regions of a heap image have been
// written and need to reach disk.
//
// This interface is intended for components that only notify about dirty
// regions but don't manage flushing themselves (e.g., the allocator).
type DirtyTracker interface {
	// Add marks a byte range as dirty.
	// off is the offset from the start of the image, length is the number of bytes.
	Add(off, length int)
}
