package alloc

import "github.com/joshuapare/heapkit/arena/dirty"

// DirtyTracker is a type alias for the canonical interface defined in
// arena/dirty. This alias keeps the allocator decoupled from the concrete
// tracker while avoiding a duplicate interface definition.
type DirtyTracker = dirty.DirtyTracker
