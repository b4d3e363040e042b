package alloc

// Ref is a block reference: the offset of the block's payload relative to the
// start of the heap region. 0 is never a valid allocation and doubles as the
// free-list terminator.
type Ref = int64
