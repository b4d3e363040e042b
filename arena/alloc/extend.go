package alloc

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/format"
)

// extend grows the region by at least n bytes, stamps the new span as a
// single free block, installs a fresh epilogue after it, and coalesces with
// the block that ended at the old epilogue. Returns the ref of the
// resulting free block.
//
// The formatted size is bumped only after the new span carries valid tags,
// so a crash mid-extension leaves slack that the next Open truncates away.
func (h *Heap) extend(n int64) (Ref, error) {
	size := format.AlignBlock(n)

	oldFormatted := h.a.FormattedSize()
	if err := h.a.Append(size); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGrowFail, err)
	}

	// The old epilogue header becomes the new block's header; the last
	// word of the new span becomes the next epilogue.
	ref := oldFormatted
	h.writeBlock(ref, size, false)
	h.putTag(ref+size-format.WordSize, 0, true)

	h.a.BumpFormattedSize(size)
	h.stats.GrowCalls++
	h.stats.GrowBytes += size
	if h.onGrow != nil {
		h.onGrow(size)
	}

	return h.coalesce(ref), nil
}
