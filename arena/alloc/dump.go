package alloc

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"

	"github.com/joshuapare/heapkit/internal/format"
)

// previewBytes caps the payload preview column in text dumps.
const previewBytes = 16

// Dump writes a block-by-block listing of the region to w: one line per
// block with its file offset, size, and state, plus a payload preview for
// allocated blocks or the list links for free ones, followed by totals.
func (h *Heap) Dump(w io.Writer) error {
	it, err := h.a.Blocks()
	if err != nil {
		return err
	}

	if path := h.a.Path(); path != "" {
		fmt.Fprintf(w, "File:      %s\n", path)
	}
	super := h.a.Super()
	state := "clean"
	if !super.IsClean() {
		state = "in flight"
	}
	fmt.Fprintf(w, "Formatted: %d bytes of %d\n", h.a.FormattedSize(), h.a.Size())
	fmt.Fprintf(w, "Chunk:     %d bytes\n", h.chunk)
	fmt.Fprintf(w, "Sequence:  %d/%d (%s)\n\n", super.Sequence1(), super.Sequence2(), state)

	fmt.Fprintf(w, "%-10s %10s  %-6s %s\n", "OFFSET", "SIZE", "STATE", "DETAIL")

	var blocks, freeBlocks int
	var freeBytes, usedBytes int64
	for {
		bl, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		fileOff := format.HeaderSize + bl.Offset
		switch {
		case bl.Size == 0:
			fmt.Fprintf(w, "0x%08x %10d  %-6s\n", fileOff, bl.Size, "epilog")
		case bl.Offset == format.PrologueHeaderOffset:
			fmt.Fprintf(w, "0x%08x %10d  %-6s\n", fileOff, bl.Size, "prolog")
		case bl.Allocated:
			blocks++
			usedBytes += bl.Size
			fmt.Fprintf(w, "0x%08x %10d  %-6s %q\n", fileOff, bl.Size, "alloc", payloadPreview(bl.Payload))
		default:
			blocks++
			freeBlocks++
			freeBytes += bl.Size
			ref := bl.PayloadRef()
			fmt.Fprintf(w, "0x%08x %10d  %-6s next=0x%x prev=0x%x\n",
				fileOff, bl.Size, "free", h.freeNext(ref), h.freePrev(ref))
		}
	}

	fmt.Fprintf(w, "\n%d blocks, %d free (%d bytes), %d allocated (%d bytes)\n",
		blocks, freeBlocks, freeBytes, blocks-freeBlocks, usedBytes)
	return nil
}

// payloadPreview renders up to previewBytes of p as printable text. Pure
// ASCII is used directly; payloads with high bytes go through the
// Windows-1252 decoder, the usual single-byte encoding in legacy images.
// Anything unprintable becomes a dot.
func payloadPreview(p []byte) string {
	if len(p) > previewBytes {
		p = p[:previewBytes]
	}

	ascii := true
	for _, c := range p {
		if c >= 0x80 {
			ascii = false
			break
		}
	}
	s := string(p)
	if !ascii {
		if decoded, err := charmap.Windows1252.NewDecoder().Bytes(p); err == nil {
			s = string(decoded)
		}
	}

	var b strings.Builder
	for _, r := range s {
		if unicode.IsPrint(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}
