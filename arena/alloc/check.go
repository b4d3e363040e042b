package alloc

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joshuapare/heapkit/arena"
	"github.com/joshuapare/heapkit/internal/format"
)

// Consistency checker. Check never mutates the image; it walks the boundary
// tags and the free list independently and reports every disagreement it
// finds, with exact byte offsets, instead of stopping at the first problem.

// Severity classifies how serious a diagnostic issue is.
type Severity int

const (
	SevInfo     Severity = iota // informational, unusual but valid
	SevWarning                  // non-critical, image still fully usable
	SevError                    // an invariant is broken, blocks may be lost
	SevCritical                 // structural corruption, walking is unreliable
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	case SevCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the kind of issue found.
type Category int

const (
	CatStructure Category = iota // sentinel frame, boundary tags, tiling
	CatFreeList                  // explicit free-list links and membership
	CatIntegrity                 // superblock checksum and sequence numbers
)

func (c Category) String() string {
	switch c {
	case CatStructure:
		return "STRUCTURE"
	case CatFreeList:
		return "FREELIST"
	case CatIntegrity:
		return "INTEGRITY"
	default:
		return "UNKNOWN"
	}
}

// Diagnostic is a single issue found in the image.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	Offset   int64    `json:"offset"` // absolute file offset
	Issue    string   `json:"issue"`
	Expected any      `json:"expected,omitempty"`
	Actual   any      `json:"actual,omitempty"`
}

// Summary provides quick issue counts per severity.
type Summary struct {
	Critical int `json:"critical"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// Report collects all diagnostics found during a check.
type Report struct {
	Path     string        `json:"path,omitempty"`
	FileSize int64         `json:"file_size"`
	ScanTime time.Duration `json:"scan_time"`

	Diagnostics []Diagnostic `json:"diagnostics"`
	Summary     Summary      `json:"summary"`

	Blocks     int `json:"blocks"`      // blocks between the sentinels
	FreeBlocks int `json:"free_blocks"` // free blocks seen in the tag walk
}

// Add appends a diagnostic and updates the summary.
func (r *Report) Add(d Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)
	switch d.Severity {
	case SevCritical:
		r.Summary.Critical++
	case SevError:
		r.Summary.Errors++
	case SevWarning:
		r.Summary.Warnings++
	case SevInfo:
		r.Summary.Info++
	}
}

// OK reports whether the image passed with nothing worse than info findings.
func (r *Report) OK() bool {
	return r.Summary.Critical == 0 && r.Summary.Errors == 0 && r.Summary.Warnings == 0
}

// HasErrors reports whether any error or critical issue was found.
func (r *Report) HasErrors() bool {
	return r.Summary.Critical > 0 || r.Summary.Errors > 0
}

// Finalize sorts diagnostics by offset for sequential reading.
func (r *Report) Finalize() {
	sort.SliceStable(r.Diagnostics, func(i, j int) bool {
		return r.Diagnostics[i].Offset < r.Diagnostics[j].Offset
	})
}

// Check audits the whole image: superblock integrity, the sentinel frame,
// every boundary tag pair, block tiling, neighbor coalescing, and the
// explicit free list in both directions.
func (h *Heap) Check() *Report {
	start := time.Now()
	r := &Report{
		Path:     h.a.Path(),
		FileSize: h.a.Size(),
	}

	checkSuper(h.a, r)
	frameOK := checkFrame(h.a, r)

	var freeSet map[Ref]bool
	if frameOK {
		freeSet = checkBlocks(h.a, r)
	}
	h.checkFreeList(r, freeSet)

	r.ScanTime = time.Since(start)
	r.Finalize()
	return r
}

// CheckImage audits an image without attaching an allocator to it, so it
// works on images too damaged for New to accept. It covers everything Check
// covers except the explicit free list, which is rebuilt at attach time
// rather than persisted and therefore only exists on a live Heap.
func CheckImage(a *arena.Arena) *Report {
	start := time.Now()
	r := &Report{
		Path:     a.Path(),
		FileSize: a.Size(),
	}

	checkSuper(a, r)
	if checkFrame(a, r) {
		checkBlocks(a, r)
	}

	r.ScanTime = time.Since(start)
	r.Finalize()
	return r
}

// regionTag reads the boundary tag at a heap-relative offset.
func regionTag(a *arena.Arena, off int64) (int64, bool) {
	return format.ReadTag(a.Bytes(), int(format.HeaderSize+off))
}

// checkSuper verifies the superblock checksum and sequence pair.
func checkSuper(a *arena.Arena, r *Report) {
	super := a.Super()
	if !super.ChecksumOK() {
		r.Add(Diagnostic{
			Severity: SevError,
			Category: CatIntegrity,
			Offset:   format.SuperChecksumOffset,
			Issue:    "superblock checksum mismatch",
			Expected: fmt.Sprintf("0x%08x", super.ComputeChecksum()),
			Actual:   fmt.Sprintf("0x%08x", super.Checksum()),
		})
	}
	if !super.IsClean() {
		r.Add(Diagnostic{
			Severity: SevWarning,
			Category: CatIntegrity,
			Offset:   format.SuperPrimarySeqOffset,
			Issue:    "sequence numbers differ, last update may not have completed",
			Expected: super.Sequence1(),
			Actual:   super.Sequence2(),
		})
	}
}

// checkFrame verifies the pad word, the prologue pair, and the epilogue.
// Returns false when the frame is too damaged for a reliable block walk.
func checkFrame(a *arena.Arena, r *Report) bool {
	formatted := a.FormattedSize()
	if formatted < format.BootstrapSize {
		r.Add(Diagnostic{
			Severity: SevCritical,
			Category: CatStructure,
			Offset:   format.SuperFormattedSizeOffset,
			Issue:    "formatted size below bootstrap layout",
			Expected: int64(format.BootstrapSize),
			Actual:   formatted,
		})
		return false
	}

	ok := true
	if pad := format.ReadU64(a.Bytes(), format.HeaderSize+format.PadOffset); pad != 0 {
		r.Add(Diagnostic{
			Severity: SevWarning,
			Category: CatStructure,
			Offset:   format.HeaderSize + format.PadOffset,
			Issue:    "pad word is not zero",
			Expected: uint64(0),
			Actual:   pad,
		})
	}
	if size, allocated := regionTag(a, format.PrologueHeaderOffset); size != format.Overhead || !allocated {
		r.Add(Diagnostic{
			Severity: SevCritical,
			Category: CatStructure,
			Offset:   format.HeaderSize + format.PrologueHeaderOffset,
			Issue:    "prologue header damaged",
			Expected: tagString(format.Overhead, true),
			Actual:   tagString(size, allocated),
		})
		ok = false
	}
	if size, allocated := regionTag(a, format.PrologueFooterOffset); size != format.Overhead || !allocated {
		r.Add(Diagnostic{
			Severity: SevCritical,
			Category: CatStructure,
			Offset:   format.HeaderSize + format.PrologueFooterOffset,
			Issue:    "prologue footer damaged",
			Expected: tagString(format.Overhead, true),
			Actual:   tagString(size, allocated),
		})
		ok = false
	}
	epilogue := formatted - format.WordSize
	if size, allocated := regionTag(a, epilogue); size != 0 || !allocated {
		r.Add(Diagnostic{
			Severity: SevCritical,
			Category: CatStructure,
			Offset:   format.HeaderSize + epilogue,
			Issue:    "epilogue header damaged",
			Expected: tagString(0, true),
			Actual:   tagString(size, allocated),
		})
		ok = false
	}
	return ok
}

// checkBlocks walks the tags from the prologue to the epilogue, verifying
// header/footer agreement, tiling, and eager coalescing. Returns the set of
// free block refs seen, for cross-checking against the free list.
func checkBlocks(a *arena.Arena, r *Report) map[Ref]bool {
	end := a.FormattedSize() - format.WordSize
	freeSet := make(map[Ref]bool)

	prevFree := false
	off := int64(format.FirstBlockOffset)
	for off < end {
		size, allocated := regionTag(a, off)
		if size < format.MinBlockSize || off+size > end {
			r.Add(Diagnostic{
				Severity: SevCritical,
				Category: CatStructure,
				Offset:   format.HeaderSize + off,
				Issue:    "block size breaks region tiling, walk stopped",
				Actual:   size,
			})
			return freeSet
		}

		r.Blocks++
		if fsize, falloc := regionTag(a, off+size-format.WordSize); fsize != size || falloc != allocated {
			r.Add(Diagnostic{
				Severity: SevError,
				Category: CatStructure,
				Offset:   format.HeaderSize + off + size - format.WordSize,
				Issue:    "footer does not match header",
				Expected: tagString(size, allocated),
				Actual:   tagString(fsize, falloc),
			})
		}

		if !allocated {
			r.FreeBlocks++
			freeSet[off+format.WordSize] = true
			if prevFree {
				r.Add(Diagnostic{
					Severity: SevError,
					Category: CatStructure,
					Offset:   format.HeaderSize + off,
					Issue:    "adjacent free blocks, coalescing was missed",
				})
			}
		}
		prevFree = !allocated
		off += size
	}
	return freeSet
}

// checkFreeList walks the explicit list, verifying that every node is a
// known free block, that prev links mirror next links, and that the list
// has no cycle. freeSet may be nil when the block walk was aborted; link
// checks still run but membership is skipped.
func (h *Heap) checkFreeList(r *Report, freeSet map[Ref]bool) {
	formatted := h.a.FormattedSize()
	visited := make(map[Ref]bool)

	prev := Ref(0)
	for ref := h.freeHead; ref != 0; ref = h.freeNext(ref) {
		if ref < format.FirstPayloadOffset || ref%format.BlockAlign != 0 || ref >= formatted {
			r.Add(Diagnostic{
				Severity: SevCritical,
				Category: CatFreeList,
				Offset:   format.HeaderSize + prev,
				Issue:    "free-list link points outside the region, walk stopped",
				Actual:   fmt.Sprintf("0x%x", ref),
			})
			return
		}
		if visited[ref] {
			r.Add(Diagnostic{
				Severity: SevCritical,
				Category: CatFreeList,
				Offset:   format.HeaderSize + ref,
				Issue:    "free list contains a cycle, walk stopped",
			})
			return
		}
		visited[ref] = true

		if freeSet != nil && !freeSet[ref] {
			r.Add(Diagnostic{
				Severity: SevError,
				Category: CatFreeList,
				Offset:   format.HeaderSize + ref,
				Issue:    "free-list node is not a free block",
			})
		}
		if got := h.freePrev(ref); got != prev {
			r.Add(Diagnostic{
				Severity: SevError,
				Category: CatFreeList,
				Offset:   format.HeaderSize + ref + format.WordSize,
				Issue:    "prev link does not mirror next link",
				Expected: fmt.Sprintf("0x%x", prev),
				Actual:   fmt.Sprintf("0x%x", got),
			})
		}
		prev = ref
	}

	for ref := range freeSet {
		if !visited[ref] {
			r.Add(Diagnostic{
				Severity: SevError,
				Category: CatFreeList,
				Offset:   format.HeaderSize + ref,
				Issue:    "free block is not on the free list",
			})
		}
	}
}

func tagString(size int64, allocated bool) string {
	state := "free"
	if allocated {
		state = "allocated"
	}
	return fmt.Sprintf("size %d, %s", size, state)
}

// FormatJSON returns the report as formatted JSON.
func (r *Report) FormatJSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatText returns a human-readable text report.
func (r *Report) FormatText() string {
	var b strings.Builder

	b.WriteString(strings.Repeat("=", 72) + "\n")
	b.WriteString("Heap Image Check Report\n")
	b.WriteString(strings.Repeat("=", 72) + "\n\n")

	if r.Path != "" {
		b.WriteString(fmt.Sprintf("File:      %s\n", r.Path))
	}
	b.WriteString(fmt.Sprintf("Size:      %d bytes\n", r.FileSize))
	b.WriteString(fmt.Sprintf("Blocks:    %d (%d free)\n", r.Blocks, r.FreeBlocks))
	b.WriteString(fmt.Sprintf("Scan time: %v\n\n", r.ScanTime))

	b.WriteString("SUMMARY\n")
	b.WriteString(strings.Repeat("-", 72) + "\n")
	b.WriteString(fmt.Sprintf("  Critical: %d\n", r.Summary.Critical))
	b.WriteString(fmt.Sprintf("  Errors:   %d\n", r.Summary.Errors))
	b.WriteString(fmt.Sprintf("  Warnings: %d\n", r.Summary.Warnings))
	b.WriteString(fmt.Sprintf("  Info:     %d\n\n", r.Summary.Info))

	if len(r.Diagnostics) == 0 {
		b.WriteString("No issues found.\n")
		return b.String()
	}

	b.WriteString("DIAGNOSTICS\n")
	b.WriteString(strings.Repeat("-", 72) + "\n")
	for i, d := range r.Diagnostics {
		b.WriteString(fmt.Sprintf("\n%d. [%s/%s] at offset 0x%X\n", i+1, d.Severity, d.Category, d.Offset))
		b.WriteString(fmt.Sprintf("   %s\n", d.Issue))
		if d.Expected != nil {
			b.WriteString(fmt.Sprintf("   Expected: %v\n", d.Expected))
		}
		if d.Actual != nil {
			b.WriteString(fmt.Sprintf("   Actual:   %v\n", d.Actual))
		}
	}
	return b.String()
}

// FormatTextCompact returns a one-line-per-issue text format.
func (r *Report) FormatTextCompact() string {
	if len(r.Diagnostics) == 0 {
		return "No issues found.\n"
	}
	var b strings.Builder
	for _, d := range r.Diagnostics {
		b.WriteString(fmt.Sprintf("0x%08X [%s/%s] %s\n", d.Offset, d.Severity, d.Category, d.Issue))
	}
	return b.String()
}
