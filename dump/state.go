// ABOUTME: Full heap state dump: both spaces, cycle cursors, roots, usage
// ABOUTME: Mirrors the managed runtime's print_gc_state output shape

package dump

import (
	"io"

	"github.com/prateek/semispace/heap"
)

// WriteState writes a human-readable description of the whole heap: every
// object in both spaces, the active cycle's cursors, the root set with
// unmanaged roots flagged, and a usage summary.
func WriteState(w io.Writer, h *heap.Heap) error {
	p := &printer{w: w}

	p.printf("GC state:\n")

	if h.Collecting() {
		p.printf("  - From-space (%d B):\n", h.Capacity())
		writeSpace(p, h, heap.SpaceFrom)
		p.printf("\n")
	}

	p.printf("  - To-space (%d B):\n", h.Capacity())
	writeSpace(p, h, heap.SpaceTo)
	if start, end := h.FreeRegion(); start < end {
		p.printf("    - to%+d..to%+d free (%d B)\n", start, end, end-start)
	}
	p.printf("\n")

	if scan, next, limit, ok := h.Cursors(); ok {
		p.printf("  - Garbage collection currently in progress:\n")
		p.printf("    - Scan: to%+d\n", scan)
		p.printf("    - Next: to%+d\n", next)
		p.printf("    - Limit: to%+d\n", limit)
	} else {
		p.printf("  - Garbage collection currently not running\n")
	}
	p.printf("\n")

	writeRootLines(p, h, "  - ")
	p.printf("\n")

	p.printf("  - Currently used: %d B\n", h.UsedBytes())
	toUsed := h.UsedBytes()
	if h.Collecting() {
		toUsed -= h.Capacity()
		p.printf("    - From-space: %d B / %d B used, 0 B free\n", h.Capacity(), h.Capacity())
	}
	p.printf("    - To-space: %d B / %d B used, %d B free\n", toUsed, h.Capacity(), h.FreeBytes())

	return p.err
}

// writeSpace lists every object laid out in the named space region
func writeSpace(p *printer, h *heap.Heap, class heap.SpaceClass) {
	empty := true
	err := h.ForEachObject(class, func(r heap.Ref) bool {
		empty = false
		_, offset := h.Classify(r.Word())
		p.printf("    - %s: %s\n", formatAddr(class, offset), formatObj(h, r, class, offset, true))
		return p.err == nil
	})
	if err != nil && p.err == nil {
		p.printf("    - **CORRUPT SPACE**: %v\n", err)
	}
	if empty {
		p.printf("    - (empty)\n")
	}
}
