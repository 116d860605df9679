// ABOUTME: Root set dump with unmanaged roots flagged as illegal
// ABOUTME: Mirrors the managed runtime's print_gc_roots output shape

package dump

import (
	"io"

	"github.com/prateek/semispace/heap"
)

// WriteRoots writes one line per registered root slot, rendering the
// referenced object for managed roots and flagging everything else.
// Roots holding unmanaged words are expected (stack slots routinely hold
// non-heap data); flagging is diagnostic, never an error.
func WriteRoots(w io.Writer, h *heap.Heap) error {
	p := &printer{w: w}
	writeRootLines(p, h, "")
	return p.err
}

// writeRootLines renders the root set with the given indent prefix
func writeRootLines(p *printer, h *heap.Heap, prefix string) {
	if h.NumRoots() == 0 {
		p.printf("%sRoots: (none)\n", prefix)
		return
	}

	p.printf("%sRoots:\n", prefix)
	i := 0
	h.ForEachRoot(func(slot *heap.Word) {
		w := *slot
		if class, _ := h.Classify(w); class == heap.SpaceUnmanaged {
			p.printf("%s  - **ILLEGAL** root[%d] holds #%#x (unmanaged memory)\n", prefix, i, uint64(w))
		} else {
			p.printf("%s  - root[%d] -> %s\n", prefix, i, formatWord(h, w, true))
		}
		i++
	})
}
