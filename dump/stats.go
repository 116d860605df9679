// ABOUTME: Allocation and usage statistics summary writer
// ABOUTME: Mirrors the managed runtime's print_gc_alloc_stats output shape

package dump

import (
	"io"

	"github.com/prateek/semispace/heap"
)

// WriteAllocStats writes the allocation and usage statistics summary. This
// is also the output the fatal abort paths print before terminating, so it
// must never depend on the heap being in a consistent mid-cycle state
// beyond its counters.
func WriteAllocStats(w io.Writer, h *heap.Heap) error {
	p := &printer{w: w}
	s := h.Stats()

	p.printf("  - All-time allocated: %d B (%d objects)\n", s.AllocatedBytes, s.AllocatedObjects)
	p.printf("  - Used:\n")
	p.printf("    - Currently %d B\n", h.UsedBytes())
	p.printf("    - Max: %d B\n", s.MaxUsedBytes)

	inProgress := ""
	if h.Collecting() {
		inProgress = " (one in progress)"
	}
	p.printf("  - GC cycles: %d%s\n", s.Cycles, inProgress)

	p.printf("  - Reads: %d (%d barriers)\n", s.Reads, s.ReadBarriers)
	p.printf("  - Writes: %d (%d barriers)\n", s.Writes, s.WriteBarriers)
	if s.FlaggedRoots > 0 {
		p.printf("  - Unmanaged roots flagged: %d\n", s.FlaggedRoots)
	}

	return p.err
}
