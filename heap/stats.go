// ABOUTME: Monotonic instrumentation counters for allocation and field access
// ABOUTME: Snapshot type feeding the diagnostic dump producers

package heap

// Stats holds the heap's monotonic instrumentation counters. All counters
// only ever grow; current usage is derived from the cursors instead (see
// UsedBytes) since it shrinks when a cycle completes.
type Stats struct {
	// AllocatedBytes is the all-time number of bytes allocated
	AllocatedBytes uint64

	// AllocatedObjects is the all-time number of objects allocated
	AllocatedObjects uint64

	// MaxUsedBytes is the historical maximum of used memory
	MaxUsedBytes uint64

	// Cycles is the number of completed collection cycles
	Cycles uint64

	// Reads is the number of field reads through ReadField
	Reads uint64

	// Writes is the number of field writes through WriteField
	Writes uint64

	// ReadBarriers is the number of reads that copied their referent out
	// of from-space before returning
	ReadBarriers uint64

	// WriteBarriers is the number of writes that copied the stored
	// referent out of from-space before the store
	WriteBarriers uint64

	// FlaggedRoots is the number of root visits that found unmanaged,
	// non-nil content. Diagnostic only; such roots are expected and are
	// left untouched.
	FlaggedRoots uint64
}

// Stats returns a snapshot of the instrumentation counters
func (h *Heap) Stats() Stats {
	return h.stats
}
