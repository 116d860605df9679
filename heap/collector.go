// ABOUTME: Incremental copying collector: cycle begin, per-object increments, completion
// ABOUTME: Implements Cheney-style breadth-first copy with forwarding records

package heap

import (
	"fmt"

	"github.com/prateek/semispace/objmodel"
)

// beginCycle swaps the space roles, resets the cursors and sweeps the root
// set, seeding the copy region with every root-referenced object. Must only
// be called while no cycle is active.
func (h *Heap) beginCycle() error {
	h.collecting = true
	h.fromLow = h.next
	h.fromHigh = h.limit
	h.active ^= 1

	h.scan = 0
	h.next = 0
	h.limit = h.toSpace().capacity()

	return h.sweepRoots(true)
}

// sweepRoots visits every registered root slot once, rewriting from-space
// references to their forwarded addresses and copying referents that have
// not been copied yet. Slots holding unmanaged words are left untouched;
// when flag is set they are counted for diagnostics. Mixed-origin root
// contents are expected, never an error.
func (h *Heap) sweepRoots(flag bool) error {
	for _, slot := range h.roots {
		w := *slot
		class, _ := h.Classify(w)
		switch class {
		case SpaceFrom:
			fw, _, err := h.forward(w)
			if err != nil {
				return err
			}
			*slot = fw
		case SpaceUnmanaged:
			if flag && w != 0 {
				h.stats.FlaggedRoots++
			}
		}
	}
	return nil
}

// forward resolves a word against the active cycle: a reference to an
// already-copied from-space object yields the recorded to-space address, an
// uncopied one is copied bytewise to the bottom of the free gap first.
// Forwarding the same address twice always yields the same result. Words
// that are unmanaged or already point into to-space pass through unchanged.
// copied reports whether this call performed the copy.
func (h *Heap) forward(w Word) (_ Word, copied bool, _ error) {
	class, offset := h.Classify(w)
	if class != SpaceFrom {
		return w, false, nil
	}

	from := h.fromSpace()
	header := uint64(from.word(offset))
	if isForwarded(header) {
		return NewRef(h.active, forwardedOffset(header)).Word(), false, nil
	}

	tag, fieldCount, err := objmodel.DecodeHeader(headerBits(header))
	if err != nil {
		return w, false, fmt.Errorf("object at %s: %w", Ref(w), err)
	}
	size, _ := objmodel.SizeOf(tag, fieldCount)

	if h.next+size > h.limit {
		return w, false, ErrOutOfMemory
	}

	dst := h.next
	h.toSpace().copyFrom(from, offset, dst, size)
	h.next += size
	from.setWord(offset, Word(forwardingRecord(header, dst)))

	return NewRef(h.active, dst).Word(), true, nil
}

// step performs one collection increment: it scans the fields of exactly
// one copied object, or, when none remain, re-sweeps the roots and
// completes the cycle. One increment runs per allocation while a cycle is
// active, bounding the collection work attributable to any single call.
func (h *Heap) step() error {
	if !h.collecting {
		return nil
	}

	if h.scan < h.next {
		return h.scanObject()
	}

	// No unscanned copies remain. Roots registered since the cycle began
	// may still hold from-space references; sweep again before declaring
	// the cycle complete. The sweep may copy, reopening the scan region.
	if err := h.sweepRoots(false); err != nil {
		return err
	}
	if h.scan < h.next {
		return nil
	}

	h.completeCycle()
	return nil
}

// scanObject promotes the object at the scan cursor: every managed
// reference field is forwarded in declaration order, then the cursor moves
// past the object. Objects are scanned in the order they were copied, so
// the traversal is breadth-first from the roots and deterministic.
func (h *Heap) scanObject() error {
	to := h.toSpace()
	header := uint64(to.word(h.scan))

	tag, fieldCount, err := objmodel.DecodeHeader(headerBits(header))
	if err != nil {
		return fmt.Errorf("object at %s: %w", NewRef(h.active, h.scan), err)
	}
	size, _ := objmodel.SizeOf(tag, fieldCount)

	for idx := 0; idx < fieldCount; idx++ {
		if objmodel.FieldKindOf(tag, idx) != objmodel.FieldObj {
			continue
		}
		slot := h.scan + objmodel.HeaderSize + idx*objmodel.WordSize
		fw, _, err := h.forward(to.word(slot))
		if err != nil {
			return err
		}
		to.setWord(slot, fw)
	}

	h.scan += size
	return nil
}

// completeCycle ends the active cycle: the vacated from-space is zeroed so
// it is fully free for the next role swap, the cursors collapse back to the
// idle bump-allocator interpretation, and the completed-cycle counter is
// bumped.
func (h *Heap) completeCycle() {
	h.fromSpace().reset()
	h.fromLow = 0
	h.fromHigh = 0
	h.collecting = false
	h.scan = 0
	h.stats.Cycles++
}

// ForceCollect runs an entire collection cycle to completion immediately,
// bypassing the per-allocation pacing. Used for testing and diagnostics.
func (h *Heap) ForceCollect() error {
	if !h.collecting {
		if err := h.beginCycle(); err != nil {
			return err
		}
	}
	for h.collecting {
		if err := h.step(); err != nil {
			return err
		}
	}
	return nil
}
