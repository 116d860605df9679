// ABOUTME: Field read/write accessors with barrier logic and access counting
// ABOUTME: Keeps mutator-observed references out of from-space during a cycle

package heap

import (
	"fmt"

	"github.com/prateek/semispace/objmodel"
)

// ReadField reads a field of a managed object. While a cycle is active, a
// managed-reference result still pointing into from-space is forwarded and
// the slot rewritten before the value is returned, so the mutator never
// observes a from-space address once relocation has begun. The read counts
// as a barrier only when it had to perform the copy itself; reads that
// merely chase an existing forwarding record do not.
func (h *Heap) ReadField(obj Ref, idx int) (Word, error) {
	h.stats.Reads++

	s, offset, tag, fieldCount, err := h.resolve(obj)
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= fieldCount {
		return 0, fmt.Errorf("%w: %d of %s", ErrBadField, idx, obj)
	}

	slot := offset + objmodel.HeaderSize + idx*objmodel.WordSize
	w := s.word(slot)

	if h.collecting && objmodel.FieldKindOf(tag, idx) == objmodel.FieldObj {
		if class, _ := h.Classify(w); class == SpaceFrom {
			fw, copied, err := h.forward(w)
			if err != nil {
				return 0, err
			}
			s.setWord(slot, fw)
			w = fw
			if copied {
				h.stats.ReadBarriers++
			}
		}
	}

	return w, nil
}

// WriteField stores a value into a field of a managed object. While a cycle
// is active, storing a managed reference that still points into from-space
// forwards the referent first, so already-scanned objects never reacquire
// from-space edges. As with reads, only a store that performed the copy
// counts as a barrier.
func (h *Heap) WriteField(obj Ref, idx int, value Word) error {
	h.stats.Writes++

	s, offset, tag, fieldCount, err := h.resolve(obj)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= fieldCount {
		return fmt.Errorf("%w: %d of %s", ErrBadField, idx, obj)
	}

	if h.collecting && objmodel.FieldKindOf(tag, idx) == objmodel.FieldObj {
		if class, _ := h.Classify(value); class == SpaceFrom {
			fw, copied, err := h.forward(value)
			if err != nil {
				return err
			}
			value = fw
			if copied {
				h.stats.WriteBarriers++
			}
		}
	}

	s.setWord(offset+objmodel.HeaderSize+idx*objmodel.WordSize, value)
	return nil
}
