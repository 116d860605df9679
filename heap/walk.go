// ABOUTME: Layout-order object iteration and BFS reachability over the heap
// ABOUTME: Serves diagnostic dumps and acts as the oracle for collection tests

package heap

import (
	"fmt"

	"github.com/prateek/semispace/objmodel"
)

// ForEachObject visits every object laid out in the named region in address
// order. For SpaceTo that is the copy/bump region followed by the objects
// allocated since the active cycle began; for SpaceFrom (valid only during
// a cycle) it is the regions that were in use when the roles swapped,
// forwarded objects included. Iteration stops early when fn returns false.
func (h *Heap) ForEachObject(class SpaceClass, fn func(Ref) bool) error {
	switch class {
	case SpaceTo:
		s := h.toSpace()
		if err := h.walkRegion(s, 0, h.next, fn); err != nil {
			return err
		}
		return h.walkRegion(s, h.limit, s.capacity(), fn)

	case SpaceFrom:
		if !h.collecting {
			return nil
		}
		s := h.fromSpace()
		if err := h.walkRegion(s, 0, h.fromLow, fn); err != nil {
			return err
		}
		return h.walkRegion(s, h.fromHigh, s.capacity(), fn)
	}
	return nil
}

// walkRegion steps through [start, end) one object at a time, sizing each
// from its header.
func (h *Heap) walkRegion(s *space, start, end int, fn func(Ref) bool) error {
	for offset := start; offset < end; {
		tag, fieldCount, err := objmodel.DecodeHeader(headerBits(uint64(s.word(offset))))
		if err != nil {
			return fmt.Errorf("object at %s: %w", NewRef(s.id, offset), err)
		}
		if !fn(NewRef(s.id, offset)) {
			return nil
		}
		size, _ := objmodel.SizeOf(tag, fieldCount)
		offset += size
	}
	return nil
}

// Reachable computes the set of objects reachable from the registered
// roots, following managed-reference fields breadth-first and resolving
// forwarding records along the way. References are reported at the object's
// current location.
func (h *Heap) Reachable() (map[Ref]bool, error) {
	seen := make(map[Ref]bool)
	var queue []Ref

	visit := func(w Word) {
		class, _ := h.Classify(w)
		if class == SpaceUnmanaged {
			return
		}
		r := Ref(w)
		if fwd, ok := h.Forwarded(r); ok {
			r = fwd
		}
		if !seen[r] {
			seen[r] = true
			queue = append(queue, r)
		}
	}

	for _, slot := range h.roots {
		visit(*slot)
	}

	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]

		tag, err := h.Kind(r)
		if err != nil {
			return nil, err
		}
		fieldCount, err := h.FieldCount(r)
		if err != nil {
			return nil, err
		}
		for idx := 0; idx < fieldCount; idx++ {
			if objmodel.FieldKindOf(tag, idx) != objmodel.FieldObj {
				continue
			}
			w, err := h.PeekField(r, idx)
			if err != nil {
				return nil, err
			}
			visit(w)
		}
	}

	return seen, nil
}
