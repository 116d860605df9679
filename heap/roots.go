// ABOUTME: Root slot registry tracking mutator-visible pointer locations
// ABOUTME: Push/pop stack discipline mirroring host stack-frame entry and exit

package heap

import (
	"errors"
	"fmt"
)

var (
	// ErrRootUnderflow is returned when popping from an empty root stack
	ErrRootUnderflow = errors.New("popping from empty root stack")

	// ErrRootMismatch is returned when the popped slot is not the one on
	// top of the root stack, indicating unbalanced host push/pop calls
	ErrRootMismatch = errors.New("root pop does not match push order")
)

// PushRoot registers an external slot whose content the collector must
// treat as a reachability source and keep valid across moves. The slot
// itself lives outside both spaces and is owned by the host; the collector
// only reads and rewrites its content during a cycle.
func (h *Heap) PushRoot(slot *Word) {
	h.roots = append(h.roots, slot)
}

// PopRoot removes the most recently pushed root slot. Hosts call push and
// pop around stack-frame entry and exit, so removal is strictly LIFO.
func (h *Heap) PopRoot(slot *Word) error {
	if len(h.roots) == 0 {
		return ErrRootUnderflow
	}
	top := h.roots[len(h.roots)-1]
	if top != slot {
		return fmt.Errorf("%w: %p", ErrRootMismatch, slot)
	}
	h.roots = h.roots[:len(h.roots)-1]
	return nil
}

// NumRoots returns the number of registered root slots
func (h *Heap) NumRoots() int {
	return len(h.roots)
}

// ForEachRoot iterates the registered root slots in push order
func (h *Heap) ForEachRoot(fn func(slot *Word)) {
	for _, slot := range h.roots {
		fn(slot)
	}
}
