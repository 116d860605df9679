// ABOUTME: Object header access and forwarding record encoding
// ABOUTME: Exposes kind, size and raw field inspection for live objects

package heap

import (
	"fmt"

	"github.com/prateek/semispace/objmodel"
)

// A forwarding record reuses the object's header word: the mark bit records
// that the object has been copied and the bits above the tag/field-count
// payload hold the to-space offset of the copy. The payload stays intact so
// from-space iteration can still size and name forwarded objects.
const (
	fwdMark        = uint64(1) << 63
	fwdOffsetShift = 16
	fwdOffsetMask  = (uint64(1) << 40) - 1
)

func isForwarded(header uint64) bool {
	return header&fwdMark != 0
}

func forwardedOffset(header uint64) int {
	return int((header >> fwdOffsetShift) & fwdOffsetMask)
}

// headerBits strips any forwarding record from a header word, leaving the
// tag and field count payload.
func headerBits(header uint64) uint64 {
	return header & (objmodel.TagMask | objmodel.FieldCountMask)
}

func forwardingRecord(header uint64, toOffset int) uint64 {
	return fwdMark | uint64(toOffset)<<fwdOffsetShift | headerBits(header)
}

// Kind returns the kind tag of the referenced object
func (h *Heap) Kind(obj Ref) (objmodel.Tag, error) {
	_, _, tag, _, err := h.resolve(obj)
	return tag, err
}

// FieldCount returns the number of fields of the referenced object
func (h *Heap) FieldCount(obj Ref) (int, error) {
	_, _, _, fieldCount, err := h.resolve(obj)
	return fieldCount, err
}

// SizeOfObject returns the total byte size of the referenced object
func (h *Heap) SizeOfObject(obj Ref) (int, error) {
	_, _, tag, fieldCount, err := h.resolve(obj)
	if err != nil {
		return 0, err
	}
	size, err := objmodel.SizeOf(tag, fieldCount)
	if err != nil {
		return 0, err
	}
	return size, nil
}

// Forwarded reports whether the referenced from-space object has been
// copied during the active cycle, and if so where its copy lives.
func (h *Heap) Forwarded(obj Ref) (Ref, bool) {
	class, offset := h.Classify(Word(obj))
	if class != SpaceFrom {
		return NilRef, false
	}
	header := uint64(h.fromSpace().word(offset))
	if !isForwarded(header) {
		return NilRef, false
	}
	return NewRef(h.active, forwardedOffset(header)), true
}

// PeekField loads a field's raw word without barriers or instrumentation.
// It exists for diagnostics and tests; mutator code must go through
// ReadField so in-progress collections stay correct.
func (h *Heap) PeekField(obj Ref, idx int) (Word, error) {
	s, offset, _, fieldCount, err := h.resolve(obj)
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= fieldCount {
		return 0, fmt.Errorf("%w: %d of %s", ErrBadField, idx, obj)
	}
	return s.word(offset + objmodel.HeaderSize + idx*objmodel.WordSize), nil
}
