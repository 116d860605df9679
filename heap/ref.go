// ABOUTME: Tagged reference and word types for the two-space heap
// ABOUTME: Encodes managed references as space identifier plus byte offset

package heap

import "fmt"

// Word is the raw 64-bit content of a field slot or root slot. A word either
// encodes a managed reference (see Ref) or carries an arbitrary unmanaged
// value; which one a given slot holds is decided by the object model's field
// classification, never by inspecting the value.
type Word uint64

// SpaceID names one of the two semi-spaces. Identities are fixed for the
// life of the heap; the from/to roles rotate between them on every cycle.
type SpaceID uint8

// Ref is a tagged reference to a managed object: a managed bit, the identity
// of the space the object lives in, and the byte offset of its header within
// that space. Relocation is an offset rewrite, never pointer arithmetic.
type Ref Word

// NilRef is the zero reference. It is not managed and is never followed.
const NilRef Ref = 0

const (
	refManagedBit = Word(1) << 63
	refSpaceBit   = Word(1) << 62
	refOffsetMask = refSpaceBit - 1
)

// NewRef builds a managed reference to the object at the given offset
func NewRef(space SpaceID, offset int) Ref {
	w := refManagedBit | Word(offset)&refOffsetMask
	if space != 0 {
		w |= refSpaceBit
	}
	return Ref(w)
}

// IsRef reports whether a word encodes a managed reference
func IsRef(w Word) bool {
	return w&refManagedBit != 0
}

// SpaceID returns the identity of the space the reference points into
func (r Ref) SpaceID() SpaceID {
	if Word(r)&refSpaceBit != 0 {
		return 1
	}
	return 0
}

// Offset returns the byte offset of the referenced object's header
func (r Ref) Offset() int {
	return int(Word(r) & refOffsetMask)
}

// Word returns the raw slot encoding of the reference
func (r Ref) Word() Word {
	return Word(r)
}

// String renders the reference for diagnostics
func (r Ref) String() string {
	if !IsRef(Word(r)) {
		return fmt.Sprintf("#%#x", uint64(r))
	}
	return fmt.Sprintf("space%d+%d", r.SpaceID(), r.Offset())
}

// SpaceClass names the region of the heap a word points into, relative to
// the current cycle's from/to role assignment.
type SpaceClass int

const (
	// SpaceUnmanaged marks words that do not point into either space
	SpaceUnmanaged SpaceClass = iota

	// SpaceFrom marks references into the space being vacated by a cycle
	SpaceFrom

	// SpaceTo marks references into the space currently receiving objects
	SpaceTo
)

// String returns the class name used in diagnostic dumps
func (c SpaceClass) String() string {
	switch c {
	case SpaceFrom:
		return "from"
	case SpaceTo:
		return "to"
	default:
		return "unmanaged"
	}
}
