// ABOUTME: Object model descriptors for the managed-object runtime
// ABOUTME: Defines kind tags, header encoding, field classification and sizing

// Package objmodel describes the shape of managed objects: their kind tags,
// the header word encoding, how many fields each kind carries, and which of
// those fields are managed references. It is a pure descriptor package
// consulted by both the allocator and the collector; it never allocates or
// moves anything itself.
package objmodel

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTag is returned when a header carries a tag outside the
	// known kind set. This signals a producer/collector mismatch.
	ErrUnknownTag = errors.New("unknown object kind tag")

	// ErrBadArity is returned when a field count is not valid for a kind
	ErrBadArity = errors.New("invalid field count for object kind")
)

// Layout constants shared with the runtime that produces objects.
const (
	// WordSize is the size in bytes of one field slot
	WordSize = 8

	// HeaderSize is the size in bytes of the object header word
	HeaderSize = 8

	// Alignment is the alignment of allocated objects
	Alignment = 8

	// TagMask extracts the kind tag from a header word
	TagMask = 0xF

	// FieldCountMask extracts the field count from a header word
	FieldCountMask = 0xFFF0

	// FieldCountShift positions the field count within a header word
	FieldCountShift = 4

	// MaxFieldCount is the largest field count a header can encode
	MaxFieldCount = FieldCountMask >> FieldCountShift
)

// Tag identifies the kind of a managed object
type Tag int

// The kind set supplied by the runtime. Values match the runtime's header
// encoding and must not be reordered.
const (
	Zero Tag = iota
	Succ
	False
	True
	Fn
	Ref
	Unit
	Tuple
	Inl
	Inr
	Empty
	Cons

	numTags
)

var tagNames = [numTags]string{
	Zero:  "zero",
	Succ:  "succ",
	False: "false",
	True:  "true",
	Fn:    "fn",
	Ref:   "ref",
	Unit:  "unit",
	Tuple: "tuple",
	Inl:   "inl",
	Inr:   "inr",
	Empty: "empty",
	Cons:  "cons",
}

// String returns the runtime's kebab-case name for the tag
func (t Tag) String() string {
	if t < 0 || t >= numTags {
		return fmt.Sprintf("tag(%d)", int(t))
	}
	return tagNames[t]
}

// Valid reports whether the tag belongs to the known kind set
func (t Tag) Valid() bool {
	return t >= 0 && t < numTags
}

// ParseTag maps a kebab-case kind name back to its tag
func ParseTag(name string) (Tag, error) {
	for t, n := range tagNames {
		if n == name {
			return Tag(t), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTag, name)
}

// FieldKind classifies a single field slot of a managed object
type FieldKind int

const (
	// FieldObj marks a field holding a reference to another managed object
	FieldObj FieldKind = iota

	// FieldRaw marks a field holding an arbitrary unmanaged value
	FieldRaw

	// FieldInvalid marks a field index outside the kind's shape
	FieldInvalid
)

// FieldKindOf classifies the field with the given 0-based index for objects
// of the given kind. Classification is fixed per kind and never depends on
// the field's current value.
func FieldKindOf(tag Tag, idx int) FieldKind {
	if idx < 0 {
		return FieldInvalid
	}

	switch tag {
	case Succ, Ref, Inl, Inr:
		if idx == 0 {
			return FieldObj
		}
		return FieldInvalid

	case Fn:
		// Field 0 is the closure's code address, unmanaged memory
		if idx == 0 {
			return FieldRaw
		}
		return FieldObj

	case Tuple:
		return FieldObj

	case Cons:
		if idx < 2 {
			return FieldObj
		}
		return FieldInvalid

	case Zero, False, True, Unit, Empty:
		return FieldInvalid
	}

	return FieldInvalid
}

// CheckArity validates a field count against the kind's shape. Succ, Ref,
// Inl and Inr carry exactly one field; Cons carries two; Fn carries its code
// address plus any number of captures; Tuple is variable-arity; the nullary
// kinds carry none.
func CheckArity(tag Tag, fieldCount int) error {
	if !tag.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownTag, int(tag))
	}
	if fieldCount < 0 || fieldCount > MaxFieldCount {
		return fmt.Errorf("%w: %s with %d fields", ErrBadArity, tag, fieldCount)
	}

	ok := false
	switch tag {
	case Zero, False, True, Unit, Empty:
		ok = fieldCount == 0
	case Succ, Ref, Inl, Inr:
		ok = fieldCount == 1
	case Cons:
		ok = fieldCount == 2
	case Fn:
		ok = fieldCount >= 1
	case Tuple:
		ok = true
	}
	if !ok {
		return fmt.Errorf("%w: %s with %d fields", ErrBadArity, tag, fieldCount)
	}
	return nil
}

// SizeOf returns the total byte size of an object with the given kind and
// field count, header included. The result is always a multiple of
// Alignment.
func SizeOf(tag Tag, fieldCount int) (int, error) {
	if err := CheckArity(tag, fieldCount); err != nil {
		return 0, err
	}
	return HeaderSize + fieldCount*WordSize, nil
}

// EncodeHeader builds the header word for an object of the given kind
func EncodeHeader(tag Tag, fieldCount int) (uint64, error) {
	if err := CheckArity(tag, fieldCount); err != nil {
		return 0, err
	}
	return uint64(tag) | uint64(fieldCount)<<FieldCountShift, nil
}

// DecodeHeader extracts the kind tag and field count from a header word
func DecodeHeader(header uint64) (Tag, int, error) {
	tag := Tag(header & TagMask)
	fieldCount := int(header&FieldCountMask) >> FieldCountShift
	if err := CheckArity(tag, fieldCount); err != nil {
		return 0, 0, err
	}
	return tag, fieldCount, nil
}
