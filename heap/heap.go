// ABOUTME: Heap context owning the two semi-spaces and the allocator front end
// ABOUTME: Implements bump allocation with collection-on-exhaustion and retry

// Package heap implements an incremental copying semi-space garbage
// collector. A Heap owns two fixed-capacity arenas, a bump allocator, a
// registry of external root slots, and the scan/next/limit cycle state that
// lets collection work proceed in bounded increments interleaved with
// allocation.
//
// The heap is strictly single-threaded: the mutator and the collector share
// one execution context and collection increments run only inside Alloc or
// inside a field access that triggers a barrier. Callers that share a Heap
// across goroutines must provide their own serialization (see the abi
// package for the process-wide instance).
package heap

import (
	"errors"
	"fmt"

	"github.com/prateek/semispace/objmodel"
)

var (
	// ErrOutOfMemory is returned when live data cannot fit in one space
	// even after a full collection cycle. The heap is not usable after
	// this error; the caller is expected to treat it as fatal.
	ErrOutOfMemory = errors.New("heap out of memory")

	// ErrBadRef is returned when an operation is given a word that is not
	// a valid reference to a live managed object
	ErrBadRef = errors.New("invalid object reference")

	// ErrBadField is returned when a field index is out of range for the
	// referenced object
	ErrBadField = errors.New("field index out of range")

	// ErrCycleActive is returned by operations that require an idle heap
	// while a collection cycle is in progress
	ErrCycleActive = errors.New("collection cycle in progress")
)

const (
	// DefaultCapacity is the per-space byte capacity used when the
	// configuration does not supply one.
	DefaultCapacity = 64 * 1024

	// maxCapacity bounds the per-space capacity so that byte offsets
	// always fit in a forwarding record.
	maxCapacity = 1 << 40
)

// Config carries the build-time configuration of a heap
type Config struct {
	// Capacity is the byte capacity of each semi-space. Zero selects
	// DefaultCapacity. The value is aligned down to the object alignment
	// and bounded so offsets fit in reference and forwarding encodings.
	Capacity int
}

// Heap is one independent garbage-collected heap instance. Multiple heaps
// may coexist in one process; nothing is shared between them.
type Heap struct {
	spaces [2]*space

	// active is the identity of the space currently filling the to-space
	// role: the allocation target during a cycle, or the sole space in
	// use outside one.
	active SpaceID

	// collecting is true while a cycle is active; the inactive space
	// holds the from-space role only then.
	collecting bool

	// Cycle cursors, byte offsets into the active space. Outside a cycle
	// scan is unused, next is the bump pointer and limit the end of the
	// free area. Within a cycle [0, scan) is fully scanned, [scan, next)
	// holds copied-but-unscanned objects, [next, limit) is free, and
	// [limit, capacity) holds objects allocated since the cycle began.
	scan  int
	next  int
	limit int

	// Extent of the from-space's two used regions at the moment the
	// roles swapped, for iteration while the cycle runs.
	fromLow  int
	fromHigh int

	roots []*Word
	stats Stats
}

// New creates a heap with two freshly zeroed semi-spaces
func New(cfg Config) *Heap {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity > maxCapacity {
		capacity = maxCapacity
	}
	capacity = alignDown(capacity, objmodel.Alignment)

	h := &Heap{
		spaces: [2]*space{
			newSpace(0, capacity),
			newSpace(1, capacity),
		},
	}
	h.limit = capacity
	return h
}

// Capacity returns the fixed byte capacity of each semi-space
func (h *Heap) Capacity() int {
	return h.spaces[0].capacity()
}

// Collecting reports whether a collection cycle is currently active
func (h *Heap) Collecting() bool {
	return h.collecting
}

// Cursors returns the active cycle's scan, next and limit offsets. ok is
// false when no cycle is in progress.
func (h *Heap) Cursors() (scan, next, limit int, ok bool) {
	if !h.collecting {
		return 0, 0, 0, false
	}
	return h.scan, h.next, h.limit, true
}

// Alloc allocates a new object of the given kind, returning a reference
// into the active space with all fields zeroed. If the active space is
// exhausted a collection cycle begins and the request is retried exactly
// once against the vacated space; while a cycle is active each allocation
// also drives one collection increment. ErrOutOfMemory means live data
// exceeds one space's capacity and the heap cannot continue.
func (h *Heap) Alloc(tag objmodel.Tag, fieldCount int) (Ref, error) {
	size, err := objmodel.SizeOf(tag, fieldCount)
	if err != nil {
		return NilRef, err
	}

	if !h.collecting {
		if h.next+size <= h.limit {
			offset := h.next
			h.next += size
			h.writeNew(offset, tag, fieldCount)
			h.recordAlloc(size)
			return NewRef(h.active, offset), nil
		}

		if err := h.beginCycle(); err != nil {
			return NilRef, err
		}
	}

	// The retry: carve the object from the top of the free gap so the
	// copy region growing from the bottom never runs through it.
	if h.limit-size < h.next {
		return NilRef, ErrOutOfMemory
	}
	h.limit -= size
	offset := h.limit
	h.writeNew(offset, tag, fieldCount)

	if err := h.step(); err != nil {
		return NilRef, err
	}

	h.recordAlloc(size)
	return NewRef(h.active, offset), nil
}

// writeNew lays down a fresh object at offset in the active space
func (h *Heap) writeNew(offset int, tag objmodel.Tag, fieldCount int) {
	header, _ := objmodel.EncodeHeader(tag, fieldCount)
	s := h.spaces[h.active]
	s.setWord(offset, Word(header))
	clear(s.mem[offset+objmodel.HeaderSize : offset+objmodel.HeaderSize+fieldCount*objmodel.WordSize])
}

// recordAlloc updates the allocation counters after a successful allocation
func (h *Heap) recordAlloc(size int) {
	h.stats.AllocatedBytes += uint64(size)
	h.stats.AllocatedObjects++
	if used := uint64(h.UsedBytes()); used > h.stats.MaxUsedBytes {
		h.stats.MaxUsedBytes = used
	}
}

// UsedBytes returns how much memory is currently used across both spaces.
// While a cycle is active the whole from-space counts as used, since none
// of it has been reclaimed yet.
func (h *Heap) UsedBytes() int {
	used := h.next + (h.Capacity() - h.limit)
	if h.collecting {
		used += h.Capacity()
	}
	return used
}

// FreeBytes returns how much memory remains before the next cycle begins
func (h *Heap) FreeBytes() int {
	return h.limit - h.next
}

// FreeRegion returns the byte offsets bounding the active space's free
// area. New objects are laid down at start; during a cycle the triggering
// allocations descend from end instead.
func (h *Heap) FreeRegion() (start, end int) {
	return h.next, h.limit
}

// fromSpace returns the space holding the from-space role. Only valid while
// a cycle is active.
func (h *Heap) fromSpace() *space {
	return h.spaces[h.active^1]
}

// toSpace returns the space holding the to-space role
func (h *Heap) toSpace() *space {
	return h.spaces[h.active]
}

// Classify determines which region of the heap a word points into, along
// with the byte offset within that region. Unmanaged words, references past
// a space's extent, and references into the inactive space outside a cycle
// all classify as unmanaged.
func (h *Heap) Classify(w Word) (SpaceClass, int) {
	if !IsRef(w) {
		return SpaceUnmanaged, 0
	}
	r := Ref(w)
	if !h.spaces[r.SpaceID()].contains(r.Offset()) {
		return SpaceUnmanaged, 0
	}
	if r.SpaceID() == h.active {
		return SpaceTo, r.Offset()
	}
	if h.collecting {
		return SpaceFrom, r.Offset()
	}
	return SpaceUnmanaged, 0
}

// resolve validates a reference and follows its forwarding record if one
// has been installed, returning the space and offset holding the object's
// current bytes together with its decoded header.
func (h *Heap) resolve(obj Ref) (*space, int, objmodel.Tag, int, error) {
	class, offset := h.Classify(Word(obj))
	if class == SpaceUnmanaged {
		return nil, 0, 0, 0, fmt.Errorf("%w: %s", ErrBadRef, obj)
	}

	s := h.spaces[obj.SpaceID()]
	header := uint64(s.word(offset))
	if class == SpaceFrom && isForwarded(header) {
		s = h.toSpace()
		offset = forwardedOffset(header)
		header = uint64(s.word(offset))
	}

	tag, fieldCount, err := objmodel.DecodeHeader(headerBits(header))
	if err != nil {
		return nil, 0, 0, 0, fmt.Errorf("object at %s: %w", obj, err)
	}
	return s, offset, tag, fieldCount, nil
}
