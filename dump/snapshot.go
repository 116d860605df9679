// ABOUTME: JSON snapshot export and import of complete heap state
// ABOUTME: Objects, roots and counters round-trip for post-mortem inspection

package dump

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/gjson"

	"github.com/prateek/semispace/heap"
	"github.com/prateek/semispace/objmodel"
)

// Snapshot is the JSON representation of an idle heap: every live-laid-out
// object in address order, roots as indices into the object list, and the
// instrumentation counters at the time of the export.
type Snapshot struct {
	Capacity int          `json:"capacity"`
	Objects  []SnapObject `json:"objects"`
	Roots    []int        `json:"roots"`
	Stats    SnapStats    `json:"stats"`
}

// SnapObject is one managed object in a snapshot
type SnapObject struct {
	Kind   string      `json:"kind"`
	Fields []SnapField `json:"fields"`
}

// SnapField is one field slot: either a managed reference, recorded as the
// index of the target object, or a raw unmanaged word.
type SnapField struct {
	Obj *int    `json:"obj,omitempty"`
	Raw *uint64 `json:"raw,omitempty"`
}

// SnapStats mirrors the heap's counters in the snapshot format
type SnapStats struct {
	AllocatedBytes   uint64 `json:"allocated_bytes"`
	AllocatedObjects uint64 `json:"allocated_objects"`
	MaxUsedBytes     uint64 `json:"max_used_bytes"`
	Cycles           uint64 `json:"cycles"`
	Reads            uint64 `json:"reads"`
	Writes           uint64 `json:"writes"`
	ReadBarriers     uint64 `json:"read_barriers"`
	WriteBarriers    uint64 `json:"write_barriers"`
	FlaggedRoots     uint64 `json:"flagged_roots"`
}

// Export captures the heap as a Snapshot. The heap must be idle: mid-cycle
// state (forwarding records, a half-vacated from-space) has no stable
// object list to record. Run ForceCollect first if a cycle is active.
func Export(h *heap.Heap) (*Snapshot, error) {
	if h.Collecting() {
		return nil, heap.ErrCycleActive
	}

	index := make(map[heap.Ref]int)
	var order []heap.Ref
	err := h.ForEachObject(heap.SpaceTo, func(r heap.Ref) bool {
		index[r] = len(order)
		order = append(order, r)
		return true
	})
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Capacity: h.Capacity(),
		Objects:  make([]SnapObject, 0, len(order)),
		Roots:    []int{},
		Stats:    snapStats(h.Stats()),
	}

	for _, r := range order {
		tag, err := h.Kind(r)
		if err != nil {
			return nil, err
		}
		fieldCount, _ := h.FieldCount(r)

		obj := SnapObject{Kind: tag.String(), Fields: make([]SnapField, 0, fieldCount)}
		for idx := 0; idx < fieldCount; idx++ {
			w, err := h.PeekField(r, idx)
			if err != nil {
				return nil, err
			}

			var field SnapField
			if target, ok := index[heap.Ref(w)]; ok &&
				objmodel.FieldKindOf(tag, idx) == objmodel.FieldObj && heap.IsRef(w) {
				field.Obj = &target
			} else {
				raw := uint64(w)
				field.Raw = &raw
			}
			obj.Fields = append(obj.Fields, field)
		}
		snap.Objects = append(snap.Objects, obj)
	}

	h.ForEachRoot(func(slot *heap.Word) {
		if target, ok := index[heap.Ref(*slot)]; ok && heap.IsRef(*slot) {
			snap.Roots = append(snap.Roots, target)
		}
	})

	return snap, nil
}

// WriteSnapshot writes the heap as indented snapshot JSON
func WriteSnapshot(w io.Writer, h *heap.Heap) error {
	snap, err := Export(h)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// JSONSnapshot is a parser for JSON heap snapshots
type JSONSnapshot struct{}

// CanParse checks whether the input looks like snapshot JSON
func (p *JSONSnapshot) CanParse(r io.Reader) bool {
	buf := make([]byte, 4096)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false
	}
	if n == 0 {
		return false
	}

	// The sniffed prefix may cut the document short, so probe with gjson
	// instead of a full decode; it tolerates truncated input.
	return gjson.GetBytes(buf[:n], "objects").Exists()
}

// Parse reads snapshot JSON and rebuilds the heap image. Objects are
// reallocated in their recorded order into a fresh heap of the snapshot's
// capacity, then fields are patched to the rebuilt references.
func (p *JSONSnapshot) Parse(r io.Reader) (*Image, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot JSON: %w", err)
	}
	return Rebuild(&snap)
}

// Rebuild turns a decoded snapshot back into a live heap image
func Rebuild(snap *Snapshot) (*Image, error) {
	h := heap.New(heap.Config{Capacity: snap.Capacity})

	refs := make([]heap.Ref, len(snap.Objects))
	for i, obj := range snap.Objects {
		tag, err := objmodel.ParseTag(obj.Kind)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		r, err := h.Alloc(tag, len(obj.Fields))
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		refs[i] = r
	}

	for i, obj := range snap.Objects {
		for idx, field := range obj.Fields {
			var w heap.Word
			switch {
			case field.Obj != nil:
				target := *field.Obj
				if target < 0 || target >= len(refs) {
					return nil, fmt.Errorf("object %d field %d: target %d out of range", i, idx, target)
				}
				w = refs[target].Word()
			case field.Raw != nil:
				w = heap.Word(*field.Raw)
			}
			if err := h.WriteField(refs[i], idx, w); err != nil {
				return nil, fmt.Errorf("object %d field %d: %w", i, idx, err)
			}
		}
	}

	img := &Image{Heap: h, Stats: heapStats(snap.Stats)}
	for _, target := range snap.Roots {
		if target < 0 || target >= len(refs) {
			return nil, fmt.Errorf("root target %d out of range", target)
		}
		slot := new(heap.Word)
		*slot = refs[target].Word()
		h.PushRoot(slot)
		img.Roots = append(img.Roots, slot)
	}

	return img, nil
}

func snapStats(s heap.Stats) SnapStats {
	return SnapStats{
		AllocatedBytes:   s.AllocatedBytes,
		AllocatedObjects: s.AllocatedObjects,
		MaxUsedBytes:     s.MaxUsedBytes,
		Cycles:           s.Cycles,
		Reads:            s.Reads,
		Writes:           s.Writes,
		ReadBarriers:     s.ReadBarriers,
		WriteBarriers:    s.WriteBarriers,
		FlaggedRoots:     s.FlaggedRoots,
	}
}

func heapStats(s SnapStats) heap.Stats {
	return heap.Stats{
		AllocatedBytes:   s.AllocatedBytes,
		AllocatedObjects: s.AllocatedObjects,
		MaxUsedBytes:     s.MaxUsedBytes,
		Cycles:           s.Cycles,
		Reads:            s.Reads,
		Writes:           s.Writes,
		ReadBarriers:     s.ReadBarriers,
		WriteBarriers:    s.WriteBarriers,
		FlaggedRoots:     s.FlaggedRoots,
	}
}
