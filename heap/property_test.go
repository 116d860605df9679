// ABOUTME: Property-based tests for the collector over random object graphs
// ABOUTME: Checks reachability preservation, usage accounting, determinism and monotonic stats

package heap

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/prateek/semispace/objmodel"
)

// mutator drives a heap through a random but reproducible op sequence,
// holding references only through rooted slots the way a host program's
// stack would.
type mutator struct {
	t     *testing.T
	h     *Heap
	rng   *rand.Rand
	slots []*Word
}

var allocKinds = []struct {
	tag objmodel.Tag
	n   int
}{
	{objmodel.Zero, 0},
	{objmodel.Unit, 0},
	{objmodel.Succ, 1},
	{objmodel.Ref, 1},
	{objmodel.Inl, 1},
	{objmodel.Cons, 2},
	{objmodel.Tuple, 3},
	{objmodel.Tuple, 4},
}

func (m *mutator) step() {
	switch m.rng.Intn(10) {
	case 0, 1, 2, 3:
		kind := allocKinds[m.rng.Intn(len(allocKinds))]
		r, err := m.h.Alloc(kind.tag, kind.n)
		if err != nil {
			m.t.Fatalf("Alloc(%v, %d) failed: %v", kind.tag, kind.n, err)
		}
		if len(m.slots) < 24 || m.rng.Intn(2) == 0 {
			slot := new(Word)
			*slot = r.Word()
			m.h.PushRoot(slot)
			m.slots = append(m.slots, slot)
		}

	case 4, 5, 6:
		// Link one rooted object's field to another rooted object
		holder, idx, ok := m.pickObjField()
		if !ok {
			return
		}
		target := m.slots[m.rng.Intn(len(m.slots))]
		if err := m.h.WriteField(holder, idx, *target); err != nil {
			m.t.Fatalf("WriteField failed: %v", err)
		}

	case 7, 8:
		holder, idx, ok := m.pickObjField()
		if !ok {
			return
		}
		if _, err := m.h.ReadField(holder, idx); err != nil {
			m.t.Fatalf("ReadField failed: %v", err)
		}

	case 9:
		if len(m.slots) > 1 && m.rng.Intn(4) == 0 {
			last := m.slots[len(m.slots)-1]
			if err := m.h.PopRoot(last); err != nil {
				m.t.Fatalf("PopRoot failed: %v", err)
			}
			m.slots = m.slots[:len(m.slots)-1]
		} else if m.rng.Intn(8) == 0 {
			if err := m.h.ForceCollect(); err != nil {
				m.t.Fatalf("ForceCollect failed: %v", err)
			}
		}
	}
}

// pickObjField finds a rooted object with at least one managed-reference
// field and picks one of those fields.
func (m *mutator) pickObjField() (Ref, int, bool) {
	for attempt := 0; attempt < 8 && len(m.slots) > 0; attempt++ {
		slot := m.slots[m.rng.Intn(len(m.slots))]
		r := Ref(*slot)
		tag, err := m.h.Kind(r)
		if err != nil {
			m.t.Fatalf("Kind of rooted object failed: %v", err)
		}
		fieldCount, _ := m.h.FieldCount(r)
		var objFields []int
		for idx := 0; idx < fieldCount; idx++ {
			if objmodel.FieldKindOf(tag, idx) == objmodel.FieldObj {
				objFields = append(objFields, idx)
			}
		}
		if len(objFields) > 0 {
			return r, objFields[m.rng.Intn(len(objFields))], true
		}
	}
	return NilRef, 0, false
}

// shapeSignature renders the rooted object graph as a canonical string:
// objects are numbered in first-visit order, so the signature is stable
// across relocation.
func shapeSignature(t *testing.T, h *Heap) string {
	t.Helper()

	var b strings.Builder
	ids := make(map[Ref]int)

	var walk func(w Word)
	walk = func(w Word) {
		class, _ := h.Classify(w)
		if class == SpaceUnmanaged {
			fmt.Fprintf(&b, "u%x;", uint64(w))
			return
		}
		r := Ref(w)
		if fwd, ok := h.Forwarded(r); ok {
			r = fwd
		}
		if id, ok := ids[r]; ok {
			fmt.Fprintf(&b, "^%d;", id)
			return
		}
		ids[r] = len(ids)

		tag, err := h.Kind(r)
		if err != nil {
			t.Fatalf("Kind failed during walk: %v", err)
		}
		fieldCount, _ := h.FieldCount(r)
		fmt.Fprintf(&b, "%s/%d(", tag, fieldCount)
		for idx := 0; idx < fieldCount; idx++ {
			fw, err := h.PeekField(r, idx)
			if err != nil {
				t.Fatalf("PeekField failed during walk: %v", err)
			}
			if objmodel.FieldKindOf(tag, idx) == objmodel.FieldObj {
				walk(fw)
			} else {
				fmt.Fprintf(&b, "r%x;", uint64(fw))
			}
		}
		b.WriteString(")")
	}

	h.ForEachRoot(func(slot *Word) {
		walk(*slot)
	})
	return b.String()
}

// Property: collection preserves the rooted object graph by value
func TestPropertyReachabilityPreserved(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		h := New(Config{Capacity: 16384})
		m := &mutator{t: t, h: h, rng: rand.New(rand.NewSource(seed))}
		for i := 0; i < 150; i++ {
			m.step()
		}

		before := shapeSignature(t, h)
		if err := h.ForceCollect(); err != nil {
			t.Fatalf("seed %d: ForceCollect failed: %v", seed, err)
		}
		after := shapeSignature(t, h)

		if before != after {
			t.Errorf("seed %d: graph shape changed across collection\nbefore: %s\nafter:  %s",
				seed, before, after)
		}
	}
}

// Property: after a cycle, usage equals the byte size of the reachable set
func TestPropertyUsageMatchesReachableSet(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		h := New(Config{Capacity: 16384})
		m := &mutator{t: t, h: h, rng: rand.New(rand.NewSource(seed))}
		for i := 0; i < 150; i++ {
			m.step()
		}
		if err := h.ForceCollect(); err != nil {
			t.Fatalf("seed %d: ForceCollect failed: %v", seed, err)
		}

		reachable, err := h.Reachable()
		if err != nil {
			t.Fatalf("seed %d: Reachable failed: %v", seed, err)
		}
		want := 0
		for r := range reachable {
			size, err := h.SizeOfObject(r)
			if err != nil {
				t.Fatalf("seed %d: SizeOfObject failed: %v", seed, err)
			}
			want += size
		}
		if got := h.UsedBytes(); got != want {
			t.Errorf("seed %d: UsedBytes = %d, want %d (reachable set)", seed, got, want)
		}
	}
}

// Property: the same op sequence produces the same stats and final graph
func TestPropertyDeterministic(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		run := func() (Stats, string) {
			h := New(Config{Capacity: 16384})
			m := &mutator{t: t, h: h, rng: rand.New(rand.NewSource(seed))}
			for i := 0; i < 150; i++ {
				m.step()
			}
			if err := h.ForceCollect(); err != nil {
				t.Fatalf("seed %d: ForceCollect failed: %v", seed, err)
			}
			return h.Stats(), shapeSignature(t, h)
		}

		stats1, sig1 := run()
		stats2, sig2 := run()
		if stats1 != stats2 {
			t.Errorf("seed %d: non-deterministic stats: %+v vs %+v", seed, stats1, stats2)
		}
		if sig1 != sig2 {
			t.Errorf("seed %d: non-deterministic graph shape", seed)
		}
	}
}

// Property: counters only grow, and usage never exceeds the recorded max
// at the moment an allocation records it
func TestPropertyMonotonicStats(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		h := New(Config{Capacity: 16384})
		m := &mutator{t: t, h: h, rng: rand.New(rand.NewSource(seed))}

		prev := h.Stats()
		for i := 0; i < 200; i++ {
			m.step()
			s := h.Stats()

			if s.AllocatedBytes < prev.AllocatedBytes ||
				s.AllocatedObjects < prev.AllocatedObjects ||
				s.MaxUsedBytes < prev.MaxUsedBytes ||
				s.Cycles < prev.Cycles ||
				s.Reads < prev.Reads ||
				s.Writes < prev.Writes ||
				s.ReadBarriers < prev.ReadBarriers ||
				s.WriteBarriers < prev.WriteBarriers {
				t.Fatalf("seed %d: counter decreased: %+v -> %+v", seed, prev, s)
			}
			if s.ReadBarriers > s.Reads || s.WriteBarriers > s.Writes {
				t.Fatalf("seed %d: more barriers than accesses: %+v", seed, s)
			}
			prev = s
		}
	}
}
