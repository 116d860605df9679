// ABOUTME: Tests for the incremental copying collector
// ABOUTME: Validates reachability preservation, forwarding, root rewrites and termination

package heap

import (
	"testing"

	"github.com/prateek/semispace/objmodel"
)

// buildChain allocates A -> B -> C with C a zero and returns the refs
func buildChain(t *testing.T, h *Heap) (a, b, c Ref) {
	t.Helper()

	c, err := h.Alloc(objmodel.Zero, 0)
	if err != nil {
		t.Fatalf("Alloc C failed: %v", err)
	}
	b, err = h.Alloc(objmodel.Ref, 1)
	if err != nil {
		t.Fatalf("Alloc B failed: %v", err)
	}
	if err := h.WriteField(b, 0, c.Word()); err != nil {
		t.Fatalf("WriteField B failed: %v", err)
	}
	a, err = h.Alloc(objmodel.Ref, 1)
	if err != nil {
		t.Fatalf("Alloc A failed: %v", err)
	}
	if err := h.WriteField(a, 0, b.Word()); err != nil {
		t.Fatalf("WriteField A failed: %v", err)
	}
	return a, b, c
}

func TestCollectionPreservesReachableChain(t *testing.T) {
	h := New(Config{Capacity: 1024})
	a, _, _ := buildChain(t, h)

	// D is unreachable garbage
	if _, err := h.Alloc(objmodel.Zero, 0); err != nil {
		t.Fatalf("Alloc D failed: %v", err)
	}

	slot := new(Word)
	*slot = a.Word()
	h.PushRoot(slot)

	liveBefore := 16 + 16 + 8 // A, B, C
	if err := h.ForceCollect(); err != nil {
		t.Fatalf("ForceCollect failed: %v", err)
	}

	s := h.Stats()
	if s.Cycles != 1 {
		t.Errorf("Cycles = %d, want 1", s.Cycles)
	}
	if s.AllocatedObjects != 4 {
		t.Errorf("AllocatedObjects = %d, want 4 (D still counts)", s.AllocatedObjects)
	}
	if h.UsedBytes() != liveBefore {
		t.Errorf("UsedBytes = %d, want %d (D reclaimed)", h.UsedBytes(), liveBefore)
	}

	// The root was rewritten to A's new location
	newA := Ref(*slot)
	if newA == a {
		t.Error("root still holds A's old address")
	}
	if class, _ := h.Classify(*slot); class != SpaceTo {
		t.Errorf("root classifies as %v, want to-space", class)
	}

	// The chain survived with mutually consistent rewritten references
	tag, err := h.Kind(newA)
	if err != nil || tag != objmodel.Ref {
		t.Fatalf("Kind(A') = %v, %v", tag, err)
	}
	bw, err := h.PeekField(newA, 0)
	if err != nil {
		t.Fatalf("PeekField(A', 0) failed: %v", err)
	}
	if class, _ := h.Classify(bw); class != SpaceTo {
		t.Errorf("A'.0 classifies as %v, want to-space", class)
	}
	cw, err := h.PeekField(Ref(bw), 0)
	if err != nil {
		t.Fatalf("PeekField(B', 0) failed: %v", err)
	}
	tag, err = h.Kind(Ref(cw))
	if err != nil || tag != objmodel.Zero {
		t.Fatalf("Kind(C') = %v, %v", tag, err)
	}

	// Exactly three objects remain laid out in to-space
	count := 0
	h.ForEachObject(SpaceTo, func(Ref) bool {
		count++
		return true
	})
	if count != 3 {
		t.Errorf("to-space holds %d objects, want 3", count)
	}
}

func TestForwardingIdempotence(t *testing.T) {
	h := New(Config{Capacity: 1024})

	shared, _ := h.Alloc(objmodel.Zero, 0)
	a, _ := h.Alloc(objmodel.Ref, 1)
	h.WriteField(a, 0, shared.Word())
	b, _ := h.Alloc(objmodel.Ref, 1)
	h.WriteField(b, 0, shared.Word())

	slotA, slotB := new(Word), new(Word)
	*slotA, *slotB = a.Word(), b.Word()
	h.PushRoot(slotA)
	h.PushRoot(slotB)

	if err := h.ForceCollect(); err != nil {
		t.Fatalf("ForceCollect failed: %v", err)
	}

	sa, err := h.PeekField(Ref(*slotA), 0)
	if err != nil {
		t.Fatalf("PeekField failed: %v", err)
	}
	sb, err := h.PeekField(Ref(*slotB), 0)
	if err != nil {
		t.Fatalf("PeekField failed: %v", err)
	}
	if sa != sb {
		t.Errorf("shared object forwarded to two addresses: %s vs %s", Ref(sa), Ref(sb))
	}

	// One shared copy, not two: zero(8) + two refs(16+16)
	if h.UsedBytes() != 40 {
		t.Errorf("UsedBytes = %d, want 40", h.UsedBytes())
	}
}

func TestCyclicGraphTerminates(t *testing.T) {
	h := New(Config{Capacity: 1024})

	a, _ := h.Alloc(objmodel.Ref, 1)
	b, _ := h.Alloc(objmodel.Ref, 1)
	h.WriteField(a, 0, b.Word())
	h.WriteField(b, 0, a.Word())

	slot := new(Word)
	*slot = a.Word()
	h.PushRoot(slot)

	if err := h.ForceCollect(); err != nil {
		t.Fatalf("ForceCollect on cyclic graph failed: %v", err)
	}

	newA := Ref(*slot)
	bw, _ := h.PeekField(newA, 0)
	aw, _ := h.PeekField(Ref(bw), 0)
	if Ref(aw) != newA {
		t.Errorf("cycle broken: A' -> B' -> %s, want %s", Ref(aw), newA)
	}
	if h.UsedBytes() != 32 {
		t.Errorf("UsedBytes = %d, want 32", h.UsedBytes())
	}
}

func TestRootRewriteCompleteness(t *testing.T) {
	h := New(Config{Capacity: 1024})

	var slots []*Word
	for i := 0; i < 5; i++ {
		r, _ := h.Alloc(objmodel.Succ, 1)
		slot := new(Word)
		*slot = r.Word()
		h.PushRoot(slot)
		slots = append(slots, slot)
	}

	if err := h.ForceCollect(); err != nil {
		t.Fatalf("ForceCollect failed: %v", err)
	}

	for i, slot := range slots {
		if class, _ := h.Classify(*slot); class != SpaceTo {
			t.Errorf("root %d classifies as %v after cycle, want to-space", i, class)
		}
	}
}

func TestUnmanagedRootsLeftUntouchedAndFlagged(t *testing.T) {
	h := New(Config{Capacity: 1024})

	r, _ := h.Alloc(objmodel.Zero, 0)
	managed := new(Word)
	*managed = r.Word()
	h.PushRoot(managed)

	foreign := new(Word)
	*foreign = 0xdeadbeef // host data, not a heap reference
	h.PushRoot(foreign)

	if err := h.ForceCollect(); err != nil {
		t.Fatalf("ForceCollect failed: %v", err)
	}

	if *foreign != 0xdeadbeef {
		t.Errorf("unmanaged root rewritten to %#x", uint64(*foreign))
	}
	if h.Stats().FlaggedRoots == 0 {
		t.Error("unmanaged root was not flagged")
	}
}

func TestIncrementalCycleSpansAllocations(t *testing.T) {
	h := New(Config{Capacity: 128})

	// Root a chain so the cycle has several objects to scan
	a, _, _ := buildChain(t, h)
	slot := new(Word)
	*slot = a.Word()
	h.PushRoot(slot)

	// Fill the rest of the space with garbage
	for h.FreeBytes() >= 8 {
		if _, err := h.Alloc(objmodel.Zero, 0); err != nil {
			t.Fatalf("fill failed: %v", err)
		}
	}

	// The next allocation starts a cycle but must not finish it: the
	// chain takes several increments to scan.
	if _, err := h.Alloc(objmodel.Zero, 0); err != nil {
		t.Fatalf("triggering allocation failed: %v", err)
	}
	if !h.Collecting() {
		t.Fatal("cycle finished within a single increment")
	}
	if _, _, _, ok := h.Cursors(); !ok {
		t.Fatal("Cursors reported no active cycle")
	}

	// Further allocations drive the cycle to completion
	for i := 0; h.Collecting(); i++ {
		if i > 100 {
			t.Fatal("cycle did not terminate")
		}
		if _, err := h.Alloc(objmodel.Zero, 0); err != nil {
			t.Fatalf("in-cycle allocation failed: %v", err)
		}
	}
	if h.Stats().Cycles != 1 {
		t.Errorf("Cycles = %d, want 1", h.Stats().Cycles)
	}
}

func TestForceCollectOnEmptyHeap(t *testing.T) {
	h := New(Config{Capacity: 256})
	if err := h.ForceCollect(); err != nil {
		t.Fatalf("ForceCollect on empty heap failed: %v", err)
	}
	if h.Collecting() {
		t.Error("heap still collecting after ForceCollect")
	}
	if h.Stats().Cycles != 1 {
		t.Errorf("Cycles = %d, want 1", h.Stats().Cycles)
	}
}

func TestOldFromSpaceIsFullyFreeAfterCycle(t *testing.T) {
	h := New(Config{Capacity: 256})

	a, _ := h.Alloc(objmodel.Succ, 1)
	slot := new(Word)
	*slot = a.Word()
	h.PushRoot(slot)

	if err := h.ForceCollect(); err != nil {
		t.Fatalf("ForceCollect failed: %v", err)
	}

	// The old reference now points into the vacated, zeroed space and no
	// longer resolves to an object.
	if _, err := h.Kind(a); err == nil {
		t.Error("stale reference into the freed space still resolves")
	}
}
