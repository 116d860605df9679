// ABOUTME: Fixed entry points a host program calls against one process-wide heap
// ABOUTME: Implements the fatal abort policy: print statistics, then terminate

// Package abi is the boundary a host-compiled program links against. It
// owns a single process-wide heap instance created on first use, serializes
// access to it, and turns the heap's fatal error conditions (exhaustion,
// malformed object kinds) into the abort policy the runtime expects: the
// statistics summary is printed to the error stream, then the process
// terminates. Hosts that need multiple independent heaps use the heap
// package directly instead.
package abi

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/prateek/semispace/dump"
	"github.com/prateek/semispace/heap"
	"github.com/prateek/semispace/objmodel"
)

// Output is the stream the diagnostic and abort paths write to. Defaults to
// the host's error stream.
var Output io.Writer = os.Stderr

var (
	mu       sync.Mutex
	global   *heap.Heap
	capacity = heap.DefaultCapacity
	exitFn   = os.Exit
)

// SetCapacity overrides the per-space byte capacity. It must be called
// before the first entry point touches the heap; afterwards it has no
// effect, since the spaces are created once and never resized.
func SetCapacity(n int) {
	mu.Lock()
	defer mu.Unlock()
	if global == nil && n > 0 {
		capacity = n
	}
}

// instance returns the process-wide heap, creating it on first use.
// Callers must hold mu.
func instance() *heap.Heap {
	if global == nil {
		global = heap.New(heap.Config{Capacity: capacity})
	}
	return global
}

// fatal prints the statistics summary and terminates the process. A
// half-completed cycle cannot be resumed across this boundary, so there is
// no unwinding back into the heap.
func fatal(err error) {
	fmt.Fprintf(Output, "fatal: %v\n", err)
	if global != nil {
		dump.WriteAllocStats(Output, global)
	}
	exitFn(2)
}

// Alloc allocates a new object of the given kind, running collection work
// as needed. It never returns a reference into from-space. Exhaustion and
// malformed kinds are fatal.
func Alloc(tag objmodel.Tag, fieldCount int) heap.Ref {
	mu.Lock()
	defer mu.Unlock()

	r, err := instance().Alloc(tag, fieldCount)
	if err != nil {
		fatal(err)
	}
	return r
}

// ReadField reads a field through the read barrier
func ReadField(obj heap.Ref, idx int) heap.Word {
	mu.Lock()
	defer mu.Unlock()

	w, err := instance().ReadField(obj, idx)
	if err != nil {
		fatal(err)
	}
	return w
}

// WriteField writes a field through the write barrier
func WriteField(obj heap.Ref, idx int, value heap.Word) {
	mu.Lock()
	defer mu.Unlock()

	if err := instance().WriteField(obj, idx, value); err != nil {
		fatal(err)
	}
}

// PushRoot registers a root slot; hosts call this on stack-frame entry
func PushRoot(slot *heap.Word) {
	mu.Lock()
	defer mu.Unlock()
	instance().PushRoot(slot)
}

// PopRoot unregisters the most recently pushed root slot; hosts call this
// on stack-frame exit. Unbalanced pops indicate a host bug and are fatal.
func PopRoot(slot *heap.Word) {
	mu.Lock()
	defer mu.Unlock()

	if err := instance().PopRoot(slot); err != nil {
		fatal(err)
	}
}

// ForceCollect runs an entire collection cycle to completion immediately,
// bypassing the incremental per-allocation pacing.
func ForceCollect() {
	mu.Lock()
	defer mu.Unlock()

	if err := instance().ForceCollect(); err != nil {
		fatal(err)
	}
}

// PrintState writes a human-readable description of both spaces, the
// active cycle's cursors, and the root set to the error stream.
func PrintState() {
	mu.Lock()
	defer mu.Unlock()
	dump.WriteState(Output, instance())
}

// PrintAllocStats writes the allocation and usage statistics summary to the
// error stream.
func PrintAllocStats() {
	mu.Lock()
	defer mu.Unlock()
	dump.WriteAllocStats(Output, instance())
}

// PrintRoots writes the root set to the error stream
func PrintRoots() {
	mu.Lock()
	defer mu.Unlock()
	dump.WriteRoots(Output, instance())
}

// reset discards the process-wide heap so tests can start fresh
func reset() {
	mu.Lock()
	defer mu.Unlock()
	global = nil
	capacity = heap.DefaultCapacity
}
