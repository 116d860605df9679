// ABOUTME: Registry for heap snapshot parsers
// ABOUTME: Manages parser plugins and selects the right one for a snapshot

package dump

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/prateek/semispace/heap"
)

var (
	// ErrNoParser is returned when no parser can handle the snapshot format
	ErrNoParser = errors.New("no parser found for snapshot format")
)

// Image is a heap rebuilt from a snapshot for post-mortem inspection. Roots
// holds the recreated root slots in their original push order, and Stats
// carries the counters recorded when the snapshot was taken (the rebuilt
// heap's own counters reflect the rebuild, not the original run).
type Image struct {
	Heap  *heap.Heap
	Roots []*heap.Word
	Stats heap.Stats
}

// Parser reads one snapshot format into an Image
type Parser interface {
	// CanParse checks whether the input looks like this parser's format
	CanParse(r io.Reader) bool

	// Parse reads the snapshot and rebuilds the heap image
	Parse(r io.Reader) (*Image, error)
}

// parserRegistry holds registered parsers
type parserRegistry struct {
	mu      sync.RWMutex
	parsers []Parser
}

// Global registry instance
var registry = &parserRegistry{
	parsers: []Parser{&JSONSnapshot{}},
}

// Register adds a parser to the registry
func Register(p Parser) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.parsers = append(registry.parsers, p)
}

// Open reads a heap snapshot and rebuilds it as an Image, trying each
// registered parser to find one that can handle the format.
func Open(r io.Reader) (*Image, error) {
	// Buffer the sniffed prefix since multiple parsers may inspect it
	detectBuf := make([]byte, 4096)
	n, err := io.ReadFull(r, detectBuf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}

	registry.mu.RLock()
	defer registry.mu.RUnlock()

	for _, parser := range registry.parsers {
		checkReader := bytes.NewReader(detectBuf[:n])
		if parser.CanParse(checkReader) {
			parseReader := io.MultiReader(bytes.NewReader(detectBuf[:n]), r)
			return parser.Parse(parseReader)
		}
	}

	return nil, ErrNoParser
}
