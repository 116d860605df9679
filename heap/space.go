// ABOUTME: Semi-space arena with word-granular load and store
// ABOUTME: Backs bump allocation and bytewise object copies during collection

package heap

import "encoding/binary"

// space is one of the two fixed-capacity semi-space arenas. All object data
// lives inside its byte slice; words are stored little-endian at 8-byte
// aligned offsets. Spaces are created once at heap construction and never
// resized.
type space struct {
	id  SpaceID
	mem []byte
}

func newSpace(id SpaceID, capacity int) *space {
	return &space{
		id:  id,
		mem: make([]byte, capacity),
	}
}

// capacity returns the fixed byte capacity of the space
func (s *space) capacity() int {
	return len(s.mem)
}

// contains reports whether the offset names a byte inside the space.
// contains(capacity()) is false.
func (s *space) contains(offset int) bool {
	return offset >= 0 && offset < len(s.mem)
}

// word loads the 8-byte word at the given offset
func (s *space) word(offset int) Word {
	return Word(binary.LittleEndian.Uint64(s.mem[offset:]))
}

// setWord stores an 8-byte word at the given offset
func (s *space) setWord(offset int, w Word) {
	binary.LittleEndian.PutUint64(s.mem[offset:], uint64(w))
}

// copyFrom copies size bytes of object data from src at srcOff to this
// space at dstOff. The regions never overlap: copies always cross spaces.
func (s *space) copyFrom(src *space, srcOff, dstOff, size int) {
	copy(s.mem[dstOff:dstOff+size], src.mem[srcOff:srcOff+size])
}

// reset zeroes the whole arena, releasing its contents for the next cycle
func (s *space) reset() {
	clear(s.mem)
}

// alignDown rounds size down to the given alignment
func alignDown(size, align int) int {
	return size - size%align
}
