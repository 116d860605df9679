// ABOUTME: Shared formatting helpers for diagnostic dump output
// ABOUTME: Renders objects, fields and space classes the way the runtime prints them

// Package dump produces human-readable diagnostics for a semi-space heap
// and JSON snapshots of its state. The heap package exposes the underlying
// state (live objects, cursors, root values, counters); everything textual
// lives here.
package dump

import (
	"fmt"
	"io"
	"strings"

	"github.com/prateek/semispace/heap"
	"github.com/prateek/semispace/objmodel"
)

// printer accumulates the first write error so dump producers can format
// line by line without checking every Fprintf.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// formatAddr renders a classified heap address, e.g. "to+16"
func formatAddr(class heap.SpaceClass, offset int) string {
	return fmt.Sprintf("%s%+d", class, offset)
}

// formatWord renders the content of a field or root slot. Managed
// references render as the referenced object; unmanaged words render as an
// opaque value. When showFields is false the object's fields are elided.
func formatWord(h *heap.Heap, w heap.Word, showFields bool) string {
	class, offset := h.Classify(w)
	if class == heap.SpaceUnmanaged {
		return fmt.Sprintf("#%#x (unmanaged)", uint64(w))
	}
	return formatObj(h, heap.Ref(w), class, offset, showFields)
}

// formatObj renders one managed object header and, optionally, its fields
func formatObj(h *heap.Heap, r heap.Ref, class heap.SpaceClass, offset int, showFields bool) string {
	if fwd, ok := h.Forwarded(r); ok {
		_, fwdOffset := h.Classify(fwd.Word())
		tag, _ := h.Kind(r)
		return fmt.Sprintf("<%s @ %s, fwd -> %s>",
			tag, formatAddr(class, offset), formatAddr(heap.SpaceTo, fwdOffset))
	}

	tag, err := h.Kind(r)
	if err != nil {
		return fmt.Sprintf("<corrupt @ %s: %v>", formatAddr(class, offset), err)
	}
	fieldCount, _ := h.FieldCount(r)
	size, _ := h.SizeOfObject(r)

	var b strings.Builder
	fmt.Fprintf(&b, "<%s @ %s (%d B)> {", tag, formatAddr(class, offset), size)

	switch {
	case fieldCount == 0:
		b.WriteString("}")
	case !showFields:
		b.WriteString("...}")
	default:
		for idx := 0; idx < fieldCount; idx++ {
			if idx > 0 {
				b.WriteString(", ")
			} else {
				b.WriteString(" ")
			}

			w, err := h.PeekField(r, idx)
			if err != nil {
				fmt.Fprintf(&b, "<error: %v>", err)
				continue
			}

			switch objmodel.FieldKindOf(tag, idx) {
			case objmodel.FieldRaw:
				fmt.Fprintf(&b, "#%#x (raw)", uint64(w))
			case objmodel.FieldObj:
				b.WriteString(formatWord(h, w, false))
			default:
				fmt.Fprintf(&b, "#%#x (**UNEXPECTED FIELD**)", uint64(w))
			}
		}
		b.WriteString(" }")
	}

	return b.String()
}
