// Package fix applies diagnostic text edits to source files.
package fix

import (
	"fmt"
	"sort"

	"github.com/schemalint/schemalint/internal/diagnostic"
)

// Apply inserts every edit into src and returns the new content. Offsets
// refer to the original src. Edits sharing an offset are inserted in input
// order.
func Apply(src []byte, edits []diagnostic.TextEdit) ([]byte, error) {
	if len(edits) == 0 {
		return src, nil
	}

	ordered := make([]diagnostic.TextEdit, len(edits))
	copy(ordered, edits)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Offset < ordered[j].Offset
	})

	size := len(src)
	for _, edit := range ordered {
		if edit.Offset < 0 || edit.Offset > len(src) {
			return nil, fmt.Errorf("edit offset %d out of range [0, %d]", edit.Offset, len(src))
		}
		size += len(edit.Text)
	}

	out := make([]byte, 0, size)
	prev := 0
	for _, edit := range ordered {
		out = append(out, src[prev:edit.Offset]...)
		out = append(out, edit.Text...)
		prev = edit.Offset
	}
	out = append(out, src[prev:]...)

	return out, nil
}
