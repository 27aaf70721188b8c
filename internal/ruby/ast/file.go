package ast

import "sort"

// File is a parsed source file. It owns the source bytes every node's
// Start/End offsets point into.
type File struct {
	Path   string
	Source []byte
	Root   *Node

	lineStarts []int
}

// NewFile creates a File for the given source. Root is set by the parser.
func NewFile(path string, source []byte) *File {
	starts := []int{0}
	for i, b := range source {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}

	return &File{
		Path:       path,
		Source:     source,
		lineStarts: starts,
	}
}

// Text returns the verbatim source slice covered by the node
func (f *File) Text(n *Node) string {
	if n == nil || n.Start < 0 || n.End > len(f.Source) || n.Start > n.End {
		return ""
	}
	return string(f.Source[n.Start:n.End])
}

// Position converts a byte offset into a 1-indexed line and column
func (f *File) Position(offset int) SourceLocation {
	if offset < 0 {
		offset = 0
	}
	if offset > len(f.Source) {
		offset = len(f.Source)
	}

	line := sort.Search(len(f.lineStarts), func(i int) bool {
		return f.lineStarts[i] > offset
	}) - 1

	return SourceLocation{
		Line:   line + 1,
		Column: offset - f.lineStarts[line] + 1,
	}
}

// EndLocation returns the position just past the node's last character
func (f *File) EndLocation(n *Node) SourceLocation {
	return f.Position(n.End)
}

// Line returns the text of a 1-indexed line without its trailing newline
func (f *File) Line(line int) string {
	if line < 1 || line > len(f.lineStarts) {
		return ""
	}
	start := f.lineStarts[line-1]
	end := len(f.Source)
	if line < len(f.lineStarts) {
		end = f.lineStarts[line] - 1
	}
	if end > start && f.Source[end-1] == '\r' {
		end--
	}
	return string(f.Source[start:end])
}
