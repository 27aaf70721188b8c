package fix

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
)

// DiffResult represents the difference between original and fixed code
type DiffResult struct {
	Original string
	Fixed    string
	Changed  bool
}

// Diff compares original and fixed code
func Diff(original, fixed string) *DiffResult {
	return &DiffResult{
		Original: original,
		Fixed:    fixed,
		Changed:  original != fixed,
	}
}

// UnifiedDiff returns a unified diff with three lines of context
func (d *DiffResult) UnifiedDiff(filename string) string {
	if !d.Changed {
		return ""
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(d.Original),
		B:        difflib.SplitLines(d.Fixed),
		FromFile: "a/" + filename,
		ToFile:   "b/" + filename,
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return text
}

// String returns the unified diff with color highlighting
func (d *DiffResult) String(filename string) string {
	if !d.Changed {
		return color.GreenString("No changes needed")
	}

	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	bold := color.New(color.Bold)

	var buf bytes.Buffer
	for _, line := range strings.SplitAfter(d.UnifiedDiff(filename), "\n") {
		switch {
		case line == "":
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			bold.Fprint(&buf, line)
		case strings.HasPrefix(line, "@@"):
			cyan.Fprint(&buf, line)
		case strings.HasPrefix(line, "-"):
			red.Fprint(&buf, line)
		case strings.HasPrefix(line, "+"):
			green.Fprint(&buf, line)
		default:
			buf.WriteString(line)
		}
	}
	return buf.String()
}

// Stats returns statistics about the changes
func (d *DiffResult) Stats() string {
	if !d.Changed {
		return "No changes"
	}

	added, removed := 0, 0
	for _, line := range strings.Split(d.UnifiedDiff("x"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}

	return fmt.Sprintf("%d lines added, %d removed", added, removed)
}
