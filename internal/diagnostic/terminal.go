package diagnostic

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// TerminalOptions configures terminal rendering
type TerminalOptions struct {
	NoColor bool
}

type palette struct {
	severity *color.Color
	code     *color.Color
	path     *color.Color
	gutter   *color.Color
	marker   *color.Color
	hint     *color.Color
}

func newPalette(severity Severity, noColor bool) palette {
	p := palette{
		code:   color.New(color.Bold),
		path:   color.New(color.FgCyan),
		gutter: color.New(color.FgBlue),
		hint:   color.New(color.FgGreen),
	}

	switch severity {
	case Error:
		p.severity = color.New(color.FgRed, color.Bold)
		p.marker = color.New(color.FgRed, color.Bold)
	case Warning:
		p.severity = color.New(color.FgYellow, color.Bold)
		p.marker = color.New(color.FgYellow, color.Bold)
	default:
		p.severity = color.New(color.FgCyan, color.Bold)
		p.marker = color.New(color.FgCyan, color.Bold)
	}

	if noColor {
		for _, c := range []*color.Color{p.severity, p.code, p.path, p.gutter, p.marker, p.hint} {
			c.DisableColor()
		}
	}
	return p
}

// FormatForTerminal renders a diagnostic with a source excerpt:
//
//	warning[S003]: Uknown column "nickname"
//	  --> app/models/user.rb:4:5
//	   |
//	 4 |     t.string :nickname
//	   |     ^^^^^^^^^^^^^^^^^^
func FormatForTerminal(d Diagnostic, opts TerminalOptions) string {
	p := newPalette(d.Severity, opts.NoColor)
	var b strings.Builder

	p.severity.Fprint(&b, d.Severity.String())
	p.code.Fprintf(&b, "[%s]: %s\n", d.Code, d.Message)
	b.WriteString("  --> ")
	p.path.Fprintf(&b, "%s:%d:%d\n", d.Path, d.Location.Line, d.Location.Column)

	if d.SourceLine != "" {
		lineNum := fmt.Sprintf("%d", d.Location.Line)
		pad := strings.Repeat(" ", len(lineNum))

		p.gutter.Fprintf(&b, " %s |\n", pad)
		p.gutter.Fprintf(&b, " %s | ", lineNum)
		b.WriteString(d.SourceLine)
		b.WriteString("\n")
		p.gutter.Fprintf(&b, " %s | ", pad)
		b.WriteString(strings.Repeat(" ", max(d.Location.Column-1, 0)))
		p.marker.Fprintln(&b, strings.Repeat("^", markerWidth(d)))
	}

	if d.Fix != nil {
		p.hint.Fprintln(&b, "  = fix available: run with --fix to insert the_schema_is block")
	}

	return b.String()
}

// markerWidth covers the anchor on its first line
func markerWidth(d Diagnostic) int {
	lineLen := len(d.SourceLine)
	start := d.Location.Column - 1
	end := lineLen
	if d.Location.EndLine == d.Location.Line {
		end = d.Location.EndColumn - 1
	}
	if end > lineLen {
		end = lineLen
	}
	if end <= start {
		return 1
	}
	return end - start
}

// FormatAll renders each diagnostic followed by a blank line
func FormatAll(diags []Diagnostic, opts TerminalOptions) string {
	var b strings.Builder
	for _, d := range diags {
		b.WriteString(FormatForTerminal(d, opts))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatFailure renders a file that could not be analysed
func FormatFailure(f Failure, opts TerminalOptions) string {
	c := color.New(color.FgRed, color.Bold)
	if opts.NoColor {
		c.DisableColor()
	}
	return c.Sprint("failure") + fmt.Sprintf(": %s: %s\n", f.Path, f.Message)
}

// FormatSummary renders the closing count line
func FormatSummary(s Summary, opts TerminalOptions) string {
	ok := color.New(color.FgGreen, color.Bold)
	bad := color.New(color.FgYellow, color.Bold)
	if s.Errors > 0 || s.Failures > 0 {
		bad = color.New(color.FgRed, color.Bold)
	}
	if opts.NoColor {
		ok.DisableColor()
		bad.DisableColor()
	}

	if s.Total == 0 && s.Failures == 0 {
		return ok.Sprintf("✓ %s checked, no schema drift found", plural(s.Files, "file")) + "\n"
	}

	parts := []string{
		plural(s.Errors, "error"),
		plural(s.Warnings, "warning"),
	}
	if s.Infos > 0 {
		parts = append(parts, plural(s.Infos, "info"))
	}
	if s.Failures > 0 {
		parts = append(parts, plural(s.Failures, "failure"))
	}

	return bad.Sprintf("✗ %s in %s", strings.Join(parts, ", "), plural(s.Files, "file")) + "\n"
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
