package diagnostic

import (
	"encoding/json"
	"fmt"
)

// Report is the JSON document printed by `check --format json`
type Report struct {
	Status      string       `json:"status"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	Failures    []Failure    `json:"failures"`
	Summary     Summary      `json:"summary"`
}

// Summary counts diagnostics by severity
type Summary struct {
	Files    int `json:"files"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
	Failures int `json:"failures"`
	Total    int `json:"total"`
}

// Summarize counts diagnostics and failures over files checked
func Summarize(files int, diags []Diagnostic, failures []Failure) Summary {
	s := Summary{Files: files, Failures: len(failures), Total: len(diags)}
	for _, d := range diags {
		switch d.Severity {
		case Error:
			s.Errors++
		case Warning:
			s.Warnings++
		default:
			s.Infos++
		}
	}
	return s
}

// NewReport builds a report; status is "error" when there are errors or
// failures, "warning" when only lower severities were found, and "success"
// otherwise
func NewReport(files int, diags []Diagnostic, failures []Failure) Report {
	if diags == nil {
		diags = []Diagnostic{}
	}
	if failures == nil {
		failures = []Failure{}
	}

	summary := Summarize(files, diags, failures)
	status := "success"
	switch {
	case summary.Errors > 0 || summary.Failures > 0:
		status = "error"
	case summary.Total > 0:
		status = "warning"
	}

	return Report{
		Status:      status,
		Diagnostics: diags,
		Failures:    failures,
		Summary:     summary,
	}
}

// FormatJSON renders a report as indented JSON
func FormatJSON(report Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	return string(data), nil
}
