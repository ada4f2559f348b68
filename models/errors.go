package models

import (
	"errors"
	"fmt"
	"strings"
)

// UnsupportedFormatError is returned for uploads that are neither CSV nor XLSX.
type UnsupportedFormatError struct {
	Name string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return fmt.Sprintf("unsupported file format for %q: expected .csv or .xlsx", e.Name)
	}
	return fmt.Sprintf("unsupported file format %q: expected .csv or .xlsx", e.Ext)
}

// ParseError wraps a failure to read an upload of a supported format.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.Format, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// MissingColumnsWarning lists required columns absent from an upload. It is
// informational: the pipeline continues with those inputs treated as unset.
type MissingColumnsWarning struct {
	Columns []string
}

func (w *MissingColumnsWarning) Error() string {
	return "missing required columns: " + strings.Join(w.Columns, ", ")
}

// InvalidInputError reports a malformed input field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
}

// ExternalServiceError wraps failures of the text-generation provider. It is
// always recoverable: callers drop the insight and keep the metrics.
type ExternalServiceError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

var (
	// ErrInsightsUnavailable means no provider credential is configured.
	ErrInsightsUnavailable = errors.New("insights unavailable: no API credential configured")
	// ErrNothingToPlot is returned when every metric value is 0.
	ErrNothingToPlot = errors.New("no meaningful data to plot")
	// ErrTooManySlices is returned for pie charts with too many metrics.
	ErrTooManySlices = errors.New("too many metrics for a pie chart, use a bar or line chart")
	// ErrNegativeSlice is returned for pie charts containing negative values.
	ErrNegativeSlice = errors.New("pie charts cannot show negative values, use a bar or line chart")
)
