package dataprocessing

import (
	"errors"
	"fmt"

	"energypulse/internal/datasets"
	"energypulse/pkg/contracts/domain"
)

var (
	// ErrUnknownDatasetType is returned when the registry has no config for a dataset type
	ErrUnknownDatasetType = datasets.ErrUnknownDatasetType

	// ErrUnsupportedFormat is returned for formats the parser cannot read
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptySeries is returned when statistics are requested for no points
	ErrEmptySeries = errors.New("empty series")
)

// ParseError reports a file that could not be decoded
type ParseError struct {
	Format domain.Format
	Cause  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Format, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// RowError reports a row rejected in strict mode. Row is 1-based and counts
// data rows only (the header is not row 1).
type RowError struct {
	Row    int
	Field  string
	Value  interface{}
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: field %q: %s (value %v)", e.Row, e.Field, e.Reason, e.Value)
}
