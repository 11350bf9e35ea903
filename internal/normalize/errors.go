package normalize

import (
	"fmt"
	"strings"
)

// RowError describes a row that could not be typed. The row is dropped
// and the rest of the file is kept.
type RowError struct {
	Source string
	Row    int // 1-based data row, header excluded
	Column string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s row %d: key column %q value %q: %v", e.Source, e.Row, e.Column, e.Value, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// HeaderError is a structural problem with a file: a required column
// is missing from its header. The whole batch is unusable.
type HeaderError struct {
	Source  string
	Missing []string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("%s: header is missing required column(s) %s", e.Source, strings.Join(e.Missing, ", "))
}
