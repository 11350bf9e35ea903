package compiler

import (
	"github.com/roach88/tablesync/internal/validate"
)

// ColumnSpec is one declared column.
type ColumnSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableSpec is a table definition as written in CUE, before it is
// checked and bound into a Definition.
type TableSpec struct {
	Name    string
	Columns []ColumnSpec
	Key     []string
	Recency string
	// DateFormats are Go time layouts tried in order.
	DateFormats []string
	// Ignore lists columns left out of field diffs.
	Ignore []string
	// Exclude maps a column to values whose rows are filtered out.
	Exclude map[string][]string
	// Baseline is the baseline file name, relative to the data directory.
	Baseline   string
	Validation *validate.Config
}

// ColumnNames returns the declared column names in order.
func (s *TableSpec) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// ColumnType returns the declared type of a column.
func (s *TableSpec) ColumnType(name string) (string, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c.Type, true
		}
	}
	return "", false
}
