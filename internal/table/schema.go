package table

import (
	"fmt"
	"strings"
)

// ColumnType is the declared type of a column.
type ColumnType string

const (
	TypeString  ColumnType = "string"
	TypeInt     ColumnType = "int"
	TypeDecimal ColumnType = "decimal"
	TypeDate    ColumnType = "date"
)

// ParseColumnType maps a type name to a ColumnType.
// "float" and "number" are accepted as aliases of decimal.
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "text":
		return TypeString, nil
	case "int", "integer":
		return TypeInt, nil
	case "decimal", "float", "number":
		return TypeDecimal, nil
	case "date":
		return TypeDate, nil
	default:
		return "", fmt.Errorf("unknown column type %q", s)
	}
}

// Kind returns the value kind that non-null cells of this type carry.
func (t ColumnType) Kind() Kind {
	switch t {
	case TypeString:
		return KindString
	case TypeInt:
		return KindInt
	case TypeDecimal:
		return KindDecimal
	case TypeDate:
		return KindDate
	default:
		return KindNull
	}
}

// Column is a named, typed column.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is an ordered, immutable list of columns.
type Schema struct {
	cols  []Column
	index map[string]int
}

// NewSchema validates and builds a schema. Column names must be
// non-empty and unique; types must be known.
func NewSchema(cols ...Column) (*Schema, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("schema has no columns")
	}
	s := &Schema{
		cols:  make([]Column, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if c.Type.Kind() == KindNull {
			return nil, fmt.Errorf("column %q has unknown type %q", name, c.Type)
		}
		if _, dup := s.index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		s.cols[i] = Column{Name: name, Type: c.Type}
		s.index[name] = i
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSchema(cols ...Column) *Schema {
	s, err := NewSchema(cols...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.cols) }

// Column returns the i-th column.
func (s *Schema) Column(i int) Column { return s.cols[i] }

// Columns returns a copy of the column list.
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.cols))
	copy(out, s.cols)
	return out
}

// Names returns the column names in order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.cols))
	for i, c := range s.cols {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of the named column.
func (s *Schema) Index(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// MustIndex returns the position of the named column or panics.
func (s *Schema) MustIndex(name string) int {
	i, ok := s.index[name]
	if !ok {
		panic(fmt.Sprintf("schema has no column %q", name))
	}
	return i
}

// Equal reports whether both schemas have the same columns in the same order.
func (s *Schema) Equal(o *Schema) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil || len(s.cols) != len(o.cols) {
		return false
	}
	for i := range s.cols {
		if s.cols[i] != o.cols[i] {
			return false
		}
	}
	return true
}
