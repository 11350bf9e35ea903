package table

import (
	"fmt"
	"iter"
)

// Row is one record, aligned with its table's schema.
type Row []Value

// Clone returns a shallow copy. Values are immutable, so this is enough
// to give the caller an independent row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// DuplicateKeyError reports two rows sharing a composite key.
type DuplicateKeyError struct {
	Key    Key
	First  int
	Second int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate composite key %s at rows %d and %d", e.Key, e.First, e.Second)
}

// Table is an immutable set of rows with unique composite keys.
//
// Tables are values: operations that change content build a new Table.
// Rows handed out by Row, Lookup and All must not be modified.
type Table struct {
	schema *Schema
	key    *KeySpec
	rows   []Row
	index  map[Key]int
}

// New builds a table, taking ownership of rows. Every row must match the
// schema width and carry only values of the declared column kinds (or
// Null). Duplicate composite keys are rejected with *DuplicateKeyError.
func New(schema *Schema, key *KeySpec, rows []Row) (*Table, error) {
	if schema == nil || key == nil {
		return nil, fmt.Errorf("table: schema and key spec are required")
	}
	index := make(map[Key]int, len(rows))
	for i, r := range rows {
		if len(r) != schema.Len() {
			return nil, fmt.Errorf("table: row %d has %d values, schema has %d columns", i, len(r), schema.Len())
		}
		for c, v := range r {
			if v == nil {
				r[c] = Null{}
				continue
			}
			if v.Kind() != KindNull && v.Kind() != schema.cols[c].Type.Kind() {
				return nil, fmt.Errorf("table: row %d column %q holds %s, want %s",
					i, schema.cols[c].Name, v.Kind(), schema.cols[c].Type)
			}
		}
		k := key.Key(r)
		if first, dup := index[k]; dup {
			return nil, &DuplicateKeyError{Key: k, First: first, Second: i}
		}
		index[k] = i
	}
	return &Table{schema: schema, key: key, rows: rows, index: index}, nil
}

// Empty returns a table with no rows.
func Empty(schema *Schema, key *KeySpec) *Table {
	return &Table{schema: schema, key: key, index: map[Key]int{}}
}

// Schema returns the table schema.
func (t *Table) Schema() *Schema { return t.schema }

// KeySpec returns the composite-key definition.
func (t *Table) KeySpec() *KeySpec { return t.key }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the i-th row.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Lookup finds the row with the given key.
func (t *Table) Lookup(k Key) (Row, bool) {
	i, ok := t.index[k]
	if !ok {
		return nil, false
	}
	return t.rows[i], true
}

// Has reports whether a row with the given key exists.
func (t *Table) Has(k Key) bool {
	_, ok := t.index[k]
	return ok
}

// All iterates rows in table order.
func (t *Table) All() iter.Seq2[int, Row] {
	return func(yield func(int, Row) bool) {
		for i, r := range t.rows {
			if !yield(i, r) {
				return
			}
		}
	}
}

// Get returns the named column of row r, or Null if the column is unknown.
func (t *Table) Get(r Row, column string) Value {
	i, ok := t.schema.Index(column)
	if !ok {
		return Null{}
	}
	return r[i]
}
