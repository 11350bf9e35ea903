package table

import (
	"fmt"
	"strings"
)

// Key is the canonical encoding of a composite key tuple. It is
// comparable, so it can index maps directly, and its byte order gives a
// deterministic total ordering of keys.
//
// A null component is a valid, distinct value: the key ("A", null) is
// different from ("A", "").
type Key string

// Values decodes the key back into its component values.
func (k Key) Values() ([]Value, error) {
	data := []byte(k)
	var out []Value
	for len(data) > 0 {
		v, n, err := decodeCanonical(data)
		if err != nil {
			return nil, fmt.Errorf("decode key: %w", err)
		}
		out = append(out, v)
		data = data[n:]
	}
	return out, nil
}

// String renders the key as "a|b|c" with nulls shown as <null>.
func (k Key) String() string {
	vals, err := k.Values()
	if err != nil {
		return fmt.Sprintf("<bad key %q>", string(k))
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = Display(v)
	}
	return strings.Join(parts, "|")
}

// KeyOf builds a Key from component values. Mostly useful in tests.
func KeyOf(vals ...Value) Key {
	var buf []byte
	for _, v := range vals {
		buf = AppendCanonical(buf, v)
	}
	return Key(buf)
}

// KeySpec is the composite-key definition bound to a schema: an ordered
// list of identity columns.
type KeySpec struct {
	columns []string
	idx     []int
}

// NewKeySpec resolves the named columns against the schema. The list
// must be non-empty and free of repeats.
func NewKeySpec(s *Schema, columns ...string) (*KeySpec, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("key spec has no columns")
	}
	ks := &KeySpec{
		columns: make([]string, len(columns)),
		idx:     make([]int, len(columns)),
	}
	seen := make(map[string]bool, len(columns))
	for i, name := range columns {
		if seen[name] {
			return nil, fmt.Errorf("key column %q listed twice", name)
		}
		seen[name] = true
		pos, ok := s.Index(name)
		if !ok {
			return nil, fmt.Errorf("key column %q not in schema", name)
		}
		ks.columns[i] = name
		ks.idx[i] = pos
	}
	return ks, nil
}

// MustKeySpec is like NewKeySpec but panics on error.
func MustKeySpec(s *Schema, columns ...string) *KeySpec {
	ks, err := NewKeySpec(s, columns...)
	if err != nil {
		panic(err)
	}
	return ks
}

// Columns returns the key column names in order.
func (ks *KeySpec) Columns() []string {
	out := make([]string, len(ks.columns))
	copy(out, ks.columns)
	return out
}

// Positions returns the schema positions of the key columns.
func (ks *KeySpec) Positions() []int {
	out := make([]int, len(ks.idx))
	copy(out, ks.idx)
	return out
}

// Contains reports whether the schema position belongs to the key.
func (ks *KeySpec) Contains(pos int) bool {
	for _, p := range ks.idx {
		if p == pos {
			return true
		}
	}
	return false
}

// Key computes the composite key of a row.
func (ks *KeySpec) Key(r Row) Key {
	buf := make([]byte, 0, 16*len(ks.idx))
	for _, p := range ks.idx {
		buf = AppendCanonical(buf, r[p])
	}
	return Key(buf)
}

// Values returns the key components of a row.
func (ks *KeySpec) Values(r Row) []Value {
	out := make([]Value, len(ks.idx))
	for i, p := range ks.idx {
		out[i] = r[p]
	}
	return out
}
