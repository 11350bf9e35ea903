package engine

import (
	"context"
	"strings"
	"unicode"

	"github.com/roach88/tablesync/internal/table"
)

// Class is the outcome of one incoming row.
type Class int

const (
	ClassNew Class = iota
	ClassUpdated
	ClassSkippedOutdated
	ClassUnchanged
)

var classNames = [...]string{
	ClassNew:             "new",
	ClassUpdated:         "updated",
	ClassSkippedOutdated: "skipped_outdated",
	ClassUnchanged:       "unchanged",
}

func (c Class) String() string {
	if c < 0 || int(c) >= len(classNames) {
		return "unknown"
	}
	return classNames[c]
}

// MarshalText renders the class name in JSON and YAML.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Merged reports whether rows of this class replace or extend the baseline.
func (c Class) Merged() bool {
	return c == ClassNew || c == ClassUpdated
}

// FieldChange is one differing column of an updated row.
type FieldChange struct {
	Field string
	Old   table.Value
	New   table.Value
}

// ChangeRecord describes what happened to one deduplicated incoming row.
type ChangeRecord struct {
	Key   table.Key
	Class Class
	// Changes lists content differences against the baseline (Updated only).
	Changes []FieldChange
	// Whitespace lists string fields that differ only in whitespace. They
	// are recorded for audit and do not count as content changes.
	Whitespace  []FieldChange
	Source      string
	Line        int
	File        int
	Seq         int64
	Recency     table.Value
	BaseRecency table.Value
	// Row is the incoming row for New and Updated records.
	Row table.Row
}

// Differ compares incoming rows against their baseline counterparts over
// a fixed set of columns.
type Differ struct {
	schema  *table.Schema
	recency int
	cols    []int
}

// NewDiffer compares every column except the key columns, the recency
// column and any ignored columns.
func NewDiffer(s *table.Schema, key *table.KeySpec, recency int, ignore []int) *Differ {
	skip := map[int]bool{recency: true}
	for _, p := range key.Positions() {
		skip[p] = true
	}
	for _, p := range ignore {
		skip[p] = true
	}
	d := &Differ{schema: s, recency: recency}
	for i := 0; i < s.Len(); i++ {
		if !skip[i] {
			d.cols = append(d.cols, i)
		}
	}
	return d
}

// Columns returns the compared column names.
func (d *Differ) Columns() []string {
	out := make([]string, len(d.cols))
	for i, c := range d.cols {
		out[i] = d.schema.Column(c).Name
	}
	return out
}

// Diff returns the content changes and whitespace-only changes from old to cur.
func (d *Differ) Diff(old, cur table.Row) (changes, whitespace []FieldChange) {
	for _, c := range d.cols {
		o, n := old[c], cur[c]
		if table.Equal(o, n) {
			continue
		}
		fc := FieldChange{Field: d.schema.Column(c).Name, Old: o, New: n}
		if whitespaceOnly(o, n) {
			whitespace = append(whitespace, fc)
			continue
		}
		changes = append(changes, fc)
	}
	return changes, whitespace
}

// whitespaceOnly reports whether two different strings are equal once
// every whitespace rune is removed.
func whitespaceOnly(a, b table.Value) bool {
	as, ok := a.(table.String)
	if !ok {
		return false
	}
	bs, ok := b.(table.String)
	if !ok {
		return false
	}
	return stripSpace(string(as)) == stripSpace(string(bs))
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Track classifies every decision. Accepted rows without a baseline row
// are New; accepted rows with content changes are Updated; accepted rows
// without content changes are Unchanged; rejected rows are
// SkippedOutdated. Records come back in decision order.
func Track(ctx context.Context, decisions []Decision, d *Differ, workers int) ([]ChangeRecord, error) {
	out := make([]ChangeRecord, len(decisions))
	err := forEachPartitioned(ctx, len(decisions), workers,
		func(i int) table.Key { return decisions[i].Key },
		func(i int) {
			out[i] = classify(decisions[i], d)
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func classify(dec Decision, d *Differ) ChangeRecord {
	rec := ChangeRecord{
		Key:         dec.Key,
		Source:      dec.Source,
		Line:        dec.Line,
		File:        dec.File,
		Seq:         dec.Seq,
		Recency:     dec.Recency,
		BaseRecency: table.Null{},
	}
	if dec.Base != nil {
		rec.BaseRecency = dec.Base[d.recency]
	}

	switch {
	case !dec.Accepted:
		rec.Class = ClassSkippedOutdated
	case dec.Base == nil:
		rec.Class = ClassNew
		rec.Row = dec.Row
	default:
		rec.Changes, rec.Whitespace = d.Diff(dec.Base, dec.Row)
		if len(rec.Changes) == 0 {
			rec.Class = ClassUnchanged
		} else {
			rec.Class = ClassUpdated
			rec.Row = dec.Row
		}
	}
	return rec
}
