package engine

import (
	"path/filepath"
	"strconv"

	"github.com/roach88/tablesync/internal/normalize"
	"github.com/roach88/tablesync/internal/table"
)

// Batch is an ordered set of incremental extracts applied together.
type Batch []normalize.RawFile

// ID returns the content address of the batch: a domain-separated
// SHA-256 over each file's base name, header and raw cells, in order.
// Re-reading the same files from another directory gives the same id.
func (b Batch) ID() string {
	h := table.NewHasher(table.DomainBatch)
	h.WriteString(strconv.Itoa(len(b)))
	for _, f := range b {
		h.WriteString(filepath.Base(f.Source))
		h.WriteString(strconv.Itoa(len(f.Header)))
		for _, name := range f.Header {
			h.WriteString(name)
		}
		h.WriteString(strconv.Itoa(len(f.Records)))
		for _, rec := range f.Records {
			h.WriteString(strconv.Itoa(len(rec)))
			for _, cell := range rec {
				text, ok := normalize.CellText(cell)
				if !ok {
					h.WriteString("\x00null")
					continue
				}
				h.WriteString(text)
			}
		}
	}
	return h.Sum()
}

// Sources lists the file sources in batch order.
func (b Batch) Sources() []string {
	out := make([]string, len(b))
	for i, f := range b {
		out[i] = f.Source
	}
	return out
}

// Candidate is one typed incoming row stamped with its arrival seq.
type Candidate struct {
	Key     table.Key
	Row     table.Row
	Recency table.Value
	Seq     int64
	File    int
	Source  string
	Line    int
}

// DroppedRow is an incoming record removed before deduplication.
type DroppedRow struct {
	Source string
	Row    int
	Err    *SyncError
}
