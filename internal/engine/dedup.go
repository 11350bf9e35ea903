package engine

import (
	"cmp"
	"slices"

	"github.com/roach88/tablesync/internal/table"
)

// Version is one candidate row within a duplicate group.
type Version struct {
	File    int
	Source  string
	Line    int
	Seq     int64
	Recency table.Value
	Row     table.Row
	Winner  bool
}

// DuplicateGroup lists every incoming version of a key that arrived more
// than once in a batch.
type DuplicateGroup struct {
	Key      table.Key
	Versions []Version
}

// newer reports whether a should replace b: later recency wins, and on a
// tie the later arrival wins.
func newer(a, b Candidate) bool {
	if c := table.CompareRecency(a.Recency, b.Recency); c != 0 {
		return c > 0
	}
	return a.Seq > b.Seq
}

// Deduplicate keeps one candidate per key: the one with the greatest
// (Recency, Seq). Winners are returned in arrival order. Every key seen
// more than once is reported as a DuplicateGroup, ordered by key, with
// versions ordered by recency then seq.
//
// cands must be in seq order.
func Deduplicate(cands []Candidate) ([]Candidate, []DuplicateGroup) {
	winner := make(map[table.Key]int, len(cands))
	seen := make(map[table.Key][]int)
	for i, c := range cands {
		w, ok := winner[c.Key]
		if !ok {
			winner[c.Key] = i
			continue
		}
		if len(seen[c.Key]) == 0 {
			seen[c.Key] = append(seen[c.Key], w)
		}
		seen[c.Key] = append(seen[c.Key], i)
		if newer(c, cands[w]) {
			winner[c.Key] = i
		}
	}

	out := make([]Candidate, 0, len(winner))
	for i, c := range cands {
		if winner[c.Key] == i {
			out = append(out, c)
		}
	}

	groups := make([]DuplicateGroup, 0, len(seen))
	for k, idx := range seen {
		g := DuplicateGroup{Key: k, Versions: make([]Version, len(idx))}
		for j, i := range idx {
			c := cands[i]
			g.Versions[j] = Version{
				File:    c.File,
				Source:  c.Source,
				Line:    c.Line,
				Seq:     c.Seq,
				Recency: c.Recency,
				Row:     c.Row,
				Winner:  winner[k] == i,
			}
		}
		slices.SortFunc(g.Versions, func(a, b Version) int {
			return cmp.Or(table.CompareRecency(a.Recency, b.Recency), cmp.Compare(a.Seq, b.Seq))
		})
		groups = append(groups, g)
	}
	slices.SortFunc(groups, func(a, b DuplicateGroup) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return out, groups
}
