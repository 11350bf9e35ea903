package engine

import (
	"context"

	"github.com/roach88/tablesync/internal/table"
)

// Decision is the Smart Sync verdict for one deduplicated candidate.
type Decision struct {
	Candidate
	// Base is the baseline row with the same key, or nil.
	Base table.Row
	// Accepted is true for keys new to the baseline and for rows strictly
	// newer than their baseline counterpart.
	Accepted bool
}

// Accepts applies the recency rule. A row absent from the baseline is
// always accepted. A present row is accepted only when its recency is
// strictly later than the baseline's; equal dates are rejected, a null
// baseline date loses to any date and a null incoming date never wins.
func Accepts(incoming, baseline table.Value, inBaseline bool) bool {
	if !inBaseline {
		return true
	}
	return table.CompareRecency(incoming, baseline) > 0
}

// Filter evaluates every candidate against the baseline, one key-hash
// partition per worker. Decisions come back in candidate order.
func Filter(ctx context.Context, base *table.Table, cands []Candidate, recency, workers int) ([]Decision, error) {
	out := make([]Decision, len(cands))
	err := forEachPartitioned(ctx, len(cands), workers,
		func(i int) table.Key { return cands[i].Key },
		func(i int) {
			c := cands[i]
			row, ok := base.Lookup(c.Key)
			d := Decision{Candidate: c, Accepted: Accepts(c.Recency, baseRecency(row, ok, recency), ok)}
			if ok {
				d.Base = row
			}
			out[i] = d
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func baseRecency(row table.Row, ok bool, recency int) table.Value {
	if !ok {
		return table.Null{}
	}
	return row[recency]
}
