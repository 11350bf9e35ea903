package normalize

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/tablesync/internal/table"
)

// Exclusions drops rows whose column value is in a configured deny list,
// e.g. {"Corp Acct": ["9999"]}. Comparison is on the cleaned text of the
// value; Null never matches.
type Exclusions struct {
	cols  []int
	names []string
	deny  map[int]map[string]bool
}

// NewExclusions binds rules to a schema. Unknown columns are an error.
func NewExclusions(s *table.Schema, rules map[string][]string) (*Exclusions, error) {
	ex := &Exclusions{deny: make(map[int]map[string]bool, len(rules))}
	for _, name := range slices.Sorted(maps.Keys(rules)) {
		pos, ok := s.Index(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("exclude rule column %q not in schema", name)
		}
		set := make(map[string]bool, len(rules[name]))
		for _, v := range rules[name] {
			if v, ok := cleanString(v); ok {
				set[v] = true
			}
		}
		if len(set) == 0 {
			continue
		}
		ex.cols = append(ex.cols, pos)
		ex.names = append(ex.names, s.Column(pos).Name)
		ex.deny[pos] = set
	}
	return ex, nil
}

// Empty reports whether no rule is configured.
func (ex *Exclusions) Empty() bool {
	return ex == nil || len(ex.cols) == 0
}

// Match reports whether the row is excluded, and by which column.
func (ex *Exclusions) Match(r table.Row) (string, bool) {
	if ex.Empty() {
		return "", false
	}
	for i, pos := range ex.cols {
		v := r[pos]
		if table.IsNull(v) {
			continue
		}
		if ex.deny[pos][v.String()] {
			return ex.names[i], true
		}
	}
	return "", false
}
