// Package validate runs advisory business-rule checks over a baseline.
//
// Findings are reported, never enforced: a table with issues is still
// committed.
package validate

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/roach88/tablesync/internal/table"
)

// Check names, used as metric labels and report headings.
const (
	CheckRelationship   = "relationship"
	CheckBlankCatalogue = "blank_catalogue"
	CheckConsistency    = "consistency"
)

// Config names the columns the checks read. A check whose columns are not
// all configured and present in the schema is skipped.
type Config struct {
	Contract      string   `json:"contract,omitempty"`
	Vendor        string   `json:"vendor,omitempty"`
	Catalogue     string   `json:"catalogue,omitempty"`
	Identity      string   `json:"identity,omitempty"`
	Account       string   `json:"account,omitempty"`
	AccountPrefix int      `json:"account_prefix,omitempty"`
	Sequence      string   `json:"sequence,omitempty"`
	Require       []string `json:"require,omitempty"`
	// ContractIgnore lists contract placeholders such as "N/A".
	ContractIgnore []string `json:"contract_ignore,omitempty"`
}

// AllowList holds identity values permitted to have a blank catalogue.
type AllowList map[string]struct{}

// NewAllowList builds an allow-list from raw values. Blank values are skipped.
func NewAllowList(values ...string) AllowList {
	a := make(AllowList, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			a[v] = struct{}{}
		}
	}
	return a
}

// Contains reports whether v is allowed.
func (a AllowList) Contains(v string) bool {
	_, ok := a[v]
	return ok
}

// ContractVendors is a contract linked to more than one vendor.
type ContractVendors struct {
	Contract string   `json:"contract"`
	Vendors  []string `json:"vendors"`
}

// BlankRow is a row with a blank catalogue that is not allow-listed.
type BlankRow struct {
	Key      table.Key `json:"-"`
	Identity string    `json:"identity"`
	Row      table.Row `json:"-"`
}

// InconsistentGroup is an (identity, vendor, account prefix) group with
// more than one distinct catalogue value.
type InconsistentGroup struct {
	Identity      string   `json:"identity"`
	Vendor        string   `json:"vendor"`
	AccountPrefix string   `json:"account_prefix"`
	Catalogues    []string `json:"catalogues"`
	Sequences     []string `json:"sequences,omitempty"`
}

// CheckResult is the outcome of one check.
type CheckResult[T any] struct {
	Ran     bool   `json:"ran"`
	Skipped string `json:"skipped,omitempty"`
	Count   int    `json:"count"`
	Items   []T    `json:"items,omitempty"`
}

// Report collects the three check results.
type Report struct {
	Relationship   CheckResult[ContractVendors]   `json:"relationship"`
	BlankCatalogue CheckResult[BlankRow]          `json:"blank_catalogue"`
	Consistency    CheckResult[InconsistentGroup] `json:"consistency"`
	// Allowed counts blank-catalogue rows suppressed by the allow-list.
	Allowed int `json:"allowed"`
}

// HasIssues reports whether any check found something.
func (r *Report) HasIssues() bool {
	return r != nil && r.Issues() > 0
}

// Issues returns the total finding count.
func (r *Report) Issues() int {
	if r == nil {
		return 0
	}
	return r.Relationship.Count + r.BlankCatalogue.Count + r.Consistency.Count
}

// Counts returns the finding count per check name.
func (r *Report) Counts() map[string]int {
	return map[string]int{
		CheckRelationship:   r.Relationship.Count,
		CheckBlankCatalogue: r.BlankCatalogue.Count,
		CheckConsistency:    r.Consistency.Count,
	}
}

// Validator runs the checks against tables of one schema.
type Validator struct {
	cfg    Config
	schema *table.Schema
	logger *zap.Logger
	ignore map[string]bool
}

// New binds cfg to a schema. Columns that are configured but missing from
// the schema are an error; unconfigured columns simply disable checks.
func New(s *table.Schema, cfg Config, logger *zap.Logger) (*Validator, error) {
	names := []string{cfg.Contract, cfg.Vendor, cfg.Catalogue, cfg.Identity, cfg.Account, cfg.Sequence}
	names = append(names, cfg.Require...)
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := s.Index(n); !ok {
			return nil, fmt.Errorf("validation column %q not in schema", n)
		}
	}
	if cfg.AccountPrefix < 0 {
		return nil, fmt.Errorf("account prefix must not be negative, got %d", cfg.AccountPrefix)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ignore := make(map[string]bool, len(cfg.ContractIgnore))
	for _, v := range cfg.ContractIgnore {
		ignore[strings.TrimSpace(v)] = true
	}
	return &Validator{cfg: cfg, schema: s, logger: logger, ignore: ignore}, nil
}

// Validate runs every applicable check over tbl.
func (v *Validator) Validate(tbl *table.Table, allow AllowList) *Report {
	r := &Report{}
	v.checkRelationship(tbl, r)
	v.checkBlankCatalogue(tbl, allow, r)
	v.checkConsistency(tbl, r)

	if r.HasIssues() {
		v.logger.Warn("validation found issues",
			zap.Int(CheckRelationship, r.Relationship.Count),
			zap.Int(CheckBlankCatalogue, r.BlankCatalogue.Count),
			zap.Int(CheckConsistency, r.Consistency.Count))
	} else {
		v.logger.Info("all validation checks passed")
	}
	return r
}

// positions resolves configured columns; ok is false if any is unset.
func (v *Validator) positions(names ...string) ([]int, bool) {
	out := make([]int, len(names))
	for i, n := range names {
		if n == "" {
			return nil, false
		}
		p, ok := v.schema.Index(n)
		if !ok {
			return nil, false
		}
		out[i] = p
	}
	return out, true
}

func text(val table.Value) string {
	if table.IsNull(val) {
		return ""
	}
	return strings.TrimSpace(val.String())
}

func (v *Validator) checkRelationship(tbl *table.Table, r *Report) {
	pos, ok := v.positions(v.cfg.Contract, v.cfg.Vendor)
	if !ok {
		r.Relationship.Skipped = "contract or vendor column not configured"
		v.logger.Warn("skipping contract/vendor check: columns not configured")
		return
	}
	r.Relationship.Ran = true

	vendors := map[string]map[string]struct{}{}
	for _, row := range tbl.All() {
		contract, vendor := text(row[pos[0]]), text(row[pos[1]])
		if contract == "" || vendor == "" || v.ignore[contract] {
			continue
		}
		set, ok := vendors[contract]
		if !ok {
			set = map[string]struct{}{}
			vendors[contract] = set
		}
		set[vendor] = struct{}{}
	}

	for _, contract := range slices.Sorted(maps.Keys(vendors)) {
		set := vendors[contract]
		if len(set) > 1 {
			r.Relationship.Items = append(r.Relationship.Items, ContractVendors{
				Contract: contract,
				Vendors:  slices.Sorted(maps.Keys(set)),
			})
		}
	}
	r.Relationship.Count = len(r.Relationship.Items)
}

func (v *Validator) checkBlankCatalogue(tbl *table.Table, allow AllowList, r *Report) {
	pos, ok := v.positions(v.cfg.Catalogue)
	if !ok {
		r.BlankCatalogue.Skipped = "catalogue column not configured"
		v.logger.Warn("skipping blank catalogue check: column not configured")
		return
	}
	r.BlankCatalogue.Ran = true

	idPos := -1
	if p, ok := v.positions(v.cfg.Identity); ok {
		idPos = p[0]
	}
	ks := tbl.KeySpec()
	for _, row := range tbl.All() {
		if text(row[pos[0]]) != "" {
			continue
		}
		var identity string
		if idPos >= 0 {
			identity = text(row[idPos])
		}
		if identity != "" && allow.Contains(identity) {
			r.Allowed++
			continue
		}
		r.BlankCatalogue.Items = append(r.BlankCatalogue.Items, BlankRow{
			Key:      ks.Key(row),
			Identity: identity,
			Row:      row,
		})
	}
	r.BlankCatalogue.Count = len(r.BlankCatalogue.Items)
}

type groupKey struct {
	identity, vendor, prefix string
}

type groupVals struct {
	catalogues map[string]struct{}
	sequences  map[string]struct{}
}

func (v *Validator) checkConsistency(tbl *table.Table, r *Report) {
	pos, ok := v.positions(v.cfg.Identity, v.cfg.Vendor, v.cfg.Catalogue, v.cfg.Account)
	if !ok {
		r.Consistency.Skipped = "identity, vendor, catalogue or account column not configured"
		v.logger.Warn("skipping catalogue consistency check: columns not configured")
		return
	}
	r.Consistency.Ran = true

	required, _ := v.positions(v.cfg.Require...)
	seqPos := -1
	if p, ok := v.positions(v.cfg.Sequence); ok {
		seqPos = p[0]
	}

	groups := map[groupKey]*groupVals{}
rows:
	for _, row := range tbl.All() {
		for _, p := range required {
			if table.IsNull(row[p]) {
				continue rows
			}
		}
		identity, vendor, catalogue, account := text(row[pos[0]]), text(row[pos[1]]), text(row[pos[2]]), text(row[pos[3]])
		if identity == "" || vendor == "" || catalogue == "" || account == "" {
			continue
		}
		k := groupKey{identity: identity, vendor: vendor, prefix: prefix(account, v.cfg.AccountPrefix)}
		g, ok := groups[k]
		if !ok {
			g = &groupVals{catalogues: map[string]struct{}{}, sequences: map[string]struct{}{}}
			groups[k] = g
		}
		g.catalogues[catalogue] = struct{}{}
		if seqPos >= 0 {
			if s := text(row[seqPos]); s != "" {
				g.sequences[s] = struct{}{}
			}
		}
	}

	for k, g := range groups {
		if len(g.catalogues) < 2 {
			continue
		}
		item := InconsistentGroup{
			Identity:      k.identity,
			Vendor:        k.vendor,
			AccountPrefix: k.prefix,
			Catalogues:    slices.Sorted(maps.Keys(g.catalogues)),
		}
		if len(g.sequences) > 0 {
			item.Sequences = slices.Sorted(maps.Keys(g.sequences))
		}
		r.Consistency.Items = append(r.Consistency.Items, item)
	}
	slices.SortFunc(r.Consistency.Items, func(a, b InconsistentGroup) int {
		return cmp.Or(
			cmp.Compare(a.Identity, b.Identity),
			cmp.Compare(a.Vendor, b.Vendor),
			cmp.Compare(a.AccountPrefix, b.AccountPrefix),
		)
	})
	r.Consistency.Count = len(r.Consistency.Items)
}

// prefix returns the first n runes of s; n == 0 keeps all of s.
func prefix(s string, n int) string {
	if n == 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
