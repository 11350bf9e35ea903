package compiler

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/roach88/tablesync/internal/table"
)

// Validation error codes (E100-E199)
const (
	ErrNoColumns        = "E101" // at least one column required
	ErrDuplicateColumn  = "E102" // column declared twice
	ErrInvalidType      = "E103" // unknown column type
	ErrNoKey            = "E104" // key must name at least one column
	ErrUnknownColumn    = "E105" // reference to an undeclared column
	ErrInvalidRecency   = "E106" // recency column missing, not a date, or in the key
	ErrInvalidDateFmt   = "E107" // date layout cannot render a day
	ErrInvalidValidator = "E108" // validation block is inconsistent
	ErrNoName           = "E109" // table name is empty
)

// ValidationError represents a table definition error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled table spec.
// Returns all errors found (does not fail-fast).
func Validate(spec *TableSpec) []ValidationError {
	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	if strings.TrimSpace(spec.Name) == "" {
		add(ErrNoName, "name", "table name is required")
	}

	// E101-E103: columns
	if len(spec.Columns) == 0 {
		add(ErrNoColumns, "columns", "at least one column is required")
	}
	seen := make(map[string]bool)
	for i, c := range spec.Columns {
		if strings.TrimSpace(c.Name) == "" {
			add(ErrUnknownColumn, fmt.Sprintf("columns[%d].name", i), "column name is empty")
			continue
		}
		if seen[c.Name] {
			add(ErrDuplicateColumn, fmt.Sprintf("columns[%d].name", i), "duplicate column %q", c.Name)
		}
		seen[c.Name] = true
		if _, err := table.ParseColumnType(c.Type); err != nil {
			add(ErrInvalidType, fmt.Sprintf("columns[%d].type", i), "column %q: %v", c.Name, err)
		}
	}

	// E104-E105: key
	if len(spec.Key) == 0 {
		add(ErrNoKey, "key", "key must name at least one column")
	}
	for i, k := range spec.Key {
		if !seen[k] {
			add(ErrUnknownColumn, fmt.Sprintf("key[%d]", i), "key column %q is not declared", k)
		}
		if slices.Index(spec.Key, k) != i {
			add(ErrDuplicateColumn, fmt.Sprintf("key[%d]", i), "key column %q listed twice", k)
		}
	}

	// E106: recency
	switch typ, ok := spec.ColumnType(spec.Recency); {
	case !ok:
		add(ErrInvalidRecency, "recency", "recency column %q is not declared", spec.Recency)
	case !isDate(typ):
		add(ErrInvalidRecency, "recency", "recency column %q must be a date, got %s", spec.Recency, typ)
	case slices.Contains(spec.Key, spec.Recency):
		add(ErrInvalidRecency, "recency", "recency column %q cannot be part of the key", spec.Recency)
	}

	// E107: date layouts must at least identify a day
	for i, layout := range spec.DateFormats {
		if !renderable(layout) {
			add(ErrInvalidDateFmt, fmt.Sprintf("date_formats[%d]", i), "layout %q does not identify a day", layout)
		}
	}

	for i, c := range spec.Ignore {
		if !seen[c] {
			add(ErrUnknownColumn, fmt.Sprintf("ignore[%d]", i), "ignored column %q is not declared", c)
		}
	}
	for _, c := range sortedKeys(spec.Exclude) {
		if !seen[c] {
			add(ErrUnknownColumn, "exclude."+c, "excluded column %q is not declared", c)
		}
	}

	// E108: validation block
	if vc := spec.Validation; vc != nil {
		refs := map[string]string{
			"validation.contract":  vc.Contract,
			"validation.vendor":    vc.Vendor,
			"validation.catalogue": vc.Catalogue,
			"validation.identity":  vc.Identity,
			"validation.account":   vc.Account,
			"validation.sequence":  vc.Sequence,
		}
		for _, field := range sortedKeys(refs) {
			if name := refs[field]; name != "" && !seen[name] {
				add(ErrUnknownColumn, field, "validation column %q is not declared", name)
			}
		}
		for i, c := range vc.Require {
			if !seen[c] {
				add(ErrUnknownColumn, fmt.Sprintf("validation.require[%d]", i), "required column %q is not declared", c)
			}
		}
		if vc.AccountPrefix < 0 {
			add(ErrInvalidValidator, "validation.account_prefix", "must not be negative, got %d", vc.AccountPrefix)
		}
		if vc.AccountPrefix > 0 && vc.Account == "" {
			add(ErrInvalidValidator, "validation.account_prefix", "account_prefix needs an account column")
		}
	}

	return errs
}

func isDate(typ string) bool {
	t, err := table.ParseColumnType(typ)
	return err == nil && t == table.TypeDate
}

// renderable reports whether layout carries year, month and day fields.
func renderable(layout string) bool {
	day := time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC)
	got, err := time.Parse(layout, day.Format(layout))
	return err == nil && got.Equal(day)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Definition is a checked table definition bound to a schema.
type Definition struct {
	Spec   *TableSpec
	Schema *table.Schema
	Key    *table.KeySpec
}

// Name returns the table name.
func (d *Definition) Name() string { return d.Spec.Name }

// Bind validates spec and builds its schema and key. All validation
// errors are returned joined.
func Bind(spec *TableSpec) (*Definition, error) {
	if verrs := Validate(spec); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, fmt.Errorf("table %q: %w", spec.Name, errors.Join(errs...))
	}

	cols := make([]table.Column, len(spec.Columns))
	for i, c := range spec.Columns {
		typ, err := table.ParseColumnType(c.Type)
		if err != nil {
			return nil, err
		}
		cols[i] = table.Column{Name: c.Name, Type: typ}
	}
	s, err := table.NewSchema(cols...)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", spec.Name, err)
	}
	ks, err := table.NewKeySpec(s, spec.Key...)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", spec.Name, err)
	}
	return &Definition{Spec: spec, Schema: s, Key: ks}, nil
}
