package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tablesync/internal/validate"
)

// CompileTable parses a CUE value into a TableSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the table struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`table: item_price: { ... }`)
//	spec, err := CompileTable(v.LookupPath(cue.ParsePath("table.item_price")))
func CompileTable(v cue.Value) (*TableSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &TableSpec{}

	// Table name from struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	var err error
	spec.Columns, err = parseColumns(v)
	if err != nil {
		return nil, err
	}
	if len(spec.Columns) == 0 {
		return nil, &CompileError{
			Field:   "columns",
			Message: "at least one column is required",
			Pos:     v.Pos(),
		}
	}

	spec.Key, err = requiredStrings(v, "key")
	if err != nil {
		return nil, err
	}

	recVal := v.LookupPath(cue.ParsePath("recency"))
	if !recVal.Exists() {
		return nil, &CompileError{
			Field:   "recency",
			Message: "recency column is required",
			Pos:     v.Pos(),
		}
	}
	if spec.Recency, err = recVal.String(); err != nil {
		return nil, formatCUEError(err)
	}

	if spec.DateFormats, err = optionalStrings(v, "date_formats"); err != nil {
		return nil, err
	}
	if spec.Ignore, err = optionalStrings(v, "ignore"); err != nil {
		return nil, err
	}
	if spec.Exclude, err = parseExclude(v); err != nil {
		return nil, err
	}

	if bv := v.LookupPath(cue.ParsePath("baseline")); bv.Exists() {
		if spec.Baseline, err = bv.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if vv := v.LookupPath(cue.ParsePath("validation")); vv.Exists() {
		var cfg validate.Config
		if err := vv.Decode(&cfg); err != nil {
			return nil, formatCUEError(err)
		}
		spec.Validation = &cfg
	}

	return spec, nil
}

// parseColumns reads the ordered column list: [{name: "...", type: "..."}].
func parseColumns(v cue.Value) ([]ColumnSpec, error) {
	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, &CompileError{
			Field:   "columns",
			Message: "columns are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := colsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var cols []ColumnSpec
	for iter.Next() {
		cv := iter.Value()
		nameVal := cv.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return nil, &CompileError{
				Field:   "columns",
				Message: fmt.Sprintf("column %d has no name", len(cols)),
				Pos:     cv.Pos(),
			}
		}
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		typ := "string" // default
		if tv := cv.LookupPath(cue.ParsePath("type")); tv.Exists() {
			if typ, err = tv.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		cols = append(cols, ColumnSpec{Name: name, Type: typ})
	}
	return cols, nil
}

// parseExclude reads {column: [values]}. Field order is kept for
// deterministic error reporting only; the result is a map.
func parseExclude(v cue.Value) (map[string][]string, error) {
	exVal := v.LookupPath(cue.ParsePath("exclude"))
	if !exVal.Exists() {
		return nil, nil
	}
	iter, err := exVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := map[string][]string{}
	for iter.Next() {
		vals, err := stringList(iter.Value(), "exclude."+iter.Selector().Unquoted())
		if err != nil {
			return nil, err
		}
		out[iter.Selector().Unquoted()] = vals
	}
	return out, nil
}

func requiredStrings(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	return stringList(fv, field)
}

func optionalStrings(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	return stringList(fv, field)
}

func stringList(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{
			Field:   field,
			Message: "must be a list of strings",
			Pos:     v.Pos(),
		}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
