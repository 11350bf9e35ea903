package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablesync/internal/validate"
)

func validSpec() *TableSpec {
	return &TableSpec{
		Name: "item_price",
		Columns: []ColumnSpec{
			{Name: "id", Type: "string"},
			{Name: "acct", Type: "string"},
			{Name: "updated", Type: "date"},
			{Name: "price", Type: "decimal"},
			{Name: "source", Type: "string"},
		},
		Key:         []string{"id", "acct"},
		Recency:     "updated",
		DateFormats: []string{"2006-01-02", "1/2/2006", "2006-Jan-02"},
		Ignore:      []string{"source"},
		Exclude:     map[string][]string{"acct": {"X"}},
		Validation:  &validate.Config{Identity: "id", Account: "acct", AccountPrefix: 2},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValid(t *testing.T) {
	assert.Empty(t, Validate(validSpec()))
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TableSpec)
		code   string
		field  string
	}{
		{"empty name", func(s *TableSpec) { s.Name = " " }, ErrNoName, "name"},
		{"no columns", func(s *TableSpec) { s.Columns = nil; s.Key = nil; s.Ignore = nil; s.Exclude = nil; s.Validation = nil }, ErrNoColumns, "columns"},
		{"duplicate column", func(s *TableSpec) { s.Columns = append(s.Columns, ColumnSpec{Name: "price", Type: "int"}) }, ErrDuplicateColumn, "columns[5].name"},
		{"bad type", func(s *TableSpec) { s.Columns[3].Type = "money" }, ErrInvalidType, "columns[3].type"},
		{"empty key", func(s *TableSpec) { s.Key = nil }, ErrNoKey, "key"},
		{"unknown key column", func(s *TableSpec) { s.Key = []string{"id", "nope"} }, ErrUnknownColumn, "key[1]"},
		{"repeated key column", func(s *TableSpec) { s.Key = []string{"id", "id"} }, ErrDuplicateColumn, "key[1]"},
		{"unknown recency", func(s *TableSpec) { s.Recency = "nope" }, ErrInvalidRecency, "recency"},
		{"recency not a date", func(s *TableSpec) { s.Recency = "price" }, ErrInvalidRecency, "recency"},
		{"recency in key", func(s *TableSpec) { s.Key = []string{"id", "updated"} }, ErrInvalidRecency, "recency"},
		{"time-only layout", func(s *TableSpec) { s.DateFormats = []string{"15:04"} }, ErrInvalidDateFmt, "date_formats[0]"},
		{"unknown ignore", func(s *TableSpec) { s.Ignore = []string{"nope"} }, ErrUnknownColumn, "ignore[0]"},
		{"unknown exclude", func(s *TableSpec) { s.Exclude = map[string][]string{"nope": {"x"}} }, ErrUnknownColumn, "exclude.nope"},
		{"unknown validation column", func(s *TableSpec) { s.Validation.Vendor = "nope" }, ErrUnknownColumn, "validation.vendor"},
		{"unknown required column", func(s *TableSpec) { s.Validation.Require = []string{"nope"} }, ErrUnknownColumn, "validation.require[0]"},
		{"negative prefix", func(s *TableSpec) { s.Validation.AccountPrefix = -1 }, ErrInvalidValidator, "validation.account_prefix"},
		{"prefix without account", func(s *TableSpec) { s.Validation.Account = "" }, ErrInvalidValidator, "validation.account_prefix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(spec)

			errs := Validate(spec)
			require.NotEmpty(t, errs)
			assert.Contains(t, codes(errs), tt.code)

			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidateCollectsAll(t *testing.T) {
	spec := validSpec()
	spec.Key = []string{"nope"}
	spec.Recency = "price"
	spec.Ignore = []string{"gone"}

	errs := Validate(spec)
	assert.Len(t, errs, 3)
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "key[0]", Message: "bad", Code: ErrUnknownColumn}
	assert.Equal(t, "[E105] key[0]: bad", e.Error())
}

func TestDateLayoutAliasAccepted(t *testing.T) {
	spec := validSpec()
	spec.Columns[2].Type = "DATE"
	assert.Empty(t, Validate(spec))
}
