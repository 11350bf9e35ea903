package normalize

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/tablesync/internal/table"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		typ     table.ColumnType
		want    table.Value
		wantErr bool
	}{
		{"nil", nil, table.TypeString, table.Null{}, false},
		{"blank string", "   ", table.TypeString, table.Null{}, false},
		{"trimmed", "  abc\t", table.TypeString, table.String("abc"), false},
		{"nfc", "cafe\u0301", table.TypeString, table.String("caf\u00e9"), false},
		{"int from string", "42", table.TypeString, table.String("42"), false},
		{"int from float string", "1001.0", table.TypeString, table.String("1001.0"), false},
		{"int with separators", "1,234,567", table.TypeInt, table.Int(1234567), false},
		{"int from integral decimal", "12.00", table.TypeInt, table.Int(12), false},
		{"int fraction", "12.5", table.TypeInt, table.Null{}, true},
		{"int from float64", 9.0, table.TypeInt, table.Int(9), false},
		{"int from fractional float", 9.5, table.TypeInt, table.Null{}, true},
		{"decimal", "1,000.50", table.TypeDecimal, table.MustDecimal("1000.5"), false},
		{"decimal from float64", 0.1, table.TypeDecimal, table.MustDecimal("0.1"), false},
		{"decimal from int", 3, table.TypeDecimal, table.MustDecimal("3"), false},
		{"decimal passthrough", decimal.RequireFromString("2.50"), table.TypeDecimal, table.MustDecimal("2.5"), false},
		{"decimal garbage", "N/A", table.TypeDecimal, table.Null{}, true},
		{"iso date", "2025-11-10", table.TypeDate, table.MustDate("2025-11-10"), false},
		{"us date", "11/10/2025", table.TypeDate, table.MustDate("2025-11-10"), false},
		{"us date short", "1/5/2025", table.TypeDate, table.MustDate("2025-01-05"), false},
		{"month name", "2025-Nov-10", table.TypeDate, table.MustDate("2025-11-10"), false},
		{"datetime", "2025-11-10 00:00:00", table.TypeDate, table.MustDate("2025-11-10"), false},
		{"time value", time.Date(2025, 2, 3, 15, 4, 5, 0, time.UTC), table.TypeDate, table.MustDate("2025-02-03"), false},
		{"bad date", "tomorrow", table.TypeDate, table.Null{}, true},
		{"table value", table.String("  x "), table.TypeString, table.String("x"), false},
		{"table value cross kind", table.Int(5), table.TypeDecimal, table.MustDecimal("5"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce(tt.raw, tt.typ, nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, errUnparseable)
			} else {
				assert.NoError(t, err)
			}
			assert.True(t, table.Equal(tt.want, got), "got %s want %s", table.Display(got), table.Display(tt.want))
		})
	}
}

func TestParseDateFirstMatchWins(t *testing.T) {
	// 02/03/2025 is ambiguous; the configured order decides.
	got, err := parseDate("02/03/2025", []string{"02/01/2006", "01/02/2006"})
	assert.NoError(t, err)
	assert.Equal(t, table.MustDate("2025-03-02"), got)

	got, err = parseDate("02/03/2025", []string{"01/02/2006", "02/01/2006"})
	assert.NoError(t, err)
	assert.Equal(t, table.MustDate("2025-02-03"), got)
}

func TestExclusionsMatch(t *testing.T) {
	s, _ := testSchema()
	ex, err := NewExclusions(s, map[string][]string{"Acct": {" 99 ", ""}, "Qty": {}})
	assert.NoError(t, err)

	col, ok := ex.Match(table.Row{table.String("X"), table.String("99"), table.Null{}, table.Null{}, table.Null{}})
	assert.True(t, ok)
	assert.Equal(t, "Acct", col)

	_, ok = ex.Match(table.Row{table.String("X"), table.Null{}, table.Null{}, table.Null{}, table.Null{}})
	assert.False(t, ok)

	var none *Exclusions
	assert.True(t, none.Empty())
}
