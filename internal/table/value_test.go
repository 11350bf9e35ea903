package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("x")
	var _ Value = Int(1)
	var _ Value = MustDecimal("1.5")
	var _ Value = MustDate("2025-01-01")
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"null null", Null{}, Null{}, true},
		{"nil null", nil, Null{}, true},
		{"null vs empty string", Null{}, String(""), false},
		{"string", String("abc"), String("abc"), true},
		{"string differs", String("abc"), String("abd"), false},
		{"int", Int(4), Int(4), true},
		{"int vs decimal", Int(4), MustDecimal("4"), false},
		{"decimal trailing zeros", MustDecimal("10.50"), MustDecimal("10.5"), true},
		{"decimal differs", MustDecimal("10.50"), MustDecimal("10.51"), false},
		{"date", MustDate("2025-03-01"), NewDate(2025, 3, 1), true},
		{"date differs", MustDate("2025-03-01"), MustDate("2025-03-02"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a), "Equal must be symmetric")
		})
	}
}

func TestCompareRecency(t *testing.T) {
	early := MustDate("2025-01-01")
	late := MustDate("2025-06-30")

	assert.Equal(t, 0, CompareRecency(Null{}, Null{}))
	assert.Equal(t, -1, CompareRecency(Null{}, early))
	assert.Equal(t, 1, CompareRecency(early, Null{}))
	assert.Equal(t, -1, CompareRecency(early, late))
	assert.Equal(t, 1, CompareRecency(late, early))
	assert.Equal(t, 0, CompareRecency(late, MustDate("2025-06-30")))

	assert.Panics(t, func() { CompareRecency(String("x"), early) })
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "<null>", Display(Null{}))
	assert.Equal(t, "<null>", Display(nil))
	assert.Equal(t, "", Display(String("")))
	assert.Equal(t, "12.3", Display(MustDecimal("12.30")))
	assert.Equal(t, "2025-02-03", Display(MustDate("2025-02-03")))
}

func TestParseColumnType(t *testing.T) {
	for in, want := range map[string]ColumnType{
		"string":  TypeString,
		"Text":    TypeString,
		"int":     TypeInt,
		"float":   TypeDecimal,
		"decimal": TypeDecimal,
		" date ":  TypeDate,
	} {
		got, err := ParseColumnType(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseColumnType("bool")
	assert.Error(t, err)
}
