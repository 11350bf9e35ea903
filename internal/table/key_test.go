package table

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	return MustSchema(
		Column{Name: "Item", Type: TypeString},
		Column{Name: "Account", Type: TypeString},
		Column{Name: "Price", Type: TypeDecimal},
		Column{Name: "Updated", Type: TypeDate},
	)
}

func TestKeyNullDistinctFromEmpty(t *testing.T) {
	a := KeyOf(String("A"), Null{})
	b := KeyOf(String("A"), String(""))
	assert.NotEqual(t, a, b)
	assert.Equal(t, "A|<null>", a.String())
	assert.Equal(t, "A|", b.String())
}

func TestKeyNoSeparatorAmbiguity(t *testing.T) {
	a := KeyOf(String("a|b"), String("c"))
	b := KeyOf(String("a"), String("b|c"))
	assert.NotEqual(t, a, b)
}

func TestKeyNFC(t *testing.T) {
	composed := KeyOf(String("caf\u00e9"))
	decomposed := KeyOf(String("cafe\u0301"))
	assert.Equal(t, composed, decomposed)
}

func TestKeyValuesRoundTrip(t *testing.T) {
	vals := []Value{String("X1"), Null{}, Int(-7), MustDecimal("1.25"), MustDate("2024-12-31")}
	got, err := KeyOf(vals...).Values()
	require.NoError(t, err)
	require.Len(t, got, len(vals))
	for i := range vals {
		assert.True(t, Equal(vals[i], got[i]), "component %d", i)
	}
}

func TestKeySpec(t *testing.T) {
	s := testSchema()

	ks, err := NewKeySpec(s, "Item", "Account")
	require.NoError(t, err)
	assert.Equal(t, []string{"Item", "Account"}, ks.Columns())
	assert.Equal(t, []int{0, 1}, ks.Positions())
	assert.True(t, ks.Contains(1))
	assert.False(t, ks.Contains(2))

	row := Row{String("I1"), String("AC"), MustDecimal("3"), MustDate("2025-01-01")}
	assert.Equal(t, KeyOf(String("I1"), String("AC")), ks.Key(row))
	assert.Equal(t, []Value{String("I1"), String("AC")}, ks.Values(row))
}

func TestKeySpecErrors(t *testing.T) {
	s := testSchema()

	_, err := NewKeySpec(s)
	assert.Error(t, err)

	_, err = NewKeySpec(s, "Item", "Item")
	assert.ErrorContains(t, err, "listed twice")

	_, err = NewKeySpec(s, "Missing")
	assert.ErrorContains(t, err, "not in schema")
}

func TestKeyOrderingDeterministic(t *testing.T) {
	keys := []Key{
		KeyOf(String("b")),
		KeyOf(String("a")),
		KeyOf(Null{}),
		KeyOf(String("c")),
	}
	a := slices.Clone(keys)
	b := slices.Clone(keys)
	slices.Reverse(b)
	slices.Sort(a)
	slices.Sort(b)
	assert.Equal(t, a, b)
}
