package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherDeterminism(t *testing.T) {
	sum := func() string {
		h := NewHasher(DomainBatch)
		h.WriteString("file-a.xlsx")
		h.WriteValue(String("I1"))
		h.WriteValue(MustDate("2025-01-01"))
		return h.Sum()
	}
	a, b := sum(), sum()
	assert.Equal(t, a, b, "hash must be deterministic")
	assert.Len(t, a, 64, "SHA-256 hex is 64 characters")
}

func TestHasherDomainSeparation(t *testing.T) {
	a := NewHasher(DomainBatch)
	a.WriteString("x")
	b := NewHasher(DomainTable)
	b.WriteString("x")
	assert.NotEqual(t, a.Sum(), b.Sum(), "different domains must not collide")
}

func TestHasherLengthPrefix(t *testing.T) {
	a := NewHasher(DomainBatch)
	a.WriteString("ab")
	a.WriteString("c")
	b := NewHasher(DomainBatch)
	b.WriteString("a")
	b.WriteString("bc")
	assert.NotEqual(t, a.Sum(), b.Sum())
}

func TestFingerprintOrderInsensitive(t *testing.T) {
	s := testSchema()
	ks := MustKeySpec(s, "Item", "Account")

	t1, err := New(s, ks, []Row{row("I1", "A", "1", ""), row("I2", "A", "2", "2025-01-01")})
	require.NoError(t, err)
	t2, err := New(s, ks, []Row{row("I2", "A", "2.00", "2025-01-01"), row("I1", "A", "1", "")})
	require.NoError(t, err)
	t3, err := New(s, ks, []Row{row("I2", "A", "2.01", "2025-01-01"), row("I1", "A", "1", "")})
	require.NoError(t, err)

	assert.Equal(t, Fingerprint(t1), Fingerprint(t2))
	assert.NotEqual(t, Fingerprint(t1), Fingerprint(t3))
}
