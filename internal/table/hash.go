package table

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"slices"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainBatch = "tablesync/batch/v1"
	DomainTable = "tablesync/table/v1"
)

// Hasher computes a SHA-256 digest with domain separation.
// Format: SHA256(domain + 0x00 + data), where data is a sequence of
// length-prefixed strings and canonical values.
type Hasher struct {
	h hash.Hash
}

// NewHasher starts a digest in the given domain.
func NewHasher(domain string) *Hasher {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // separator prevents domain/data boundary ambiguity
	return &Hasher{h: h}
}

// WriteString adds a length-prefixed string.
func (h *Hasher) WriteString(s string) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(s)))
	h.h.Write(buf[:n])
	h.h.Write([]byte(s))
}

// WriteValue adds a canonical value.
func (h *Hasher) WriteValue(v Value) {
	h.h.Write(AppendCanonical(nil, v))
}

// Sum returns the hex digest.
func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// Fingerprint hashes a table's content independently of row order.
// Two tables with the same schema and the same set of rows share a
// fingerprint, which makes convergence checks cheap.
func Fingerprint(t *Table) string {
	h := NewHasher(DomainTable)
	for _, c := range t.schema.cols {
		h.WriteString(c.Name)
		h.WriteString(string(c.Type))
	}

	keys := make([]Key, 0, len(t.rows))
	for k := range t.index {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		for _, v := range t.rows[t.index[k]] {
			h.WriteValue(v)
		}
	}
	return h.Sum()
}
