package table

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Canonical value encoding.
//
// Each value is written as a one-byte kind tag followed, for every kind
// except Null, by a uvarint length and the payload bytes:
//
//	N                    Null
//	S <len> <utf8>       String (NFC normalized)
//	I <len> <decimal>    Int
//	D <len> <decimal>    Decimal (trailing zeros trimmed, so 10.50 == 10.5)
//	T <len> YYYY-MM-DD   Date
//
// The encoding is injective: Null and the empty string differ, and the
// length prefix removes any separator ambiguity between components.
const (
	tagNull    = 'N'
	tagString  = 'S'
	tagInt     = 'I'
	tagDecimal = 'D'
	tagDate    = 'T'
)

// AppendCanonical appends the canonical encoding of v to buf.
func AppendCanonical(buf []byte, v Value) []byte {
	if IsNull(v) {
		return append(buf, tagNull)
	}
	switch val := v.(type) {
	case String:
		return appendPayload(buf, tagString, norm.NFC.String(string(val)))
	case Int:
		return appendPayload(buf, tagInt, strconv.FormatInt(int64(val), 10))
	case Decimal:
		return appendPayload(buf, tagDecimal, val.d.String())
	case Date:
		return appendPayload(buf, tagDate, val.String())
	default:
		panic(fmt.Sprintf("unsupported value type %T", v))
	}
}

func appendPayload(buf []byte, tag byte, payload string) []byte {
	buf = append(buf, tag)
	buf = binary.AppendUvarint(buf, uint64(len(payload)))
	return append(buf, payload...)
}

// decodeCanonical reads one value from the front of data and returns it
// together with the number of bytes consumed.
func decodeCanonical(data []byte) (Value, int, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("canonical value: unexpected end of input")
	}
	tag := data[0]
	if tag == tagNull {
		return Null{}, 1, nil
	}
	n, w := binary.Uvarint(data[1:])
	if w <= 0 {
		return nil, 0, fmt.Errorf("canonical value: bad length prefix")
	}
	start := 1 + w
	end := start + int(n)
	if end > len(data) {
		return nil, 0, fmt.Errorf("canonical value: payload overruns input")
	}
	payload := string(data[start:end])

	switch tag {
	case tagString:
		return String(payload), end, nil
	case tagInt:
		i, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("canonical int: %w", err)
		}
		return Int(i), end, nil
	case tagDecimal:
		d, err := decimal.NewFromString(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("canonical decimal: %w", err)
		}
		return NewDecimal(d), end, nil
	case tagDate:
		t, err := time.Parse(DateLayout, payload)
		if err != nil {
			return nil, 0, fmt.Errorf("canonical date: %w", err)
		}
		return DateOf(t), end, nil
	default:
		return nil, 0, fmt.Errorf("canonical value: unknown tag %q", tag)
	}
}
