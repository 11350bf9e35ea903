package table

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the dynamic type of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindDecimal
	KindDate
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindDecimal:
		return "decimal"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a sealed interface over the cell types a table can hold.
// Only Null, String, Int, Decimal and Date implement it.
//
// Values are immutable. A Row may share Values with other rows freely.
type Value interface {
	Kind() Kind
	// String renders the value for reports. Null renders as "".
	String() string
	tableValue()
}

// Null is the absent value. A Null equals only another Null.
type Null struct{}

func (Null) Kind() Kind { return KindNull }
func (Null) String() string { return "" }
func (Null) tableValue() {}

// String is a trimmed, NFC-normalized text cell.
type String string

func (String) Kind() Kind { return KindString }
func (s String) String() string { return string(s) }
func (String) tableValue() {}

// Int is a 64-bit integer cell.
type Int int64

func (Int) Kind() Kind { return KindInt }
func (i Int) String() string { return fmt.Sprintf("%d", int64(i)) }
func (Int) tableValue() {}

// Decimal holds every non-integer numeric cell. Using an exact decimal
// keeps 10.50 and 10.5 equal and makes field diffs stable.
type Decimal struct {
	d decimal.Decimal
}

// NewDecimal wraps a decimal.Decimal.
func NewDecimal(d decimal.Decimal) Decimal {
	return Decimal{d: d}
}

// MustDecimal parses s or panics. Use only in tests or for constants.
func MustDecimal(s string) Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return Decimal{d: d}
}

func (Decimal) Kind() Kind { return KindDecimal }
func (d Decimal) String() string { return d.d.String() }
func (Decimal) tableValue() {}

// Decimal returns the underlying decimal.
func (d Decimal) Decimal() decimal.Decimal { return d.d }

// DateLayout is the canonical rendering of a Date.
const DateLayout = "2006-01-02"

// Date is a calendar day. The time part is always midnight UTC.
type Date struct {
	t time.Time
}

// NewDate builds a Date from its calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day (in t's own location).
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// MustDate parses a YYYY-MM-DD string or panics. Use only in tests.
func MustDate(s string) Date {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return DateOf(t)
}

func (Date) Kind() Kind { return KindDate }
func (d Date) String() string { return d.t.Format(DateLayout) }
func (Date) tableValue() {}

// Time returns the day as midnight UTC.
func (d Date) Time() time.Time { return d.t }

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	return d.t.Compare(o.t)
}

// IsNull reports whether v is absent. A nil interface counts as null.
func IsNull(v Value) bool {
	return v == nil || v.Kind() == KindNull
}

// Equal reports value equality. Values of different kinds are never equal,
// so a value and Null always differ while Null equals Null.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Decimal:
		bv, ok := b.(Decimal)
		return ok && av.d.Equal(bv.d)
	case Date:
		bv, ok := b.(Date)
		return ok && av.t.Equal(bv.t)
	default:
		return false
	}
}

// CompareRecency orders two recency values. Null sorts before every date;
// two nulls compare equal. Non-date, non-null values are a programming
// error and panic.
func CompareRecency(a, b Value) int {
	an, bn := IsNull(a), IsNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	ad, ok := a.(Date)
	if !ok {
		panic(fmt.Sprintf("recency value must be a date, got %s", a.Kind()))
	}
	bd, ok := b.(Date)
	if !ok {
		panic(fmt.Sprintf("recency value must be a date, got %s", b.Kind()))
	}
	return ad.Compare(bd)
}

// Display renders v for human-facing output, using "<null>" for Null.
func Display(v Value) string {
	if IsNull(v) {
		return "<null>"
	}
	return v.String()
}
