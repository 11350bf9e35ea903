package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tablesync/internal/table"
)

// DefaultDateFormats are tried in order when a table definition does not
// list its own. They accept ISO dates, US month/day/year and the
// "2025-Nov-10" style some extracts use.
var DefaultDateFormats = []string{
	"2006-01-02",
	"1/2/2006",
	"2006-Jan-02",
}

// errUnparseable marks a cell whose text cannot be read as the column type.
var errUnparseable = fmt.Errorf("unparseable value")

// cleanString trims and NFC-normalizes s. The second result is false when
// nothing is left.
func cleanString(s string) (string, bool) {
	s = strings.TrimSpace(norm.NFC.String(s))
	return s, s != ""
}

// cellText renders a raw cell as text. Integral floats drop their fraction
// so a spreadsheet number 1001.0 reads as "1001".
func cellText(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		return string(v), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	case decimal.Decimal:
		return v.String(), true
	case time.Time:
		return v.Format(table.DateLayout), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// coerce converts one raw cell to a value of the given column type.
// Blank input yields Null with a nil error; input that is present but
// cannot be read yields Null and errUnparseable.
func coerce(raw any, typ table.ColumnType, dateFormats []string) (table.Value, error) {
	switch v := raw.(type) {
	case nil:
		return table.Null{}, nil
	case table.Value:
		if table.IsNull(v) {
			return table.Null{}, nil
		}
		if v.Kind() == typ.Kind() {
			if s, ok := v.(table.String); ok {
				return coerceString(string(s)), nil
			}
			return v, nil
		}
		raw = v.String()
	case time.Time:
		if typ == table.TypeDate {
			return table.DateOf(v), nil
		}
	case float64:
		switch typ {
		case table.TypeInt:
			if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
				return table.Null{}, errUnparseable
			}
			return table.Int(int64(v)), nil
		case table.TypeDecimal:
			if math.IsInf(v, 0) || math.IsNaN(v) {
				return table.Null{}, errUnparseable
			}
			return table.NewDecimal(decimal.NewFromFloat(v)), nil
		}
	case int:
		switch typ {
		case table.TypeInt:
			return table.Int(int64(v)), nil
		case table.TypeDecimal:
			return table.NewDecimal(decimal.NewFromInt(int64(v))), nil
		}
	case int64:
		switch typ {
		case table.TypeInt:
			return table.Int(v), nil
		case table.TypeDecimal:
			return table.NewDecimal(decimal.NewFromInt(v)), nil
		}
	case decimal.Decimal:
		if typ == table.TypeDecimal {
			return table.NewDecimal(v), nil
		}
	}

	text, ok := cellText(raw)
	if !ok {
		return table.Null{}, nil
	}
	text, ok = cleanString(text)
	if !ok {
		return table.Null{}, nil
	}

	switch typ {
	case table.TypeString:
		return table.String(text), nil
	case table.TypeInt:
		return parseInt(text)
	case table.TypeDecimal:
		return parseDecimal(text)
	case table.TypeDate:
		return parseDate(text, dateFormats)
	default:
		return table.Null{}, fmt.Errorf("unsupported column type %q", typ)
	}
}

func coerceString(s string) table.Value {
	s, ok := cleanString(s)
	if !ok {
		return table.Null{}
	}
	return table.String(s)
}

// stripNumber removes thousands separators and inner spaces.
func stripNumber(s string) string {
	return strings.NewReplacer(",", "", " ", "").Replace(s)
}

func parseInt(s string) (table.Value, error) {
	s = stripNumber(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return table.Int(i), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return table.Null{}, errUnparseable
	}
	return table.Int(d.IntPart()), nil
}

func parseDecimal(s string) (table.Value, error) {
	d, err := decimal.NewFromString(stripNumber(s))
	if err != nil {
		return table.Null{}, errUnparseable
	}
	return table.NewDecimal(d), nil
}

// parseDate tries each layout in order; the first match wins. A trailing
// time of day ("2025-01-02 00:00:00", "2025-01-02T10:00:00") is ignored.
func parseDate(s string, layouts []string) (table.Value, error) {
	if len(layouts) == 0 {
		layouts = DefaultDateFormats
	}
	candidates := []string{s}
	if i := strings.IndexAny(s, " T"); i > 0 {
		candidates = append(candidates, s[:i])
	}
	for _, c := range candidates {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, c); err == nil {
				return table.DateOf(t), nil
			}
		}
	}
	return table.Null{}, errUnparseable
}

// CellText renders a raw cell the way the normalizer reads it. The second
// result is false for nil.
func CellText(raw any) (string, bool) {
	return cellText(raw)
}
