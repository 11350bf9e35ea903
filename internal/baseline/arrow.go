package baseline

import (
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/shopspring/decimal"

	"github.com/roach88/tablesync/internal/table"
)

// Schema metadata keys written into every baseline file.
const (
	metaKey     = "tablesync.key"
	metaTypes   = "tablesync.types"
	metaVersion = "tablesync.version"
	fileVersion = "1"
)

// arrowType maps a column type to its Parquet-backed Arrow type. Decimals
// are stored as their exact text so no scale is imposed on the column.
func arrowType(t table.ColumnType) (arrow.DataType, error) {
	switch t {
	case table.TypeString, table.TypeDecimal:
		return arrow.BinaryTypes.String, nil
	case table.TypeInt:
		return arrow.PrimitiveTypes.Int64, nil
	case table.TypeDate:
		return arrow.FixedWidthTypes.Date32, nil
	default:
		return nil, fmt.Errorf("unsupported column type %q", t)
	}
}

// ArrowSchema converts a table schema and key into an Arrow schema. Every
// field is nullable; the key and column types travel as metadata.
func ArrowSchema(s *table.Schema, key *table.KeySpec) (*arrow.Schema, error) {
	fields := make([]arrow.Field, s.Len())
	types := make([]string, s.Len())
	for i, col := range s.Columns() {
		dt, err := arrowType(col.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		fields[i] = arrow.Field{Name: col.Name, Type: dt, Nullable: true}
		types[i] = string(col.Type)
	}
	md := arrow.NewMetadata(
		[]string{metaKey, metaTypes, metaVersion},
		[]string{strings.Join(key.Columns(), "\x1f"), strings.Join(types, ","), fileVersion},
	)
	return arrow.NewSchema(fields, &md), nil
}

// appendValue appends one cell to the column builder of its type.
func appendValue(b array.Builder, v table.Value) error {
	if table.IsNull(v) {
		b.AppendNull()
		return nil
	}
	switch bb := b.(type) {
	case *array.StringBuilder:
		switch x := v.(type) {
		case table.String:
			bb.Append(string(x))
		case table.Decimal:
			bb.Append(x.Decimal().String())
		default:
			return fmt.Errorf("cannot store %s value in a string column", v.Kind())
		}
	case *array.Int64Builder:
		x, ok := v.(table.Int)
		if !ok {
			return fmt.Errorf("cannot store %s value in an int column", v.Kind())
		}
		bb.Append(int64(x))
	case *array.Date32Builder:
		x, ok := v.(table.Date)
		if !ok {
			return fmt.Errorf("cannot store %s value in a date column", v.Kind())
		}
		bb.Append(arrow.Date32FromTime(x.Time()))
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

// readValue extracts one cell from an Arrow column as a value of type t.
func readValue(arr arrow.Array, i int, t table.ColumnType) (table.Value, error) {
	if arr.IsNull(i) {
		return table.Null{}, nil
	}
	switch a := arr.(type) {
	case *array.String:
		s := a.Value(i)
		if t == table.TypeDecimal {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("decimal %q: %w", s, err)
			}
			return table.NewDecimal(d), nil
		}
		return table.String(s), nil
	case *array.Int64:
		return table.Int(a.Value(i)), nil
	case *array.Date32:
		return table.DateOf(a.Value(i).ToTime()), nil
	default:
		return nil, fmt.Errorf("unsupported arrow column %s", arr.DataType())
	}
}
