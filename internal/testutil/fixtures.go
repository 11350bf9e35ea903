package testutil

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/tablesync/internal/compiler"
	"github.com/roach88/tablesync/internal/table"
	"github.com/roach88/tablesync/internal/validate"
)

// Column names of the item-price table used throughout the tests.
const (
	ColItem       = "PMM Item Number"
	ColAcct       = "Corp Acct"
	ColVendor     = "Vendor Code"
	ColCostCentre = "Additional Cost Centre"
	ColGL         = "Additional GL Account"
	ColUpdated    = "Item Update Date"
	ColContract   = "Contract No"
	ColCatalogue  = "Vendor Catalogue"
	ColSeq        = "Vendor Seq"
	ColVendorName = "Vendor Name"
	ColPrice      = "Purchase UOM Price"
	ColSource     = "Source_File"
)

// ItemPriceSchema returns the item-price schema.
func ItemPriceSchema() *table.Schema {
	return table.MustSchema(
		table.Column{Name: ColItem, Type: table.TypeString},
		table.Column{Name: ColAcct, Type: table.TypeString},
		table.Column{Name: ColVendor, Type: table.TypeString},
		table.Column{Name: ColCostCentre, Type: table.TypeString},
		table.Column{Name: ColGL, Type: table.TypeString},
		table.Column{Name: ColUpdated, Type: table.TypeDate},
		table.Column{Name: ColContract, Type: table.TypeString},
		table.Column{Name: ColCatalogue, Type: table.TypeString},
		table.Column{Name: ColSeq, Type: table.TypeInt},
		table.Column{Name: ColVendorName, Type: table.TypeString},
		table.Column{Name: ColPrice, Type: table.TypeDecimal},
		table.Column{Name: ColSource, Type: table.TypeString},
	)
}

// ItemPriceKeyColumns is the five-column business key.
var ItemPriceKeyColumns = []string{ColItem, ColAcct, ColVendor, ColCostCentre, ColGL}

// ItemPriceKey binds the business key to s.
func ItemPriceKey(s *table.Schema) *table.KeySpec {
	return table.MustKeySpec(s, ItemPriceKeyColumns...)
}

// ItemPriceValidation is the validation setup of the item-price table.
func ItemPriceValidation() validate.Config {
	return validate.Config{
		Contract:       ColContract,
		Vendor:         ColVendor,
		Catalogue:      ColCatalogue,
		Identity:       ColItem,
		Account:        ColAcct,
		AccountPrefix:  2,
		Sequence:       ColSeq,
		Require:        []string{ColSeq},
		ContractIgnore: []string{"N/A"},
	}
}

// ItemPriceSpec is the item-price table definition as the compiler
// would produce it from CUE.
func ItemPriceSpec() *compiler.TableSpec {
	s := ItemPriceSchema()
	cols := make([]compiler.ColumnSpec, s.Len())
	for i, c := range s.Columns() {
		cols[i] = compiler.ColumnSpec{Name: c.Name, Type: string(c.Type)}
	}
	vc := ItemPriceValidation()
	return &compiler.TableSpec{
		Name:       "item_price",
		Columns:    cols,
		Key:        append([]string(nil), ItemPriceKeyColumns...),
		Recency:    ColUpdated,
		Ignore:     []string{ColSource},
		Validation: &vc,
	}
}

// Item describes one item-price record by its text cells. Blank fields are
// blank cells.
type Item struct {
	Item, Acct, Vendor, CostCentre, GL string
	Updated                            string
	Contract, Catalogue, Seq           string
	VendorName, Price, Source          string
}

// ItemHeader is the extract header for Item records.
func ItemHeader() []string {
	return []string{
		ColItem, ColAcct, ColVendor, ColCostCentre, ColGL, ColUpdated,
		ColContract, ColCatalogue, ColSeq, ColVendorName, ColPrice, ColSource,
	}
}

// Record renders the item as an untyped extract record.
func (it Item) Record() []any {
	cells := []string{
		it.Item, it.Acct, it.Vendor, it.CostCentre, it.GL, it.Updated,
		it.Contract, it.Catalogue, it.Seq, it.VendorName, it.Price, it.Source,
	}
	out := make([]any, len(cells))
	for i, c := range cells {
		if c != "" {
			out[i] = c
		}
	}
	return out
}

// Row renders the item as a typed row of ItemPriceSchema. Values must be
// valid for their column types; dates use YYYY-MM-DD.
func (it Item) Row() table.Row {
	str := func(s string) table.Value {
		s = strings.TrimSpace(s)
		if s == "" {
			return table.Null{}
		}
		return table.String(s)
	}
	row := table.Row{
		str(it.Item), str(it.Acct), str(it.Vendor), str(it.CostCentre), str(it.GL),
		table.Null{},
		str(it.Contract), str(it.Catalogue), table.Null{}, str(it.VendorName), table.Null{},
		str(it.Source),
	}
	if it.Updated != "" {
		row[5] = table.MustDate(it.Updated)
	}
	if it.Seq != "" {
		row[8] = table.Int(decimal.RequireFromString(it.Seq).IntPart())
	}
	if it.Price != "" {
		row[10] = table.NewDecimal(decimal.RequireFromString(it.Price))
	}
	return row
}

// Baseline builds an item-price table from items.
func Baseline(items ...Item) *table.Table {
	s := ItemPriceSchema()
	rows := make([]table.Row, len(items))
	for i, it := range items {
		rows[i] = it.Row()
	}
	t, err := table.New(s, ItemPriceKey(s), rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Records renders items as extract records.
func Records(items ...Item) [][]any {
	out := make([][]any, len(items))
	for i, it := range items {
		out[i] = it.Record()
	}
	return out
}
