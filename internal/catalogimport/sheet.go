// Package catalogimport reads supplier spreadsheets into import rows and
// writes the catalog back out as a spreadsheet.
package catalogimport

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
)

var (
	ErrEmptySheet    = errors.New("spreadsheet is empty or missing header row")
	ErrMissingColumn = errors.New("spreadsheet is missing a required column")
	ErrUnreadable    = errors.New("file is not a readable xlsx spreadsheet")
)

// Columns of the import sheet. Header cells are matched case-insensitively
// and may appear in any order.
const (
	ColName         = "name"
	ColDescription  = "description"
	ColCostPrice    = "cost_price"
	ColSellingPrice = "selling_price"
	ColQuantity     = "quantity"
	ColCategorySlug = "category_slug"
	ColSupplier     = "supplier"
)

var requiredColumns = []string{ColName, ColCostPrice}

// Row is one valid line of the sheet.
type Row struct {
	Line         int
	Name         string
	Description  string
	CostPrice    decimal.Decimal
	SellingPrice decimal.NullDecimal
	Quantity     int
	CategorySlug string
	Supplier     string
}

type Result struct {
	Rows    []Row
	Skipped int
}

// Read parses the first sheet of an .xlsx workbook. Lines without a name,
// with an unparsable price or with a negative quantity are counted as
// skipped rather than failing the whole import.
func Read(r io.ReaderAt, size int64) (*Result, error) {
	file, err := xlsx.OpenReaderAt(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if len(file.Sheets) == 0 || len(file.Sheets[0].Rows) < 1 {
		return nil, ErrEmptySheet
	}

	sheet := file.Sheets[0]
	header := map[string]int{}
	for i, cell := range sheet.Rows[0].Cells {
		header[strings.ToLower(strings.TrimSpace(cell.String()))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	res := &Result{}
	for i := 1; i < len(sheet.Rows); i++ {
		row := sheet.Rows[i]
		if row == nil {
			continue
		}

		get := func(col string) string {
			idx, ok := header[col]
			if !ok || idx >= len(row.Cells) {
				return ""
			}
			return strings.TrimSpace(row.Cells[idx].String())
		}

		if isBlank(row) {
			continue
		}

		parsed, ok := parseRow(i+1, get)
		if !ok {
			res.Skipped++
			continue
		}
		res.Rows = append(res.Rows, parsed)
	}

	return res, nil
}

func parseRow(line int, get func(string) string) (Row, bool) {
	out := Row{
		Line:         line,
		Name:         get(ColName),
		Description:  get(ColDescription),
		CategorySlug: strings.ToLower(get(ColCategorySlug)),
		Supplier:     get(ColSupplier),
		Quantity:     1,
	}
	if out.Name == "" {
		return out, false
	}

	cost, err := decimal.NewFromString(get(ColCostPrice))
	if err != nil || cost.IsNegative() {
		return out, false
	}
	out.CostPrice = cost.Round(2)

	if raw := get(ColSellingPrice); raw != "" {
		selling, err := decimal.NewFromString(raw)
		if err != nil || selling.IsNegative() {
			return out, false
		}
		out.SellingPrice = decimal.NewNullDecimal(selling.Round(2))
	}

	if raw := get(ColQuantity); raw != "" {
		// Spreadsheet apps store whole numbers as floats.
		qty, err := strconv.ParseFloat(raw, 64)
		if err != nil || qty < 0 || qty != float64(int(qty)) {
			return out, false
		}
		out.Quantity = int(qty)
	}

	return out, true
}

func isBlank(row *xlsx.Row) bool {
	for _, cell := range row.Cells {
		if strings.TrimSpace(cell.String()) != "" {
			return false
		}
	}
	return true
}

// Imported turns the row into the import record; slug and links are filled
// in by the caller.
func (r Row) Imported() models.ImportedProduct {
	return models.ImportedProduct{
		Name:             r.Name,
		Description:      r.Description,
		CostPrice:        r.CostPrice,
		SellingPrice:     r.SellingPrice,
		Supplier:         r.Supplier,
		QuantityImported: r.Quantity,
	}
}

var exportHeader = []string{"id", "name", "slug", "category_id", "price", "sale_price", "stock", "available", "featured"}

// Write renders products as a single-sheet workbook.
func Write(w io.Writer, products []models.Product) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().SetValue(h)
	}

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetValue(p.ID)
		row.AddCell().SetValue(p.Name)
		row.AddCell().SetValue(p.Slug)
		row.AddCell().SetValue(p.CategoryID)
		row.AddCell().SetString(p.Price.StringFixed(2))
		if p.SalePrice.Valid {
			row.AddCell().SetString(p.SalePrice.Decimal.StringFixed(2))
		} else {
			row.AddCell().SetString("")
		}
		row.AddCell().SetValue(p.Stock)
		row.AddCell().SetBool(p.Available)
		row.AddCell().SetBool(p.Featured)
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write spreadsheet: %w", err)
	}
	return nil
}
