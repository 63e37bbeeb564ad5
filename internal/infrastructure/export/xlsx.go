// Package export renders stored price history as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/msrptw/backend/internal/domain"
)

// SheetName is the worksheet price rows are written to
const SheetName = "prices"

// Headers are the column titles of the price sheet
var Headers = []string{"date", "source", "category", "part", "product", "origin", "weight", "unit", "count", "price"}

// WriteXLSX writes rows as a single-sheet workbook
func WriteXLSX(w io.Writer, rows []domain.PriceRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(Headers), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range rows {
		var weight interface{}
		if row.Weight != nil {
			weight = *row.Weight
		}
		values := []interface{}{
			row.Date.Format(domain.DateLayout),
			row.Source,
			row.Category,
			row.Part,
			row.Product,
			string(row.Origin),
			weight,
			string(row.Unit),
			row.Count,
			row.Price.InexactFloat64(),
		}

		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	for i := range Headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(SheetName, col, col, 14)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
