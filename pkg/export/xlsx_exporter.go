package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct {
	sheet string
}

// NewXLSXExporter constructs an exporter writing to the named sheet.
func NewXLSXExporter(sheet string) *XLSXExporter {
	if sheet == "" {
		sheet = "Sheet1"
	}
	return &XLSXExporter{sheet: sheet}
}

// Render produces the workbook bytes with a bold header row.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", e.sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerCells := make([]interface{}, len(data.Headers))
	for i, h := range data.Headers {
		headerCells[i] = h
	}
	if err := f.SetSheetRow(e.sheet, "A1", &headerCells); err != nil {
		return nil, fmt.Errorf("write xlsx headers: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(data.Headers), 1)
	if err != nil {
		return nil, fmt.Errorf("resolve header range: %w", err)
	}
	if err := f.SetCellStyle(e.sheet, "A1", lastHeader, bold); err != nil {
		return nil, fmt.Errorf("style xlsx headers: %w", err)
	}

	for i, record := range data.Records() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("resolve row cell: %w", err)
		}
		values := make([]interface{}, len(record))
		for j, v := range record {
			values[j] = v
		}
		if err := f.SetSheetRow(e.sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
