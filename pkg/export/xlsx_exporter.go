package export

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// XLSXExporter renders tables into a workbook, one sheet per table.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes each table to its own sheet. Numeric cells are stored as numbers.
func (e *XLSXExporter) Render(tables ...Table) ([]byte, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one table")
	}
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, table := range tables {
		if err := table.validate(); err != nil {
			return nil, err
		}
		sheet := sheetName(table.Name, i)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
		}

		for col, header := range table.Headers {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			if err := f.SetCellValue(sheet, cell, header); err != nil {
				return nil, fmt.Errorf("write header: %w", err)
			}
		}
		last, _ := excelize.CoordinatesToCellName(len(table.Headers), 1)
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return nil, fmt.Errorf("style header: %w", err)
		}

		for r, row := range table.Rows {
			for col, value := range row {
				cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
				if err := f.SetCellValue(sheet, cell, cellValue(value)); err != nil {
					return nil, fmt.Errorf("write cell %s: %w", cell, err)
				}
			}
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func sheetName(name string, index int) string {
	if name == "" {
		return fmt.Sprintf("Sheet%d", index+1)
	}
	runes := []rune(name)
	if len(runes) > maxSheetName {
		runes = runes[:maxSheetName]
	}
	return string(runes)
}

func cellValue(raw string) interface{} {
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	return raw
}
