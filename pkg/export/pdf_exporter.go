package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const landscapeColumns = 7

// PDFExporter renders tables into a basic PDF, one titled block per table.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title followed by each table.
func (e *PDFExporter) Render(title string, tables ...Table) ([]byte, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("pdf requires at least one table")
	}
	widest := 0
	for _, table := range tables {
		if err := table.validate(); err != nil {
			return nil, err
		}
		if len(table.Headers) > widest {
			widest = len(table.Headers)
		}
	}

	orientation, pageWidth := "P", 190.0
	if widest >= landscapeColumns {
		orientation, pageWidth = "L", 277.0
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(title)), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	for i, table := range tables {
		if i > 0 {
			pdf.Ln(6)
		}
		if table.Name != "" {
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(0, 8, tr(table.Name), "", 1, "L", false, 0, "")
		}

		colWidth := pageWidth / float64(len(table.Headers))
		pdf.SetFont("Arial", "B", 9)
		for _, header := range table.Headers {
			pdf.CellFormat(colWidth, 8, tr(header), "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 8)
		for _, row := range table.Rows {
			for _, cell := range row {
				pdf.CellFormat(colWidth, 7, tr(cell), "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
