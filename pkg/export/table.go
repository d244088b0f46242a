// Package export renders tabular data as CSV, PDF or XLSX documents.
package export

import "fmt"

// Table is one named grid of string cells. Every row has len(Headers) cells.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
}

func (t Table) validate() error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("table %q requires at least one header", t.Name)
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return fmt.Errorf("table %q row %d has %d cells, want %d", t.Name, i+1, len(row), len(t.Headers))
		}
	}
	return nil
}
