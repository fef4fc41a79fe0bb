package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table defines tabular export content with ordered columns.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// CSVExporter renders a Table into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the table.
func (e *CSVExporter) Render(table Table) ([]byte, error) {
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("csv requires at least one column")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(table.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range table.Rows {
		record := make([]string, len(table.Columns))
		copy(record, row)
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
