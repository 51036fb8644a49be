package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is the tabular form every export flows through. Row maps are keyed
// by header name so column order lives in Headers alone.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders a Dataset as RFC 4180 CSV.
type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes the header row followed by one record per data row. Columns
// missing from a row come out empty.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("csv needs at least one column")
	}

	records := make([][]string, 0, len(data.Rows)+1)
	records = append(records, data.Headers)
	for _, row := range data.Rows {
		record := make([]string, len(data.Headers))
		for i, h := range data.Headers {
			record[i] = row[h]
		}
		records = append(records, record)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}
