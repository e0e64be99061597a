// internal/output/csv.go
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVWriter writes Tabular values as delimited rows with a header
type CSVWriter struct {
	writer *csv.Writer
}

// NewCSVWriter creates a comma-separated writer
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{writer: csv.NewWriter(w)}
}

// NewTSVWriter creates a tab-separated writer
func NewTSVWriter(w io.Writer) *CSVWriter {
	writer := csv.NewWriter(w)
	writer.Comma = '\t'
	return &CSVWriter{writer: writer}
}

// Write writes the header and one row per record. v must implement Tabular.
func (w *CSVWriter) Write(v interface{}) error {
	table, ok := v.(Tabular)
	if !ok {
		return fmt.Errorf("value of type %T cannot be written as rows", v)
	}

	fields := table.Columns()
	if err := w.writer.Write(fields); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, row := range table.Records() {
		record := make([]string, 0, len(fields))
		for _, field := range fields {
			record = append(record, formatCell(row[field]))
		}
		if err := w.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	w.writer.Flush()
	return w.writer.Error()
}

// Flush flushes any buffered data to the underlying writer
func (w *CSVWriter) Flush() error {
	w.writer.Flush()
	return w.writer.Error()
}

func formatCell(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, "; ")
	default:
		return fmt.Sprintf("%v", v)
	}
}
