// internal/output/types.go

// Package output renders extraction reports as JSON, YAML or delimited text.
package output

import (
	"fmt"
	"strings"
)

// OutputFormat represents supported output formats
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
	FormatCSV  OutputFormat = "csv"
	FormatTSV  OutputFormat = "tsv"
)

// ValidOutputFormats returns all valid output format values
func ValidOutputFormats() []OutputFormat {
	return []OutputFormat{FormatJSON, FormatYAML, FormatCSV, FormatTSV}
}

// ParseFormat accepts a format name in any case; "yml" is an alias for yaml
func ParseFormat(s string) (OutputFormat, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "yml" {
		name = string(FormatYAML)
	}
	for _, f := range ValidOutputFormats() {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format %q (want json, yaml, csv or tsv)", s)
}

// Tabular reports whether the format writes rows rather than documents
func (f OutputFormat) Tabular() bool {
	return f == FormatCSV || f == FormatTSV
}

// Config selects a format and destination. An empty File or "-" means the
// manager's default writer, usually standard output.
type Config struct {
	Format OutputFormat `yaml:"format" json:"format"`
	File   string       `yaml:"file,omitempty" json:"file,omitempty"`
}

// Tabular is implemented by values that flatten to rows for CSV and TSV
type Tabular interface {
	Columns() []string
	Records() []map[string]interface{}
}

// Writer renders one value
type Writer interface {
	Write(v interface{}) error
	Flush() error
}
