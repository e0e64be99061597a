// internal/output/json.go
package output

import (
	"encoding/json"
	"io"
)

// JSONWriter writes indented JSON documents
type JSONWriter struct {
	encoder *json.Encoder
}

// NewJSONWriter creates a new JSON writer
func NewJSONWriter(w io.Writer) *JSONWriter {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return &JSONWriter{encoder: encoder}
}

// Write encodes v followed by a newline
func (w *JSONWriter) Write(v interface{}) error {
	return w.encoder.Encode(v)
}

// Flush is a no-op; every document is written as it is encoded
func (w *JSONWriter) Flush() error {
	return nil
}
