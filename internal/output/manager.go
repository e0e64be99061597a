// internal/output/manager.go
package output

import (
	"fmt"
	"io"
	"os"
)

// Manager writes values in the configured format to a file or to a default
// writer
type Manager struct {
	config Config
	stdout io.Writer
}

// NewManager creates a new output manager. stdout receives output when the
// configuration names no file.
func NewManager(cfg Config, stdout io.Writer) (*Manager, error) {
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	if _, err := ParseFormat(string(cfg.Format)); err != nil {
		return nil, err
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Manager{config: cfg, stdout: stdout}, nil
}

// Format returns the configured format
func (m *Manager) Format() OutputFormat {
	return m.config.Format
}

// GetWriter returns the appropriate writer for the configured format
func (m *Manager) GetWriter(w io.Writer) (Writer, error) {
	switch m.config.Format {
	case FormatJSON:
		return NewJSONWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	case FormatCSV:
		return NewCSVWriter(w), nil
	case FormatTSV:
		return NewTSVWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", m.config.Format)
	}
}

// Write renders v to the configured destination. A file is replaced.
func (m *Manager) Write(v interface{}) (err error) {
	dest := m.stdout
	if m.config.File != "" && m.config.File != "-" {
		file, err := os.Create(m.config.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if cerr := file.Close(); err == nil {
				err = cerr
			}
		}()
		dest = file
	}

	writer, err := m.GetWriter(dest)
	if err != nil {
		return fmt.Errorf("failed to get writer: %w", err)
	}
	if err := writer.Write(v); err != nil {
		return err
	}
	return writer.Flush()
}
