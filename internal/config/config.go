// internal/config/config.go
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied by applyDefaults
const (
	DefaultLogLevel         = "info"
	DefaultMetricsListen    = ":9090"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "patchextract"
)

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) (*EngineConfig, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", filename)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes
func LoadFromBytes(data []byte) (*EngineConfig, error) {
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and applies defaults without validating, so callers can
// report every problem through ValidateWithDetails
func Parse(data []byte) (*EngineConfig, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("configuration data cannot be empty")
	}

	expanded := expandEnvironmentVariables(string(data))

	var cfg EngineConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadFromReader loads configuration from an io.Reader
func LoadFromReader(reader io.Reader) (*EngineConfig, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from reader: %w", err)
	}

	return LoadFromBytes(data)
}

// SaveToWriter writes cfg as YAML
func SaveToWriter(cfg *EngineConfig, writer io.Writer) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if writer == nil {
		return fmt.Errorf("writer cannot be nil")
	}

	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	return encoder.Close()
}

// Default returns a configuration with League of Legends patch-note
// selectors, ready to use without a file
func Default() *EngineConfig {
	cfg := &EngineConfig{
		Name: "patch-notes",
		Selectors: SelectorConfig{
			Container: []string{
				"a[href*='patch-notes']",
				"article",
				"[data-testid='article-card']",
			},
			Title: []string{
				"[data-testid='card-title']",
				"h2",
				"h3",
				".title",
			},
			URL: []string{
				"a[href*='patch']",
				"a[href]",
			},
			Image: []string{
				"[data-testid='article-card-image'] img",
				"img",
			},
		},
	}
	applyDefaults(cfg)
	return cfg
}

// expandEnvironmentVariables substitutes ${VAR} and $VAR references
func expandEnvironmentVariables(content string) string {
	return os.ExpandEnv(content)
}

// applyDefaults fills the fields whose zero value is not meaningful. Engine
// limits are left zero; the engine applies its own defaults to them.
func applyDefaults(cfg *EngineConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if len(cfg.Keywords.URL) == 0 {
		cfg.Keywords.URL = []string{"patch"}
	}
	if len(cfg.Keywords.Image) == 0 {
		cfg.Keywords.Image = []string{"patch", "banner", "hero", "splash"}
	}

	if cfg.Images.Attribute == "" {
		cfg.Images.Attribute = "src"
	}
	if len(cfg.Images.LazyAttributes) == 0 {
		cfg.Images.LazyAttributes = []string{"data-src", "data-lazy-src", "data-original"}
	}
	if len(cfg.Images.FallbackSelectors) == 0 {
		cfg.Images.FallbackSelectors = []string{"img"}
	}

	for i := range cfg.Patterns {
		if cfg.Patterns[i].Transformer == nil {
			cfg.Patterns[i].Transformer = &TransformerConfig{Type: TransformerText}
		} else if cfg.Patterns[i].Transformer.Type == "" {
			cfg.Patterns[i].Transformer.Type = TransformerText
		}
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
