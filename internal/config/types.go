// internal/config/types.go

// Package config provides the YAML configuration for the patch-note
// extraction engine: engine limits, per-field selector chains, pattern
// definitions, task lists and the metrics endpoint.
package config

import (
	"time"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/pipeline"
)

// EngineConfig is the root configuration document
type EngineConfig struct {
	// Name identifies this configuration
	Name string `yaml:"name" json:"name"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Engine holds the engine-wide limits
	Engine EngineSettings `yaml:"engine" json:"engine"`

	// Selectors are the fallback chains per extracted field
	Selectors SelectorConfig `yaml:"selectors" json:"selectors"`

	// Keywords guard the document-wide fallbacks
	Keywords KeywordConfig `yaml:"keywords" json:"keywords"`

	// Images configures the image attribute accessor
	Images ImageConfig `yaml:"images" json:"images"`

	// Patterns are scored pattern definitions
	Patterns []PatternConfig `yaml:"patterns,omitempty" json:"patterns,omitempty"`

	// Tasks is a batch run by the extract command
	Tasks []TaskConfig `yaml:"tasks,omitempty" json:"tasks,omitempty"`

	// Analysis toggles the content analyzer parts
	Analysis AnalysisConfig `yaml:"analysis" json:"analysis"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// EngineSettings mirrors the engine limits. Zero values take defaults.
type EngineSettings struct {
	CacheTTL            time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	MaxSelectorAttempts int           `yaml:"max_selector_attempts" json:"max_selector_attempts"`
	StreamChunkSize     int           `yaml:"stream_chunk_size" json:"stream_chunk_size"`
	MaxConcurrentTasks  int           `yaml:"max_concurrent_tasks" json:"max_concurrent_tasks"`
	FingerprintLength   int           `yaml:"fingerprint_length" json:"fingerprint_length"`
	TaskRateLimit       float64       `yaml:"task_rate_limit" json:"task_rate_limit"`
	BaseURL             string        `yaml:"base_url" json:"base_url"`
	TitleFormat         string        `yaml:"title_format" json:"title_format"`

	// FallbackToDocument enables the document-wide search; nil means true
	FallbackToDocument *bool `yaml:"fallback_to_document,omitempty" json:"fallback_to_document,omitempty"`
}

// FallbackEnabled reports the effective fallback flag
func (s EngineSettings) FallbackEnabled() bool {
	return s.FallbackToDocument == nil || *s.FallbackToDocument
}

// SelectorConfig holds one chain per field. Container locates the article
// card the other chains are scoped to.
type SelectorConfig struct {
	Container []string `yaml:"container" json:"container"`
	Title     []string `yaml:"title" json:"title"`
	URL       []string `yaml:"url" json:"url"`
	Image     []string `yaml:"image" json:"image"`
}

// KeywordConfig lists the substrings document-wide fallbacks must contain
type KeywordConfig struct {
	URL   []string `yaml:"url" json:"url"`
	Image []string `yaml:"image" json:"image"`
}

// ImageConfig configures the two-phase image attribute accessor
type ImageConfig struct {
	Attribute         string   `yaml:"attribute" json:"attribute"`
	LazyAttributes    []string `yaml:"lazy_attributes" json:"lazy_attributes"`
	FallbackSelectors []string `yaml:"fallback_selectors" json:"fallback_selectors"`
	RequireExtension  bool     `yaml:"require_extension" json:"require_extension"`
	AllowedHosts      []string `yaml:"allowed_hosts,omitempty" json:"allowed_hosts,omitempty"`
}

// Validator strategies for PatternConfig
const (
	ValidatorNonEmpty    = "non_empty"
	ValidatorHasAttr     = "has_attr"
	ValidatorTextMatches = "text_matches"
	ValidatorMinLength   = "min_length"
)

// Transformer strategies for PatternConfig
const (
	TransformerText = "text"
	TransformerAttr = "attr"
	TransformerHTML = "html"
)

// PatternConfig declares a pattern. Validator and transformer are chosen
// from a closed set of strategies.
type PatternConfig struct {
	Name        string             `yaml:"name" json:"name"`
	Selectors   []string           `yaml:"selectors" json:"selectors"`
	Priority    int                `yaml:"priority" json:"priority"`
	Validator   *ValidatorConfig   `yaml:"validator,omitempty" json:"validator,omitempty"`
	Transformer *TransformerConfig `yaml:"transformer,omitempty" json:"transformer,omitempty"`
}

// ValidatorConfig selects a validator strategy
type ValidatorConfig struct {
	Type      string `yaml:"type" json:"type"`
	Attribute string `yaml:"attribute,omitempty" json:"attribute,omitempty"`
	Pattern   string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	MinLength int    `yaml:"min_length,omitempty" json:"min_length,omitempty"`
}

// TransformerConfig selects a transformer strategy; Transform is applied to
// the extracted string afterwards
type TransformerConfig struct {
	Type      string                 `yaml:"type" json:"type"`
	Attribute string                 `yaml:"attribute,omitempty" json:"attribute,omitempty"`
	Transform pipeline.TransformList `yaml:"transform,omitempty" json:"transform,omitempty"`
}

// TaskConfig declares one task of a batch
type TaskConfig struct {
	ID        string   `yaml:"id,omitempty" json:"id,omitempty"`
	Kind      string   `yaml:"kind" json:"kind"`
	Selectors []string `yaml:"selectors" json:"selectors"`
	Priority  int      `yaml:"priority" json:"priority"`
}

// AnalysisConfig toggles analyzer parts; nil means enabled
type AnalysisConfig struct {
	Counts      *bool `yaml:"counts,omitempty" json:"counts,omitempty"`
	Keywords    *bool `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Language    *bool `yaml:"language,omitempty" json:"language,omitempty"`
	Readability *bool `yaml:"readability,omitempty" json:"readability,omitempty"`
}

// MetricsConfig configures the Prometheus exporter
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Listen    string `yaml:"listen" json:"listen"`
	Namespace string `yaml:"namespace" json:"namespace"`
	Path      string `yaml:"path" json:"path"`
}

// Enabled reports the effective value of an optional flag
func Enabled(flag *bool) bool {
	return flag == nil || *flag
}
