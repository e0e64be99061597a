// internal/scraper/types.go
package scraper

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Common errors
var (
	ErrEmptySelectorChain = errors.New("selector chain cannot be empty")
	ErrEmptySelector      = errors.New("selector cannot be empty")
	ErrNilDocument        = errors.New("document cannot be nil")
	ErrNilScope           = errors.New("search scope has no selection")
	ErrUnknownTaskKind    = errors.New("unknown task kind")
	ErrStreamClosed       = errors.New("stream is closed")
)

// Defaults applied when a Config field is left zero
const (
	DefaultCacheTTL            = 5 * time.Minute
	DefaultMaxSelectorAttempts = 10
	DefaultStreamChunkSize     = 64 * 1024
	DefaultMaxConcurrentTasks  = 4
	DefaultFingerprintLength   = 512
	DefaultTitleFormat         = "Patch %s"
)

// SelectorChain is an ordered list of selectors; earlier entries win.
// Entries starting with "xpath:", "/" or "./" are evaluated as XPath,
// everything else as CSS.
type SelectorChain []string

// Validate reports ErrEmptySelectorChain for an empty chain and
// ErrEmptySelector for a blank entry
func (c SelectorChain) Validate() error {
	if len(c) == 0 {
		return ErrEmptySelectorChain
	}
	for i, s := range c {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("selector %d: %w", i, ErrEmptySelector)
		}
	}
	return nil
}

// ScopeKind distinguishes a container subtree from the whole document
type ScopeKind int

const (
	ScopeContainer ScopeKind = iota
	ScopeDocument
)

// String returns the scope kind name
func (k ScopeKind) String() string {
	if k == ScopeDocument {
		return "document"
	}
	return "container"
}

// SearchScope is where a selector chain is evaluated. Document is the owner
// used when a container search widens to the whole document.
type SearchScope struct {
	Selection *goquery.Selection
	Document  *Document
	Kind      ScopeKind
}

// Outcome is the result of every resolve and extract operation. Absence is
// reported with Success=false and an empty Error; Error carries per-operation
// failure detail such as a validator rejection.
type Outcome[T any] struct {
	Success      bool          `json:"success"`
	Value        T             `json:"value"`
	SelectorUsed string        `json:"selector_used,omitempty"`
	UsedFallback bool          `json:"used_fallback"`
	Attempts     int           `json:"attempts"`
	Count        int           `json:"count,omitempty"`
	ElapsedTime  time.Duration `json:"elapsed_time"`
	Error        string        `json:"error,omitempty"`
	// Degraded marks a successful value that was synthesized rather than found
	Degraded bool `json:"degraded,omitempty"`
}

// ResolveOptions bounds a single resolve call
type ResolveOptions struct {
	// MaxAttempts caps how many selectors of the chain are tried; <= 0 uses
	// Config.MaxSelectorAttempts
	MaxAttempts int
	// FallbackToDocument widens a failed container search to the whole
	// document as one extra attempt
	FallbackToDocument bool
}

// PatternSpec names a set of selectors whose matches are scored together.
// Validator and Transformer are optional.
type PatternSpec struct {
	Name        string
	Selectors   []string
	Priority    int
	Validator   func(*goquery.Selection) bool
	Transformer func(*goquery.Selection) any
}

// Position approximates where an element sits: X counts preceding siblings,
// Y counts ancestors
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MatchedValue is one scored element of a pattern
type MatchedValue struct {
	Value           any      `json:"value"`
	ConfidenceScore float64  `json:"confidence_score"`
	Position        Position `json:"position"`
	Selector        string   `json:"selector"`
}

// PatternMatch groups the matches of one pattern
type PatternMatch struct {
	PatternName  string         `json:"pattern_name"`
	Matches      []MatchedValue `json:"matches"`
	TotalMatches int            `json:"total_matches"`
	ElapsedTime  time.Duration  `json:"elapsed_time"`
}

// TaskKind selects the handler a Task is dispatched to
type TaskKind string

const (
	TaskExtract TaskKind = "extract"
	TaskSearch  TaskKind = "search"
	TaskAnalyze TaskKind = "analyze"
)

// Valid reports whether k is one of the known kinds
func (k TaskKind) Valid() bool {
	switch k {
	case TaskExtract, TaskSearch, TaskAnalyze:
		return true
	}
	return false
}

// Task is a single unit of work for RunBatch
type Task struct {
	ID        string        `json:"id"`
	Kind      TaskKind      `json:"kind"`
	Selectors SelectorChain `json:"selectors"`
	Priority  int           `json:"priority"`
}

// TaskOutcome is the result of one task. Batch is the zero-based index of the
// batch the task ran in, -1 if it never started.
type TaskOutcome struct {
	TaskID string   `json:"task_id"`
	Kind   TaskKind `json:"kind"`
	Batch  int      `json:"batch"`
	Outcome[any]
}

// SearchResult is the value of a TaskSearch outcome
type SearchResult struct {
	Found       bool           `json:"found"`
	Total       int            `json:"total"`
	PerSelector map[string]int `json:"per_selector"`
}

// StructureResult is the value of a TaskAnalyze outcome
type StructureResult struct {
	Elements   int            `json:"elements"`
	TagCounts  map[string]int `json:"tag_counts"`
	MaxDepth   int            `json:"max_depth"`
	ChildCount int            `json:"child_count"`
	Attributes map[string]int `json:"attributes"`
}

// ChunkOutcome is yielded once per streamed chunk
type ChunkOutcome struct {
	Outcome[*goquery.Selection]
	Offset  int  `json:"offset"`
	Size    int  `json:"size"`
	IsFinal bool `json:"is_final"`
}

// StreamOptions tunes a single StreamExtract call
type StreamOptions struct {
	// ChunkSize in bytes; <= 0 uses Config.StreamChunkSize
	ChunkSize int
	// ContentType, when set, decodes the stream to UTF-8 using its charset
	ContentType string
	// MaxAttempts is passed to each per-chunk resolve
	MaxAttempts int
}

// AnalysisOptions toggles the sub-analyses of Analyze
type AnalysisOptions struct {
	Counts      bool `yaml:"counts" json:"counts"`
	Keywords    bool `yaml:"keywords" json:"keywords"`
	Language    bool `yaml:"language" json:"language"`
	Readability bool `yaml:"readability" json:"readability"`
}

// AllAnalyses enables every sub-analysis
func AllAnalyses() AnalysisOptions {
	return AnalysisOptions{Counts: true, Keywords: true, Language: true, Readability: true}
}

// ContentAnalysis holds the enabled sub-analyses; disabled ones stay nil
type ContentAnalysis struct {
	Counts      *ContentCounts     `json:"counts,omitempty"`
	Keywords    []KeywordFrequency `json:"keywords,omitempty"`
	Language    *LanguageGuess     `json:"language,omitempty"`
	Readability *ReadabilityScore  `json:"readability,omitempty"`
	ElapsedTime time.Duration      `json:"elapsed_time"`
}

// ContentCounts are direct traversal counts
type ContentCounts struct {
	Words      int `json:"words"`
	Characters int `json:"characters"`
	Paragraphs int `json:"paragraphs"`
	Headings   int `json:"headings"`
	Links      int `json:"links"`
	Images     int `json:"images"`
}

// KeywordFrequency is one ranked keyword
type KeywordFrequency struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// LanguageGuess is the script-ratio language classification
type LanguageGuess struct {
	Tag      string  `json:"tag"`
	CJKRatio float64 `json:"cjk_ratio"`
}

// ReadabilityScore is a simplified reading-ease score
type ReadabilityScore struct {
	Score              float64 `json:"score"`
	Level              string  `json:"level"`
	Sentences          int     `json:"sentences"`
	Words              int     `json:"words"`
	Syllables          int     `json:"syllables"`
	MeanSentenceLength float64 `json:"mean_sentence_length"`
	StdSentenceLength  float64 `json:"std_sentence_length"`
}

// Config holds engine-wide settings. Zero values fall back to the defaults
// above, see applyDefaults.
type Config struct {
	CacheTTL            time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	MaxSelectorAttempts int           `yaml:"max_selector_attempts" json:"max_selector_attempts"`
	StreamChunkSize     int           `yaml:"stream_chunk_size" json:"stream_chunk_size"`
	MaxConcurrentTasks  int           `yaml:"max_concurrent_tasks" json:"max_concurrent_tasks"`
	FingerprintLength   int           `yaml:"fingerprint_length" json:"fingerprint_length"`
	// TaskRateLimit paces task launches in tasks per second; 0 disables pacing
	TaskRateLimit float64 `yaml:"task_rate_limit" json:"task_rate_limit"`

	BaseURL            string `yaml:"base_url" json:"base_url"`
	FallbackToDocument bool   `yaml:"fallback_to_document" json:"fallback_to_document"`

	TitleFormat         string   `yaml:"title_format" json:"title_format"`
	URLKeywords         []string `yaml:"url_keywords" json:"url_keywords"`
	ImageKeywords       []string `yaml:"image_keywords" json:"image_keywords"`
	ImageAttribute      string   `yaml:"image_attribute" json:"image_attribute"`
	LazyImageAttributes []string `yaml:"lazy_image_attributes" json:"lazy_image_attributes"`
	FallbackImageChain  []string `yaml:"fallback_image_selectors" json:"fallback_image_selectors"`
}

// DefaultConfig returns a Config with every default filled in
func DefaultConfig() Config {
	cfg := Config{FallbackToDocument: true}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.MaxSelectorAttempts <= 0 {
		c.MaxSelectorAttempts = DefaultMaxSelectorAttempts
	}
	if c.StreamChunkSize <= 0 {
		c.StreamChunkSize = DefaultStreamChunkSize
	}
	if c.MaxConcurrentTasks <= 0 {
		c.MaxConcurrentTasks = DefaultMaxConcurrentTasks
	}
	if c.FingerprintLength <= 0 {
		c.FingerprintLength = DefaultFingerprintLength
	}
	if c.TitleFormat == "" {
		c.TitleFormat = DefaultTitleFormat
	}
	if len(c.URLKeywords) == 0 {
		c.URLKeywords = []string{"patch"}
	}
	if len(c.ImageKeywords) == 0 {
		c.ImageKeywords = []string{"patch", "banner", "hero", "splash"}
	}
	if c.ImageAttribute == "" {
		c.ImageAttribute = "src"
	}
	if len(c.LazyImageAttributes) == 0 {
		c.LazyImageAttributes = []string{"data-src", "data-lazy-src", "data-original"}
	}
	if len(c.FallbackImageChain) == 0 {
		c.FallbackImageChain = []string{"img"}
	}
}

// Validate checks the configuration for values that cannot be defaulted
func (c *Config) Validate() error {
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must be non-negative, got %v", c.CacheTTL)
	}
	if c.MaxSelectorAttempts < 0 {
		return fmt.Errorf("max_selector_attempts must be non-negative, got %d", c.MaxSelectorAttempts)
	}
	if c.StreamChunkSize < 0 {
		return fmt.Errorf("stream_chunk_size must be non-negative, got %d", c.StreamChunkSize)
	}
	if c.MaxConcurrentTasks < 0 {
		return fmt.Errorf("max_concurrent_tasks must be non-negative, got %d", c.MaxConcurrentTasks)
	}
	if c.MaxConcurrentTasks > 1000 {
		return fmt.Errorf("max_concurrent_tasks exceeds reasonable limit of 1000, got %d", c.MaxConcurrentTasks)
	}
	if c.TaskRateLimit < 0 {
		return fmt.Errorf("task_rate_limit must be non-negative, got %v", c.TaskRateLimit)
	}
	if c.TitleFormat != "" && strings.Count(c.TitleFormat, "%s") != 1 {
		return fmt.Errorf("title_format must contain exactly one %%s verb, got %q", c.TitleFormat)
	}
	return nil
}
