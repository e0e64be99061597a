// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

const sampleYAML = `
name: "lol-patches"
log_level: debug
engine:
  cache_ttl: 2m
  max_selector_attempts: 5
  max_concurrent_tasks: 2
  base_url: "https://www.leagueoflegends.com"
selectors:
  container: ["a[href*='patch-notes']"]
  title: ["[data-testid='card-title']", "h2"]
  url: ["a[href]"]
  image: ["img"]
patterns:
  - name: headings
    selectors: ["h2", "h3"]
    priority: 2
    validator:
      type: min_length
      min_length: 3
    transformer:
      transform:
        - type: trim
        - type: lowercase
  - name: links
    selectors: ["xpath://a[@href]"]
    priority: 1
    transformer:
      type: attr
      attribute: href
tasks:
  - id: titles
    kind: extract
    selectors: ["h2"]
  - kind: analyze
`

func TestLoadFromBytes(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	if cfg.Name != "lol-patches" {
		t.Errorf("expected name 'lol-patches', got %q", cfg.Name)
	}
	if cfg.Engine.CacheTTL != 2*time.Minute {
		t.Errorf("expected cache_ttl 2m, got %v", cfg.Engine.CacheTTL)
	}
	if !cfg.Engine.FallbackEnabled() {
		t.Error("fallback should default to enabled")
	}
	if len(cfg.Patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(cfg.Patterns))
	}
	if got := cfg.Patterns[0].Transformer.Type; got != TransformerText {
		t.Errorf("expected default transformer %q, got %q", TransformerText, got)
	}
	if len(cfg.Patterns[0].Transformer.Transform) != 2 {
		t.Errorf("expected 2 transform rules, got %d", len(cfg.Patterns[0].Transformer.Transform))
	}
	if cfg.Images.Attribute != "src" {
		t.Errorf("expected default image attribute src, got %q", cfg.Images.Attribute)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("expected default metrics path, got %q", cfg.Metrics.Path)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if len(cfg.Tasks) != 2 {
		t.Errorf("expected 2 tasks, got %d", len(cfg.Tasks))
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadFromFile(""); err == nil {
		t.Error("expected error for empty filename")
	}
}

func TestLoadFromReader(t *testing.T) {
	if _, err := LoadFromReader(nil); err == nil {
		t.Error("expected error for nil reader")
	}
	cfg, err := LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.LogLevel)
	}
}

func TestEnvironmentExpansion(t *testing.T) {
	t.Setenv("PATCH_BASE_URL", "https://example.com")
	cfg, err := LoadFromBytes([]byte("engine:\n  base_url: ${PATCH_BASE_URL}\n"))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}
	if cfg.Engine.BaseURL != "https://example.com" {
		t.Errorf("expected expanded base URL, got %q", cfg.Engine.BaseURL)
	}
}

func TestLoadFromBytesErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty", "   \n", "cannot be empty"},
		{"malformed", "engine: [", "failed to parse"},
		{"negative attempts", "engine:\n  max_selector_attempts: -1\n", "engine.max_selector_attempts"},
		{"too many tasks", "engine:\n  max_concurrent_tasks: 5000\n", "limit of 1000"},
		{"relative base", "engine:\n  base_url: /news\n", "engine.base_url"},
		{"title format", "engine:\n  title_format: Patch\n", "engine.title_format"},
		{"bad log level", "log_level: loud\n", "log_level"},
		{"bad css", "selectors:\n  title: ['h2[']\n", "selectors.title[0]"},
		{"bad xpath", "selectors:\n  title: ['xpath://div[']\n", "invalid xpath"},
		{"unnamed pattern", "patterns:\n  - selectors: [h2]\n", "pattern name is required"},
		{"duplicate pattern", "patterns:\n  - name: a\n    selectors: [h2]\n  - name: a\n    selectors: [h3]\n", "duplicate pattern name"},
		{"unknown validator", "patterns:\n  - name: a\n    selectors: [h2]\n    validator: {type: magic}\n", "unknown validator type"},
		{"has_attr without attribute", "patterns:\n  - name: a\n    selectors: [h2]\n    validator: {type: has_attr}\n", "attribute is required"},
		{"bad text pattern", "patterns:\n  - name: a\n    selectors: [h2]\n    validator: {type: text_matches, pattern: '('}\n", "text_matches"},
		{"bad transform", "patterns:\n  - name: a\n    selectors: [h2]\n    transformer:\n      transform: [{type: explode}]\n", "transform rule 0"},
		{"unknown task kind", "tasks:\n  - kind: render\n    selectors: [h2]\n", "kind must be one of"},
		{"task without selectors", "tasks:\n  - kind: search\n", "tasks[0].selectors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseSkipsValidation(t *testing.T) {
	cfg, err := Parse([]byte("engine:\n  max_selector_attempts: -1\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Images.Attribute != "src" {
		t.Errorf("expected defaults applied, got attribute %q", cfg.Images.Attribute)
	}

	result := cfg.ValidateWithDetails()
	if result.Valid || len(result.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %v", result.Errors)
	}
	if result.Errors[0].Field != "engine.max_selector_attempts" {
		t.Errorf("unexpected field %q", result.Errors[0].Field)
	}
	if result.Errors[0].Code != string(utils.ErrCodeInvalidConfig) {
		t.Errorf("unexpected code %q", result.Errors[0].Code)
	}
}

func TestValidationCode(t *testing.T) {
	cfg := Default()
	cfg.Engine.StreamChunkSize = -5
	err := cfg.Validate()
	if !utils.HasCode(err, utils.ErrCodeInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestValidateWithDetailsWarnings(t *testing.T) {
	cfg := Default()
	cfg.Engine.BaseURL = "http://example.com"
	cfg.Engine.StreamChunkSize = 256

	result := cfg.ValidateWithDetails()
	if !result.Valid {
		t.Fatalf("expected valid config, got %v", result.Errors)
	}
	if len(result.Warnings) < 2 {
		t.Errorf("expected warnings for http and small chunks, got %v", result.Warnings)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
}

func TestSaveToWriterRoundTrip(t *testing.T) {
	var b strings.Builder
	if err := SaveToWriter(Default(), &b); err != nil {
		t.Fatalf("SaveToWriter failed: %v", err)
	}
	cfg, err := LoadFromBytes([]byte(b.String()))
	if err != nil {
		t.Fatalf("reloading saved config failed: %v", err)
	}
	if len(cfg.Selectors.Title) != len(Default().Selectors.Title) {
		t.Errorf("title chain changed across save/load")
	}
}

func TestValidateSelector(t *testing.T) {
	valid := []string{"h2", "a[href*='patch']", "div > p.note", "//a[@href]", "./span", "xpath://img"}
	for _, s := range valid {
		if err := ValidateSelector(s); err != nil {
			t.Errorf("ValidateSelector(%q) = %v, want nil", s, err)
		}
	}
	invalid := []string{"", "   ", "h2[", "//a[", "div{color:expression(alert(1))}"}
	for _, s := range invalid {
		if err := ValidateSelector(s); err == nil {
			t.Errorf("ValidateSelector(%q) = nil, want error", s)
		}
	}
}

func TestConfigWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	watcher, err := NewConfigWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewConfigWatcher failed: %v", err)
	}
	defer watcher.Close()

	var mu sync.Mutex
	var reloaded *EngineConfig
	done := make(chan struct{}, 1)
	watcher.OnChange(func(cfg *EngineConfig, err error) {
		if err != nil {
			return
		}
		mu.Lock()
		reloaded = cfg
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	})

	updated := strings.Replace(sampleYAML, `name: "lol-patches"`, `name: "reloaded"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	mu.Lock()
	defer mu.Unlock()
	if reloaded.Name != "reloaded" {
		t.Errorf("expected reloaded name, got %q", reloaded.Name)
	}
}

func TestFileWatcherCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	fw, err := NewFileWatcher(nil, path)
	if err != nil {
		t.Fatalf("NewFileWatcher failed: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
