// internal/config/validation.go - validation with detailed error messages
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

// ValidationResult holds every error found, with field paths, plus warnings
// for settings that are legal but probably unintended
type ValidationResult struct {
	utils.ValidationResult
	Warnings []string `json:"warnings"`
}

func (r *ValidationResult) addError(field, value, format string, args ...interface{}) {
	r.AddError(field, value, fmt.Sprintf(format, args...), string(utils.ErrCodeInvalidConfig))
}

var knownTaskKinds = []string{"extract", "search", "analyze"}

// Validate checks the configuration and returns every problem at once
func (ec *EngineConfig) Validate() error {
	result := ec.ValidateWithDetails()
	if !result.Valid {
		return formatValidationError(result)
	}
	return nil
}

// ValidateWithDetails provides detailed validation results including warnings
func (ec *EngineConfig) ValidateWithDetails() *ValidationResult {
	result := &ValidationResult{
		ValidationResult: *utils.NewValidationResult(),
		Warnings:         make([]string, 0),
	}

	ec.validateBasicFields(result)
	ec.validateEngineSettings(result)
	ec.validateSelectors(result)
	ec.validatePatterns(result)
	ec.validateTasks(result)
	return result
}

func (ec *EngineConfig) validateBasicFields(result *ValidationResult) {
	if _, err := utils.ParseLogLevel(ec.LogLevel); err != nil {
		result.addError("log_level", ec.LogLevel, "%s", err.Error())
	}
	if ec.Metrics.Enabled && !strings.HasPrefix(ec.Metrics.Path, "/") {
		result.addError("metrics.path", ec.Metrics.Path, "metrics path must start with /")
	}
}

func (ec *EngineConfig) validateEngineSettings(result *ValidationResult) {
	s := ec.Engine

	if s.CacheTTL < 0 {
		result.addError("engine.cache_ttl", s.CacheTTL.String(), "cache TTL cannot be negative")
	} else if s.CacheTTL > 0 && s.CacheTTL < time.Second {
		result.Warnings = append(result.Warnings, "cache TTL below one second makes the cache ineffective")
	}

	nonNegative := map[string]int{
		"engine.max_selector_attempts": s.MaxSelectorAttempts,
		"engine.stream_chunk_size":     s.StreamChunkSize,
		"engine.max_concurrent_tasks":  s.MaxConcurrentTasks,
		"engine.fingerprint_length":    s.FingerprintLength,
	}
	for field, v := range nonNegative {
		if v < 0 {
			result.addError(field, fmt.Sprintf("%d", v), "value cannot be negative")
		}
	}
	if s.MaxConcurrentTasks > 1000 {
		result.addError("engine.max_concurrent_tasks", fmt.Sprintf("%d", s.MaxConcurrentTasks),
			"exceeds reasonable limit of 1000")
	}
	if s.StreamChunkSize > 0 && s.StreamChunkSize < 1024 {
		result.Warnings = append(result.Warnings, "stream chunk size below 1 KiB splits most elements across chunks")
	}
	if s.TaskRateLimit < 0 {
		result.addError("engine.task_rate_limit", fmt.Sprintf("%g", s.TaskRateLimit), "rate cannot be negative")
	}

	if s.BaseURL != "" {
		parsed, err := url.Parse(s.BaseURL)
		switch {
		case err != nil:
			result.addError("engine.base_url", s.BaseURL, "invalid URL format: %s", err.Error())
		case parsed.Scheme == "" || parsed.Host == "":
			result.addError("engine.base_url", s.BaseURL, "URL must include protocol and hostname")
		case parsed.Scheme == "http":
			result.Warnings = append(result.Warnings, "base URL uses HTTP instead of HTTPS")
		}
	}

	if s.TitleFormat != "" && strings.Count(s.TitleFormat, "%s") != 1 {
		result.addError("engine.title_format", s.TitleFormat, "title format must contain exactly one %%s")
	}
}

func (ec *EngineConfig) validateSelectors(result *ValidationResult) {
	chains := map[string][]string{
		"selectors.container":        ec.Selectors.Container,
		"selectors.title":            ec.Selectors.Title,
		"selectors.url":              ec.Selectors.URL,
		"selectors.image":            ec.Selectors.Image,
		"images.fallback_selectors": ec.Images.FallbackSelectors,
	}
	for field, chain := range chains {
		for i, selector := range chain {
			if err := ValidateSelector(selector); err != nil {
				result.addError(fmt.Sprintf("%s[%d]", field, i), selector, "%s", err.Error())
			}
		}
	}
	if len(ec.Selectors.Title) == 0 {
		result.Warnings = append(result.Warnings, "no title selectors configured, titles come from container text only")
	}
}

func (ec *EngineConfig) validatePatterns(result *ValidationResult) {
	names := make(map[string]bool)
	for i, p := range ec.Patterns {
		prefix := fmt.Sprintf("patterns[%d]", i)

		if p.Name == "" {
			result.addError(prefix+".name", "", "pattern name is required")
		} else if names[p.Name] {
			result.addError(prefix+".name", p.Name, "duplicate pattern name")
		}
		names[p.Name] = true

		if len(p.Selectors) == 0 {
			result.addError(prefix+".selectors", "[]", "at least one selector is required")
		}
		for j, selector := range p.Selectors {
			if err := ValidateSelector(selector); err != nil {
				result.addError(fmt.Sprintf("%s.selectors[%d]", prefix, j), selector, "%s", err.Error())
			}
		}

		if v := p.Validator; v != nil {
			switch v.Type {
			case ValidatorNonEmpty:
			case ValidatorHasAttr:
				if v.Attribute == "" {
					result.addError(prefix+".validator.attribute", "", "attribute is required for has_attr")
				}
			case ValidatorTextMatches:
				if _, err := regexp.Compile(v.Pattern); err != nil || v.Pattern == "" {
					result.addError(prefix+".validator.pattern", v.Pattern, "a valid regular expression is required for text_matches")
				}
			case ValidatorMinLength:
				if v.MinLength <= 0 {
					result.addError(prefix+".validator.min_length", fmt.Sprintf("%d", v.MinLength), "min_length must be positive")
				}
			default:
				result.addError(prefix+".validator.type", v.Type, "unknown validator type")
			}
		}

		if t := p.Transformer; t != nil {
			switch t.Type {
			case TransformerText, TransformerHTML:
			case TransformerAttr:
				if t.Attribute == "" {
					result.addError(prefix+".transformer.attribute", "", "attribute is required for attr transformer")
				}
			default:
				result.addError(prefix+".transformer.type", t.Type, "unknown transformer type")
			}
			if err := t.Transform.Validate(); err != nil {
				result.addError(prefix+".transformer.transform", "", "%s", err.Error())
			}
		}
	}
}

func (ec *EngineConfig) validateTasks(result *ValidationResult) {
	ids := make(map[string]bool)
	for i, t := range ec.Tasks {
		prefix := fmt.Sprintf("tasks[%d]", i)
		if !contains(knownTaskKinds, t.Kind) {
			result.addError(prefix+".kind", t.Kind, "kind must be one of %s", strings.Join(knownTaskKinds, ", "))
		}
		if t.ID != "" {
			if ids[t.ID] {
				result.addError(prefix+".id", t.ID, "duplicate task id")
			}
			ids[t.ID] = true
		}
		if len(t.Selectors) == 0 && t.Kind != "analyze" {
			result.addError(prefix+".selectors", "[]", "at least one selector is required")
		}
		for j, selector := range t.Selectors {
			if err := ValidateSelector(selector); err != nil {
				result.addError(fmt.Sprintf("%s.selectors[%d]", prefix, j), selector, "%s", err.Error())
			}
		}
	}
}

// ValidateSelector compiles a CSS or XPath selector without evaluating it
func ValidateSelector(selector string) error {
	sv := utils.SelectorValidator{}
	if verr := sv.Validate(selector); verr != nil {
		return verr
	}

	selector = strings.TrimSpace(selector)
	if expr, ok := xpathExpr(selector); ok {
		if _, err := xpath.Compile(expr); err != nil {
			return fmt.Errorf("invalid xpath: %w", err)
		}
		return nil
	}
	if _, err := cascadia.Compile(selector); err != nil {
		return fmt.Errorf("invalid CSS selector: %w", err)
	}
	return nil
}

func xpathExpr(selector string) (string, bool) {
	if strings.HasPrefix(selector, "xpath:") {
		return strings.TrimPrefix(selector, "xpath:"), true
	}
	if strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "./") || strings.HasPrefix(selector, "(") {
		return selector, true
	}
	return "", false
}

// formatValidationError creates a comprehensive error message
func formatValidationError(result *ValidationResult) error {
	var errorMsg strings.Builder

	errorMsg.WriteString("configuration validation failed:\n")
	for i, err := range result.Errors {
		errorMsg.WriteString(fmt.Sprintf("  %d. %s", i+1, err.Message))
		if err.Field != "" {
			errorMsg.WriteString(fmt.Sprintf(" (field: %s)", err.Field))
		}
		if err.Value != "" {
			errorMsg.WriteString(fmt.Sprintf(" (value: %s)", err.Value))
		}
		errorMsg.WriteString("\n")
	}

	return utils.NewError(utils.ErrCodeInvalidConfig, strings.TrimRight(errorMsg.String(), "\n")).
		WithContext("errors", len(result.Errors)).
		Build()
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
