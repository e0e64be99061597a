package utils

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	javascriptProtocolPattern = regexp.MustCompile(`(?i)^\s*javascript:`)
	cssExpressionPattern      = regexp.MustCompile(`(?i)expression\s*\(`)
)

const (
	// MaxSelectorLength is the longest selector accepted in a chain
	MaxSelectorLength = 1000

	// MaxURLLength bounds accepted image and link references
	MaxURLLength = 2048
)

// DefaultImageExtensions are the path suffixes ImageURLValidator treats as images
var DefaultImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".avif", ".bmp"}

// ValidationError represents a structured validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface
func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error in field '%s': %s", e.Field, e.Message)
}

// ValidationResult represents the result of a validation operation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidationResult returns an empty, valid result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// AddError adds a validation error to the result
func (vr *ValidationResult) AddError(field, value, message, code string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Code:    code,
	})
}

// HasErrors returns true if there are validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// Validator interface for creating custom validators
type Validator interface {
	Validate(value interface{}) *ValidationError
}

// URLValidator validates URL fields
type URLValidator struct {
	Required       bool
	AllowRelative  bool
	AllowedSchemes []string // e.g., ["http", "https"]
	AllowedHosts   []string // e.g., ["example.com", "*.example.com"]
}

// Validate implements the Validator interface for URLs
func (uv *URLValidator) Validate(value interface{}) *ValidationError {
	str, ok := value.(string)
	if !ok {
		return &ValidationError{Message: "value must be a string", Code: "INVALID_TYPE"}
	}

	str = strings.TrimSpace(str)
	if str == "" {
		if uv.Required {
			return &ValidationError{Message: "URL is required", Code: "REQUIRED"}
		}
		return nil
	}

	if len(str) > MaxURLLength {
		return &ValidationError{Message: fmt.Sprintf("URL exceeds %d characters", MaxURLLength), Code: "MAX_LENGTH"}
	}

	if javascriptProtocolPattern.MatchString(str) {
		return &ValidationError{Message: "javascript URLs are not allowed", Code: "UNSAFE_SCHEME"}
	}

	parsedURL, err := url.Parse(str)
	if err != nil {
		return &ValidationError{Message: fmt.Sprintf("invalid URL format: %v", err), Code: "INVALID_FORMAT"}
	}

	if parsedURL.Scheme == "" {
		if !uv.AllowRelative {
			return &ValidationError{Message: "relative URLs are not allowed", Code: "RELATIVE_URL"}
		}
		return nil
	}

	if len(uv.AllowedSchemes) > 0 && !containsFold(uv.AllowedSchemes, parsedURL.Scheme) {
		return &ValidationError{
			Message: fmt.Sprintf("scheme must be one of: %s", strings.Join(uv.AllowedSchemes, ", ")),
			Code:    "INVALID_SCHEME",
		}
	}

	if len(uv.AllowedHosts) > 0 && !hostAllowed(uv.AllowedHosts, parsedURL.Hostname()) {
		return &ValidationError{
			Message: fmt.Sprintf("host must be one of: %s", strings.Join(uv.AllowedHosts, ", ")),
			Code:    "INVALID_HOST",
		}
	}

	return nil
}

// ImageURLValidator accepts image references found in src or lazy-load
// attributes. Inline data: URIs and placeholder GIFs are rejected.
type ImageURLValidator struct {
	URLValidator
	RequireExtension bool
	Extensions       []string
}

// NewImageURLValidator returns the validator the field extractors use by default
func NewImageURLValidator() *ImageURLValidator {
	return &ImageURLValidator{
		URLValidator: URLValidator{
			Required:       true,
			AllowRelative:  true,
			AllowedSchemes: []string{"http", "https"},
		},
		Extensions: DefaultImageExtensions,
	}
}

// Validate implements the Validator interface for image references
func (iv *ImageURLValidator) Validate(value interface{}) *ValidationError {
	str, _ := value.(string)
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(str)), "data:") {
		return &ValidationError{Message: "inline data URIs are not accepted", Code: "DATA_URI"}
	}
	if verr := iv.URLValidator.Validate(value); verr != nil {
		return verr
	}
	if !iv.RequireExtension {
		return nil
	}

	parsed, err := url.Parse(strings.TrimSpace(str))
	if err != nil {
		return &ValidationError{Message: err.Error(), Code: "INVALID_FORMAT"}
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	exts := iv.Extensions
	if len(exts) == 0 {
		exts = DefaultImageExtensions
	}
	for _, allowed := range exts {
		if ext == allowed {
			return nil
		}
	}
	return &ValidationError{Message: fmt.Sprintf("unrecognized image extension %q", ext), Code: "INVALID_EXTENSION"}
}

// IsValid is a convenience wrapper returning true when Validate passes
func (iv *ImageURLValidator) IsValid(ref string) bool {
	return iv.Validate(ref) == nil
}

// SelectorValidator performs cheap structural checks on a selector string.
// Syntax is checked by the selector compiler at evaluation time.
type SelectorValidator struct {
	AllowEmpty bool
	MaxLength  int
}

// Validate implements the Validator interface for selectors
func (sv *SelectorValidator) Validate(value interface{}) *ValidationError {
	selector, ok := value.(string)
	if !ok {
		return &ValidationError{Message: "selector must be a string", Code: "INVALID_TYPE"}
	}
	selector = strings.TrimSpace(selector)
	if selector == "" {
		if sv.AllowEmpty {
			return nil
		}
		return &ValidationError{Message: "selector cannot be empty", Code: "EMPTY_SELECTOR"}
	}

	maxLen := sv.MaxLength
	if maxLen <= 0 {
		maxLen = MaxSelectorLength
	}
	if utf8.RuneCountInString(selector) > maxLen {
		return &ValidationError{
			Value:   TruncateString(selector, 40),
			Message: fmt.Sprintf("selector exceeds maximum length of %d characters", maxLen),
			Code:    "SELECTOR_TOO_LONG",
		}
	}

	if javascriptProtocolPattern.MatchString(selector) || cssExpressionPattern.MatchString(selector) {
		return &ValidationError{
			Value:   TruncateString(selector, 40),
			Message: "selector contains potentially dangerous content",
			Code:    "UNSAFE_SELECTOR",
		}
	}

	return nil
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

func hostAllowed(allowed []string, host string) bool {
	for _, a := range allowed {
		if strings.EqualFold(a, host) {
			return true
		}
		if strings.HasPrefix(a, "*.") {
			domain := a[2:]
			if strings.HasSuffix(host, "."+domain) || host == domain {
				return true
			}
		}
	}
	return false
}
