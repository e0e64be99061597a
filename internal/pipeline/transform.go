// internal/pipeline/transform.go
package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	numberPattern     = regexp.MustCompile(`\d+(?:\.\d+)*`)

	regexCache sync.Map // pattern -> *regexp.Regexp
)

// TransformRule defines a single transformation rule
type TransformRule struct {
	Type        string                 `yaml:"type" json:"type"`
	Pattern     string                 `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Replacement string                 `yaml:"replacement,omitempty" json:"replacement,omitempty"`
	Format      string                 `yaml:"format,omitempty" json:"format,omitempty"`
	Params      map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
}

// TransformList represents a list of transformation rules that can be applied sequentially
type TransformList []TransformRule

// Apply applies all transformation rules in sequence to the input string
func (tl TransformList) Apply(ctx context.Context, input string) (string, error) {
	result := input
	for i, rule := range tl {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		var err error
		result, err = rule.Apply(ctx, result)
		if err != nil {
			return "", fmt.Errorf("transform rule %d failed: %w", i, err)
		}
	}
	return result, nil
}

// Validate checks every rule without applying it
func (tl TransformList) Validate() error {
	for i, rule := range tl {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("transform rule %d invalid: %w", i, err)
		}
	}
	return nil
}

// Validate checks that the rule type is known and its parameters are present
func (tr TransformRule) Validate() error {
	switch tr.Type {
	case "trim", "normalize_spaces", "lowercase", "uppercase", "title", "nfkc",
		"remove_html", "extract_number", "parse_float", "parse_int":
		return nil
	case "regex", "regex_extract":
		if tr.Pattern == "" {
			return fmt.Errorf("%s: pattern is required", tr.Type)
		}
		if _, err := compileCached(tr.Pattern); err != nil {
			return fmt.Errorf("%s: invalid pattern: %w", tr.Type, err)
		}
		return nil
	case "parse_date":
		return nil
	case "prefix", "suffix":
		if tr.Params == nil || tr.Params["value"] == nil {
			return fmt.Errorf("%s requires value parameter", tr.Type)
		}
		return nil
	case "replace":
		if tr.Params == nil || tr.Params["old"] == nil || tr.Params["new"] == nil {
			return fmt.Errorf("replace requires old and new parameters")
		}
		return nil
	default:
		return fmt.Errorf("unknown transform type: %s", tr.Type)
	}
}

// Apply applies a single transformation rule to the input string
func (tr TransformRule) Apply(ctx context.Context, input string) (string, error) {
	switch tr.Type {
	case "trim":
		return strings.TrimSpace(input), nil

	case "normalize_spaces":
		return whitespacePattern.ReplaceAllString(strings.TrimSpace(input), " "), nil

	case "lowercase":
		return strings.ToLower(input), nil

	case "uppercase":
		return strings.ToUpper(input), nil

	case "title":
		return cases.Title(language.Und).String(input), nil

	case "nfkc":
		// folds full-width digits and letters common on CJK pages
		return norm.NFKC.String(input), nil

	case "remove_html":
		return htmlTagPattern.ReplaceAllString(input, ""), nil

	case "extract_number":
		match := numberPattern.FindString(input)
		if match == "" {
			return "", fmt.Errorf("extract_number: no number in %q", input)
		}
		return match, nil

	case "parse_float":
		val, err := ParseFloat(input)
		if err != nil {
			return "", fmt.Errorf("parse_float failed: %w", err)
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil

	case "parse_int":
		val, err := ParseInt(input)
		if err != nil {
			return "", fmt.Errorf("parse_int failed: %w", err)
		}
		return strconv.Itoa(val), nil

	case "regex":
		re, err := compileCached(tr.Pattern)
		if err != nil {
			return "", fmt.Errorf("invalid regex pattern: %w", err)
		}
		return re.ReplaceAllString(input, tr.Replacement), nil

	case "regex_extract":
		re, err := compileCached(tr.Pattern)
		if err != nil {
			return "", fmt.Errorf("invalid regex pattern: %w", err)
		}
		m := re.FindStringSubmatch(input)
		if m == nil {
			return "", fmt.Errorf("regex_extract: no match for %q", tr.Pattern)
		}
		if len(m) > 1 {
			return m[1], nil
		}
		return m[0], nil

	case "parse_date":
		format := tr.Format
		if format == "" {
			format = "2006-01-02"
		}
		if _, err := time.Parse(format, strings.TrimSpace(input)); err != nil {
			return "", fmt.Errorf("parse_date failed: %w", err)
		}
		return strings.TrimSpace(input), nil

	case "prefix":
		if tr.Params == nil || tr.Params["value"] == nil {
			return "", fmt.Errorf("prefix requires value parameter")
		}
		return fmt.Sprintf("%v", tr.Params["value"]) + input, nil

	case "suffix":
		if tr.Params == nil || tr.Params["value"] == nil {
			return "", fmt.Errorf("suffix requires value parameter")
		}
		return input + fmt.Sprintf("%v", tr.Params["value"]), nil

	case "replace":
		if tr.Params == nil || tr.Params["old"] == nil || tr.Params["new"] == nil {
			return "", fmt.Errorf("replace requires old and new parameters")
		}
		old := fmt.Sprintf("%v", tr.Params["old"])
		replacement := fmt.Sprintf("%v", tr.Params["new"])
		return strings.ReplaceAll(input, old, replacement), nil

	default:
		return "", fmt.Errorf("unknown transform type: %s", tr.Type)
	}
}

// ParseInt converts a string to an integer, ignoring thousands separators
func ParseInt(s string) (int, error) {
	return strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
}

// ParseFloat converts a string to a float64, ignoring thousands separators
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
}

func compileCached(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}
