// internal/pipeline/transform_test.go
package pipeline

import (
	"context"
	"testing"
)

func TestTransformRule_Apply(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		rule        TransformRule
		input       string
		expected    string
		expectError bool
	}{
		{name: "trim spaces", rule: TransformRule{Type: "trim"}, input: "  hello world  ", expected: "hello world"},
		{name: "normalize spaces", rule: TransformRule{Type: "normalize_spaces"}, input: "hello    world\n\ttest", expected: "hello world test"},
		{name: "lowercase", rule: TransformRule{Type: "lowercase"}, input: "HELLO World", expected: "hello world"},
		{name: "uppercase", rule: TransformRule{Type: "uppercase"}, input: "hello world", expected: "HELLO WORLD"},
		{name: "title", rule: TransformRule{Type: "title"}, input: "patch notes", expected: "Patch Notes"},
		{name: "nfkc full-width digits", rule: TransformRule{Type: "nfkc"}, input: "パッチ１４．２", expected: "パッチ14.2"},
		{name: "remove html", rule: TransformRule{Type: "remove_html"}, input: "This is <b>bold</b> text", expected: "This is bold text"},
		{name: "extract number", rule: TransformRule{Type: "extract_number"}, input: "Patch 14.2.1 notes", expected: "14.2.1"},
		{name: "extract number missing", rule: TransformRule{Type: "extract_number"}, input: "no digits", expectError: true},
		{name: "parse int", rule: TransformRule{Type: "parse_int"}, input: "1,234", expected: "1234"},
		{name: "parse int invalid", rule: TransformRule{Type: "parse_int"}, input: "abc", expectError: true},
		{name: "parse float", rule: TransformRule{Type: "parse_float"}, input: "4.8", expected: "4.8"},
		{name: "regex replace", rule: TransformRule{Type: "regex", Pattern: `\$([0-9,]+\.\d*)`, Replacement: "$1"}, input: "$1,299.99", expected: "1,299.99"},
		{name: "regex extract group", rule: TransformRule{Type: "regex_extract", Pattern: `v(\d+\.\d+)`}, input: "build v14.3", expected: "14.3"},
		{name: "regex extract no match", rule: TransformRule{Type: "regex_extract", Pattern: `v(\d+)`}, input: "none", expectError: true},
		{name: "parse date", rule: TransformRule{Type: "parse_date"}, input: "2024-01-24", expected: "2024-01-24"},
		{name: "parse date invalid", rule: TransformRule{Type: "parse_date"}, input: "24/01/2024", expectError: true},
		{name: "prefix", rule: TransformRule{Type: "prefix", Params: map[string]interface{}{"value": "Patch "}}, input: "14.2", expected: "Patch 14.2"},
		{name: "suffix", rule: TransformRule{Type: "suffix", Params: map[string]interface{}{"value": " notes"}}, input: "14.2", expected: "14.2 notes"},
		{name: "replace", rule: TransformRule{Type: "replace", Params: map[string]interface{}{"old": "-", "new": "."}}, input: "14-2", expected: "14.2"},
		{name: "replace missing params", rule: TransformRule{Type: "replace"}, input: "x", expectError: true},
		{name: "unknown", rule: TransformRule{Type: "explode"}, input: "x", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.rule.Apply(ctx, tt.input)
			if tt.expectError {
				if err == nil {
					t.Fatalf("Expected error, got result %q", result)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestTransformList_Apply(t *testing.T) {
	list := TransformList{
		{Type: "nfkc"},
		{Type: "normalize_spaces"},
		{Type: "regex_extract", Pattern: `(\d+\.\d+)`},
		{Type: "prefix", Params: map[string]interface{}{"value": "Patch "}},
	}

	result, err := list.Apply(context.Background(), "  パッチノート　１４．２  ")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result != "Patch 14.2" {
		t.Errorf("Expected 'Patch 14.2', got %q", result)
	}
}

func TestTransformList_ApplyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := (TransformList{{Type: "trim"}}).Apply(ctx, "x"); err == nil {
		t.Fatal("Expected cancelled context to stop the transform list")
	}
}

func TestTransformList_Validate(t *testing.T) {
	valid := TransformList{{Type: "trim"}, {Type: "regex", Pattern: `\d+`}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	invalid := []TransformList{
		{{Type: "regex"}},
		{{Type: "regex", Pattern: "("}},
		{{Type: "prefix"}},
		{{Type: "nope"}},
	}
	for i, list := range invalid {
		if err := list.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}
