// cmd/patchextract/errors.go
package main

import (
	"fmt"
	"strings"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

// describeError converts an error into a headline and suggestions for the
// terminal
func describeError(err error) (title string, suggestions []string) {
	switch utils.CodeOf(err) {
	case utils.ErrCodeInvalidConfig:
		return "Configuration Error", []string{
			"Run `patchextract validate <file>` to list every problem",
			"Check YAML indentation (use spaces, not tabs)",
		}
	case utils.ErrCodeMissingConfig:
		return "Configuration Not Found", []string{
			"Pass the file with --config or as an argument",
		}
	case utils.ErrCodeInvalidInput:
		return "Invalid Input", []string{
			"Check that the page file exists and is readable",
			"Use - to read the page from standard input",
		}
	case utils.ErrCodeParsingError:
		return "Page Could Not Be Parsed", []string{
			"Make sure the file is an HTML document",
			"Pass --content-type with the page charset to the stream command",
		}
	case utils.ErrCodeSelectorInvalid:
		return "Invalid Selector", []string{
			"Check the CSS syntax, or prefix XPath expressions with xpath:",
		}
	case utils.ErrCodeStreamRead:
		return "Read Failed", []string{
			"The file may have been truncated or removed while reading",
		}
	case utils.ErrCodeContextCanceled:
		return "Interrupted", nil
	default:
		return "Unexpected Error", nil
	}
}

// formatError renders err for standard error
func formatError(err error) string {
	title, suggestions := describeError(err)

	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n%v\n", title, err)
	if len(suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, s := range suggestions {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	return b.String()
}

// exitCode maps error codes onto process exit statuses
func exitCode(err error) int {
	switch utils.CodeOf(err) {
	case utils.ErrCodeInvalidConfig, utils.ErrCodeMissingConfig:
		return 2
	case utils.ErrCodeInvalidInput, utils.ErrCodeParsingError, utils.ErrCodeStreamRead:
		return 3
	case utils.ErrCodeContextCanceled:
		return 130
	default:
		return 1
	}
}
