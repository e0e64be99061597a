// Package utils provides structured errors, logging and validation helpers
// shared by the extraction engine.
package utils

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns string representation of error severity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ErrorCode categorizes engine errors
type ErrorCode string

const (
	// Input errors abort a single operation or task
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeSelectorInvalid ErrorCode = "SELECTOR_INVALID"
	ErrCodeTraversalFailed ErrorCode = "TRAVERSAL_FAILED"
	ErrCodeUnknownTaskKind ErrorCode = "UNKNOWN_TASK_KIND"
	ErrCodeParsingError    ErrorCode = "PARSING_ERROR"

	// Stream errors
	ErrCodeStreamRead ErrorCode = "STREAM_READ"

	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeMissingConfig ErrorCode = "MISSING_CONFIG"

	// Generic errors
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StructuredError carries a code, severity and context for an engine failure
type StructuredError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Severity   ErrorSeverity          `json:"severity"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Cause      error                  `json:"-"`
	Timestamp  time.Time              `json:"timestamp"`
	StackTrace []string               `json:"stack_trace,omitempty"`
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error unwrapping
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// Is matches another StructuredError by code
func (e *StructuredError) Is(target error) bool {
	if se, ok := target.(*StructuredError); ok {
		return e.Code == se.Code
	}
	return false
}

// ErrorBuilder provides a fluent interface for creating structured errors
type ErrorBuilder struct {
	error *StructuredError
}

// NewError creates a new error builder. Stack traces are captured only for
// SeverityCritical, see WithSeverity.
func NewError(code ErrorCode, message string) *ErrorBuilder {
	return &ErrorBuilder{
		error: &StructuredError{
			Code:      code,
			Message:   message,
			Severity:  SeverityError,
			Timestamp: time.Now(),
		},
	}
}

// WithSeverity sets the error severity
func (eb *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	eb.error.Severity = severity
	if severity == SeverityCritical && eb.error.StackTrace == nil {
		eb.error.StackTrace = captureStackTrace(15)
	}
	return eb
}

// WithCause sets the underlying cause
func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.error.Cause = cause
	return eb
}

// WithContext adds contextual information
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	if eb.error.Context == nil {
		eb.error.Context = make(map[string]interface{})
	}
	eb.error.Context[key] = value
	return eb
}

// Build returns the constructed error
func (eb *ErrorBuilder) Build() *StructuredError {
	return eb.error
}

// WrapError wraps an existing error in a structured error
func WrapError(err error, code ErrorCode, message string) *StructuredError {
	return NewError(code, message).WithCause(err).Build()
}

// CodeOf returns the code of the first StructuredError in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) ErrorCode {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err's chain contains a StructuredError with code
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &StructuredError{Code: code})
}

// ErrorCollector gathers failures so a caller can report every problem at
// once. Errors past the limit are counted but not kept.
type ErrorCollector struct {
	errors  []*StructuredError
	limit   int
	dropped int
}

// NewErrorCollector creates a collector keeping at most limit errors
func NewErrorCollector(limit int) *ErrorCollector {
	if limit <= 0 {
		limit = 100
	}
	return &ErrorCollector{limit: limit}
}

// Add records err; nil is ignored
func (ec *ErrorCollector) Add(err *StructuredError) {
	if err == nil {
		return
	}
	if len(ec.errors) >= ec.limit {
		ec.dropped++
		return
	}
	ec.errors = append(ec.errors, err)
}

// Len reports how many errors were added, dropped ones included
func (ec *ErrorCollector) Len() int {
	return len(ec.errors) + ec.dropped
}

// Err returns the collected errors as one MultiError, or nil
func (ec *ErrorCollector) Err() error {
	if len(ec.errors) == 0 {
		return nil
	}
	return &MultiError{errors: ec.errors, dropped: ec.dropped}
}

// MultiError reports several structured errors as one. errors.Is and
// errors.As see every member.
type MultiError struct {
	errors  []*StructuredError
	dropped int
}

// Error joins the member messages
func (me *MultiError) Error() string {
	messages := make([]string, len(me.errors))
	for i, err := range me.errors {
		messages[i] = err.Error()
	}
	msg := strings.Join(messages, "; ")
	if me.dropped > 0 {
		msg += fmt.Sprintf(" (and %d more)", me.dropped)
	}
	return msg
}

// Errors returns the kept members
func (me *MultiError) Errors() []*StructuredError {
	return me.errors
}

// Unwrap exposes the members to errors.Is and errors.As
func (me *MultiError) Unwrap() []error {
	errs := make([]error, len(me.errors))
	for i, err := range me.errors {
		errs[i] = err
	}
	return errs
}

func captureStackTrace(depth int) []string {
	var stack []string
	for i := 3; len(stack) < depth; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		funcName := "unknown"
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName = fn.Name()
		}
		stack = append(stack, fmt.Sprintf("%s:%d (%s)", shortenFilePath(file), line, shortenFuncName(funcName)))
	}
	return stack
}

// shortenFilePath keeps the last two path components
func shortenFilePath(filePath string) string {
	parts := strings.Split(filePath, "/")
	if len(parts) > 2 {
		return strings.Join(parts[len(parts)-2:], "/")
	}
	return filePath
}

func shortenFuncName(funcName string) string {
	parts := strings.Split(funcName, "/")
	lastPart := parts[len(parts)-1]
	if dotIndex := strings.LastIndex(lastPart, "."); dotIndex != -1 && dotIndex < len(lastPart)-1 {
		return lastPart[dotIndex+1:]
	}
	return lastPart
}
