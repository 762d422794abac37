// Package dberror defines the structured error type shared by the storage
// layer and the physical operators.
package dberror

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory classifies errors by their nature and appropriate handling strategy.
type ErrorCategory int

const (
	// ErrCategoryUser represents errors caused by invalid user input:
	// expressions that do not compile, schemas that do not line up.
	// These errors are fixable by changing the request.
	ErrCategoryUser ErrorCategory = iota

	// ErrCategorySystem represents errors of the environment:
	// I/O failures, exhausted page pool.
	ErrCategorySystem

	// ErrCategoryData represents errors related to data corruption or integrity.
	// Examples: invalid page formats, wrong metadata pages.
	ErrCategoryData
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryUser:
		return "user"
	case ErrCategorySystem:
		return "system"
	case ErrCategoryData:
		return "data"
	default:
		return "unknown"
	}
}

// Error codes.
const (
	CodeCompile        = "COMPILE_ERROR"
	CodeSchemaMismatch = "SCHEMA_MISMATCH"
	CodeStorageFull    = "STORAGE_FULL"
	CodeIO             = "IO_ERROR"
	CodeNotFound       = "NOT_FOUND"
)

// Sentinels for errors.Is. A DBError matches a sentinel with the same code.
var (
	ErrCompile        = &DBError{Code: CodeCompile, Category: ErrCategoryUser, Message: "expression failed to compile"}
	ErrSchemaMismatch = &DBError{Code: CodeSchemaMismatch, Category: ErrCategoryUser, Message: "schema mismatch"}
	ErrStorageFull    = &DBError{Code: CodeStorageFull, Category: ErrCategorySystem, Message: "no page available"}
	ErrIO             = &DBError{Code: CodeIO, Category: ErrCategorySystem, Message: "storage I/O failed"}
	ErrNotFound       = &DBError{Code: CodeNotFound, Category: ErrCategoryUser, Message: "not found"}
)

// DBError represents a structured database error with rich context information.
type DBError struct {
	// Code is a unique identifier for this error type (e.g., "STORAGE_FULL").
	Code string

	// Category classifies the error for appropriate handling strategy.
	Category ErrorCategory

	// Message is a human-readable description of what went wrong.
	Message string

	// Detail provides additional context about the specific error instance.
	Detail string

	// Hint suggests how the user might fix or work around this error.
	Hint string

	// Operation identifies the operation that was being performed
	// (e.g., "SortMergeJoin.Run", "Pin").
	Operation string

	// Component identifies the component where the error originated
	// (e.g., "BufferPool", "Aggregate").
	Component string

	// Cause is the underlying error that triggered this database error.
	Cause error

	// Stack contains the call stack where this error was created.
	Stack []uintptr
}

// New creates a new DBError with the specified code, category, and message.
func New(category ErrorCategory, code, message string) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// Wrap wraps an existing error with database-specific context information.
// If the error already carries a DBError, that error is enriched with
// operation and component context (only if not already set) and returned.
func Wrap(err error, code, operation, component string) *DBError {
	if err == nil {
		return nil
	}

	var dbErr *DBError
	if errors.As(err, &dbErr) {
		if dbErr.Operation == "" {
			dbErr.Operation = operation
		}
		if dbErr.Component == "" {
			dbErr.Component = component
		}
		return dbErr
	}

	return &DBError{
		Code:      code,
		Category:  categoryOf(code),
		Message:   errors.Cause(err).Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// Compile returns a CompileError for expression text that failed to compile.
func Compile(text string, cause error) *DBError {
	e := New(ErrCategoryUser, CodeCompile, "expression failed to compile")
	e.Detail = fmt.Sprintf("%q", text)
	e.Cause = cause
	return e
}

// SchemaMismatch returns a SchemaMismatchError with a formatted detail.
func SchemaMismatch(format string, args ...any) *DBError {
	e := New(ErrCategoryUser, CodeSchemaMismatch, "schema mismatch")
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// StorageFull returns a StorageFullError caused by cause.
func StorageFull(cause error) *DBError {
	e := New(ErrCategorySystem, CodeStorageFull, "no page available")
	e.Cause = cause
	e.Hint = "increase the buffer pool size or reduce the number of groups"
	return e
}

// IO returns an IOError caused by cause.
func IO(cause error, operation string) *DBError {
	e := New(ErrCategorySystem, CodeIO, "storage I/O failed")
	e.Cause = cause
	e.Operation = operation
	return e
}

// NotFound returns a NotFound error for the named object.
func NotFound(kind, name string) *DBError {
	e := New(ErrCategoryUser, CodeNotFound, kind+" not found")
	e.Detail = name
	return e
}

// Classify wraps err as an IOError unless it already carries a DBError.
func Classify(err error, operation, component string) error {
	if err == nil {
		return nil
	}
	return Wrap(err, CodeIO, operation, component)
}

// HasCode reports whether err carries a DBError with the given code.
func HasCode(err error, code string) bool {
	var dbErr *DBError
	return errors.As(err, &dbErr) && dbErr.Code == code
}

func categoryOf(code string) ErrorCategory {
	switch code {
	case CodeCompile, CodeSchemaMismatch, CodeNotFound:
		return ErrCategoryUser
	default:
		return ErrCategorySystem
	}
}

// captureStack skips captureStack, the constructor and its immediate caller.
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// Error implements the standard Go error interface
//
// The format follows the pattern:
// [ERROR_CODE] Message: Detail (operation: Operation, component: Component) caused by: underlying error
func (e *DBError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Detail != "" {
		b.WriteString(fmt.Sprintf(": %s", e.Detail))
	}

	if e.Operation != "" {
		b.WriteString(fmt.Sprintf(" (operation: %s", e.Operation))
		if e.Component != "" {
			b.WriteString(fmt.Sprintf(", component: %s", e.Component))
		}
		b.WriteString(")")
	}

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(" caused by: %v", e.Cause))
	}

	return b.String()
}

// Unwrap returns the underlying cause error.
func (e *DBError) Unwrap() error {
	return e.Cause
}

// Is matches any DBError with the same code, so the package sentinels work
// with errors.Is.
func (e *DBError) Is(target error) bool {
	t, ok := target.(*DBError)
	return ok && t.Code == e.Code
}

// FormatStack returns a human-readable stack trace for debugging purposes.
func (e *DBError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)

	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		b.WriteString(fmt.Sprintf("  %s\n    %s:%d\n",
			f.Function, f.File, f.Line))
		if !more {
			break
		}
	}

	return b.String()
}
