// Package nerr provides standardized error handling for nopg.
// All errors have stable, machine-readable codes, structured context, and proper wrapping.
package nerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code represents a stable, machine-readable error code.
// Format: E{category}{number} where category is 1-4 and number is 001-999.
type Code string

// Error codes organized by category.
const (
	// Compile errors (E1xxx) - problems turning a filter specification into SQL
	ErrInvalidKey       Code = "E1001" // Field reference is unresolvable or malformed
	ErrInvalidPredicate Code = "E1002" // Filter combinator array is malformed
	ErrNoIdentifyingKey Code = "E1003" // Update target lacks both id and name
	ErrUnknownType      Code = "E1004" // Discriminator type has zero or multiple matches
	ErrInvalidTraits    Code = "E1005" // Query trait (limit, offset, order) is malformed

	// Index errors (E2xxx) - problems keeping indexes in sync with the catalog
	ErrIndexVerification Code = "E2001" // Created/observed DDL matches neither canonical form
	ErrIndexSync         Code = "E2002" // Index create/drop statement failed

	// SQL errors (E3xxx) - problems with database operations
	ErrSQLExecution  Code = "E3001" // SQL statement failed to execute
	ErrSQLConnection Code = "E3002" // Database connection failed

	// Config errors (E4xxx) - problems with configuration
	ErrConfigInvalid Code = "E4001" // Configuration file is malformed or incomplete
)

// Error is the standard error type for nopg.
// It provides structured error information with codes, context, and wrapping support.
type Error struct {
	code    Code           // Machine-readable error code
	message string         // Human-readable error message
	context map[string]any // Structured context data
	cause   error          // Wrapped underlying error
}

// Error returns the formatted error string.
// Format:
//
//	[E1001] unknown field key
//	  key: naame
//	  type: documents
//	  help: did you mean 'name'?
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.code, e.message))

	// Write context in sorted order for deterministic output
	if len(e.context) > 0 {
		keys := make([]string, 0, len(e.context))
		for k := range e.context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			b.WriteString(fmt.Sprintf("\n  %s: %v", k, e.context[k]))
		}
	}

	if e.cause != nil {
		b.WriteString(fmt.Sprintf("\n  cause: %v", e.cause))
	}

	return b.String()
}

// Unwrap returns the underlying cause error for errors.Unwrap compatibility.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether the target error matches this error.
// It matches if target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	var targetErr *Error
	if errors.As(target, &targetErr) {
		return e.code == targetErr.code
	}

	return false
}

// GetCode returns the error code.
func (e *Error) GetCode() Code {
	return e.code
}

// GetMessage returns the error message.
func (e *Error) GetMessage() string {
	return e.message
}

// GetContext returns the error context map.
func (e *Error) GetContext() map[string]any {
	return e.context
}

// With adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) With(key string, value any) *Error {
	if e.context == nil {
		e.context = make(map[string]any)
	}
	e.context[key] = value
	return e
}

// WithTable adds table context to the error.
func (e *Error) WithTable(table string) *Error {
	return e.With("table", table)
}

// WithKey adds field-key context to the error.
func (e *Error) WithKey(key string) *Error {
	return e.With("key", key)
}

// WithSQL adds SQL statement context to the error.
func (e *Error) WithSQL(sql string) *Error {
	return e.With("sql", sql)
}

// WithIndex adds index-name context to the error.
func (e *Error) WithIndex(name string) *Error {
	return e.With("index", name)
}

// WithHelp adds a help suggestion to the error (displayed as "help: ...").
func (e *Error) WithHelp(help string) *Error {
	return e.With("help", help)
}

// Help returns the help suggestion attached to this error, if any.
func (e *Error) Help() string {
	help, _ := e.context["help"].(string)
	return help
}

// New creates a new Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{
		code:    code,
		message: msg,
		context: make(map[string]any),
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		code:    code,
		message: fmt.Sprintf(format, args...),
		context: make(map[string]any),
	}
}

// Wrap creates a new Error that wraps an existing error.
func Wrap(code Code, err error, msg string) *Error {
	if err == nil {
		return New(code, msg)
	}
	return &Error{
		code:    code,
		message: msg,
		context: make(map[string]any),
		cause:   err,
	}
}

// Wrapf creates a new Error that wraps an existing error with a formatted message.
func Wrapf(code Code, err error, format string, args ...any) *Error {
	return Wrap(code, err, fmt.Sprintf(format, args...))
}

// GetErrorCode extracts the error code from an error chain.
// Returns empty string if no code is found.
func GetErrorCode(err error) Code {
	if err == nil {
		return ""
	}

	var nerr *Error
	if errors.As(err, &nerr) {
		return nerr.code
	}

	return ""
}

// Is checks if an error has the specified code.
func Is(err error, code Code) bool {
	return GetErrorCode(err) == code
}

// HasCode checks if an error has any error code.
func HasCode(err error) bool {
	return GetErrorCode(err) != ""
}

// WrapSQL creates an ErrSQLExecution error with table context.
// Use for wrapping SQL errors with consistent formatting.
// Example: WrapSQL(err, "read index definition", "documents")
func WrapSQL(err error, op string, table string) *Error {
	e := Wrap(ErrSQLExecution, err, "failed to "+op)
	if table != "" {
		e.WithTable(table)
	}
	return e
}
