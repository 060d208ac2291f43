package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// ErrorTypeConfig - missing or invalid configuration
	ErrorTypeConfig ErrorType = iota
	// ErrorTypeValidation - a trigger or record failed its precondition checks
	ErrorTypeValidation
	// ErrorTypeDatabase - ledger connection or query failures
	ErrorTypeDatabase
	// ErrorTypeNetwork - transport-level failures talking to a remote
	ErrorTypeNetwork
	// ErrorTypeExternal - a remote service answered with a failure
	ErrorTypeExternal
	// ErrorTypeGeneration - the text-generation backend failed
	ErrorTypeGeneration
	// ErrorTypePublication - branch, commit or pull request creation failed
	ErrorTypePublication
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - the run continues with degraded output
	SeverityLow Severity = iota
	// SeverityMedium - one item failed, siblings continue
	SeverityMedium
	// SeverityHigh - the current run ends
	SeverityHigh
	// SeverityCritical - nothing can run until it is fixed
	SeverityCritical
)

// Error represents a structured error with context
type Error struct {
	Type     ErrorType
	Severity Severity
	Message  string
	Cause    error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same type, so errors.Is(err, &Error{Type: X}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeDatabase:
		return "DATABASE"
	case ErrorTypeNetwork:
		return "NETWORK"
	case ErrorTypeExternal:
		return "EXTERNAL"
	case ErrorTypeGeneration:
		return "GENERATION"
	case ErrorTypePublication:
		return "PUBLICATION"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// New creates a new error with the given type, severity, and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:     errType,
		Severity: severity,
		Message:  message,
	}
}

// Wrap wraps an existing error with additional context. Wrap(nil, ...) is nil.
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Type:     errType,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// ConfigError creates a configuration error
func ConfigError(message string) *Error {
	return New(ErrorTypeConfig, SeverityCritical, message)
}

// ConfigErrorf creates a configuration error with formatting
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

// ValidationError creates a validation error
func ValidationError(message string) *Error {
	return New(ErrorTypeValidation, SeverityHigh, message)
}

// ValidationErrorf creates a validation error with formatting
func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

// DatabaseErrorf wraps a database error with formatting
func DatabaseErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeDatabase, SeverityHigh, fmt.Sprintf(format, args...))
}

// NetworkError wraps a network error
func NetworkError(err error, message string) *Error {
	return Wrap(err, ErrorTypeNetwork, SeverityHigh, message)
}

// ExternalError wraps an external service error
func ExternalError(err error, message string) *Error {
	return Wrap(err, ErrorTypeExternal, SeverityHigh, message)
}

// ExternalErrorf wraps an external service error with formatting
func ExternalErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeExternal, SeverityHigh, fmt.Sprintf(format, args...))
}

// GenerationError wraps a text-generation failure
func GenerationError(err error, message string) *Error {
	return Wrap(err, ErrorTypeGeneration, SeverityMedium, message)
}

// PublicationErrorf wraps a publication failure with formatting
func PublicationErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypePublication, SeverityHigh, fmt.Sprintf(format, args...))
}

// HasType reports whether any *Error in the chain has the given type.
func HasType(err error, errType ErrorType) bool {
	return stderrors.Is(err, &Error{Type: errType})
}

// Classify returns the type and severity of the outermost *Error in the
// chain. ok is false for errors that carry no classification.
func Classify(err error) (ErrorType, Severity, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type, e.Severity, true
	}
	return 0, 0, false
}
