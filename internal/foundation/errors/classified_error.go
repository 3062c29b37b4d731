package errors

import (
	stderrors "errors"
	"fmt"
)

// ClassifiedError is a structured error carrying an ErrorKind, the plugin it
// concerns (if any), a severity and free-form context.
type ClassifiedError struct {
	kind     ErrorKind
	severity ErrorSeverity
	retry    RetryStrategy
	plugin   string
	message  string
	cause    error
	context  ErrorContext
}

// Error implements the standard error interface.
func (e *ClassifiedError) Error() string {
	prefix := string(e.kind)
	if e.plugin != "" {
		prefix += ":" + e.plugin
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", prefix, e.message)
}

// Unwrap implements Go 1.13+ error unwrapping.
func (e *ClassifiedError) Unwrap() error {
	return e.cause
}

// Kind returns the error kind.
func (e *ClassifiedError) Kind() ErrorKind {
	return e.kind
}

// Severity returns the error severity.
func (e *ClassifiedError) Severity() ErrorSeverity {
	return e.severity
}

// RetryStrategy returns the recommended retry strategy.
func (e *ClassifiedError) RetryStrategy() RetryStrategy {
	return e.retry
}

// Plugin returns the id of the plugin the error concerns, or "".
func (e *ClassifiedError) Plugin() string {
	return e.plugin
}

// Message returns the error message without kind prefix or cause.
func (e *ClassifiedError) Message() string {
	return e.message
}

// Cause returns the underlying error.
func (e *ClassifiedError) Cause() error {
	return e.cause
}

// Context returns the error context.
func (e *ClassifiedError) Context() ErrorContext {
	return e.context
}

// WithContext returns a copy of the error with an additional context value.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	cp := *e
	cp.context = ErrorContext{}.Merge(e.context).Set(key, value)
	return &cp
}

// Is matches another ClassifiedError with the same kind and message.
func (e *ClassifiedError) Is(target error) bool {
	if other, ok := target.(*ClassifiedError); ok {
		return e.kind == other.kind && e.message == other.message
	}
	return false
}

// CanRetry checks if the error allows retry operations.
func (e *ClassifiedError) CanRetry() bool {
	return e.retry != RetryNever && e.retry != ""
}

// IsFatal checks if the error is fatal (should stop execution).
func (e *ClassifiedError) IsFatal() bool {
	return e.severity == SeverityFatal
}

// AsClassified finds the first ClassifiedError in err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if stderrors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// KindOf extracts the kind from an error chain, or returns KindInternal.
func KindOf(err error) ErrorKind {
	if classified, ok := AsClassified(err); ok {
		return classified.Kind()
	}
	return KindInternal
}

// HasKind checks if any error in the chain has the given kind.
func HasKind(err error, kind ErrorKind) bool {
	if classified, ok := AsClassified(err); ok {
		return classified.Kind() == kind
	}
	return false
}

// IsRetryable reports whether the error chain carries a retrying strategy.
func IsRetryable(err error) bool {
	if classified, ok := AsClassified(err); ok {
		return classified.CanRetry()
	}
	return false
}
