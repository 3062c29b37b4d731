package errors

import "fmt"

// ErrorBuilder provides a fluent API for creating ClassifiedError instances.
type ErrorBuilder struct {
	kind     ErrorKind
	severity ErrorSeverity
	retry    RetryStrategy
	plugin   string
	message  string
	cause    error
	context  ErrorContext
}

// NewError creates a new ErrorBuilder with the specified kind and message.
func NewError(kind ErrorKind, message string) *ErrorBuilder {
	return &ErrorBuilder{
		kind:     kind,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
		context:  make(ErrorContext),
	}
}

// Newf is NewError with a formatted message.
func Newf(kind ErrorKind, format string, args ...any) *ErrorBuilder {
	return NewError(kind, fmt.Sprintf(format, args...))
}

// WrapError creates a new ErrorBuilder that wraps an existing error.
func WrapError(err error, kind ErrorKind, message string) *ErrorBuilder {
	b := NewError(kind, message)
	b.cause = err
	return b
}

// ForPlugin records the plugin the error concerns.
func (b *ErrorBuilder) ForPlugin(id string) *ErrorBuilder {
	b.plugin = id
	return b
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

// WithRetry sets the retry strategy.
func (b *ErrorBuilder) WithRetry(strategy RetryStrategy) *ErrorBuilder {
	b.retry = strategy
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.context = b.context.Set(key, value)
	return b
}

// Fatal sets the severity to fatal.
func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	return b.WithSeverity(SeverityFatal)
}

// Warning sets the severity to warning.
func (b *ErrorBuilder) Warning() *ErrorBuilder {
	return b.WithSeverity(SeverityWarning)
}

// Retryable sets the retry strategy to backoff.
func (b *ErrorBuilder) Retryable() *ErrorBuilder {
	return b.WithRetry(RetryBackoff)
}

// RateLimit sets the retry strategy to rate limit.
func (b *ErrorBuilder) RateLimit() *ErrorBuilder {
	return b.WithRetry(RetryRateLimit)
}

// Build creates the final ClassifiedError.
func (b *ErrorBuilder) Build() *ClassifiedError {
	return &ClassifiedError{
		kind:     b.kind,
		severity: b.severity,
		retry:    b.retry,
		plugin:   b.plugin,
		message:  b.message,
		cause:    b.cause,
		context:  b.context,
	}
}

// HostConfigError creates a host configuration error.
func HostConfigError(message string) *ErrorBuilder {
	return NewError(KindHostConfig, message).Fatal()
}

// BackendError creates a generation backend error.
func BackendError(message string) *ErrorBuilder {
	return NewError(KindBackend, message)
}

// InternalError creates an internal error.
func InternalError(message string) *ErrorBuilder {
	return NewError(KindInternal, message).Fatal()
}
