package errors

import "maps"

// ErrorKind identifies a failure of the plugin lifecycle or of a command invocation.
type ErrorKind string

const (
	// Load-time kinds, reported per plugin in a load report.
	KindInvalidMetadata      ErrorKind = "InvalidMetadata"
	KindIncompatibleHost     ErrorKind = "IncompatibleHost"
	KindDuplicateID          ErrorKind = "DuplicateId"
	KindMissingDependency    ErrorKind = "MissingDependency"
	KindCyclicDependency     ErrorKind = "CyclicDependency"
	KindDependencyFailed     ErrorKind = "DependencyFailed"
	KindInvalidConfig        ErrorKind = "InvalidConfig"
	KindInitializationFailed ErrorKind = "InitializationFailed"
	KindCommandCollision     ErrorKind = "CommandCollision"

	// Dispatch-time kinds, carried by command results.
	KindUnknownCommand        ErrorKind = "UnknownCommand"
	KindMissingRequiredOption ErrorKind = "MissingRequiredOption"
	KindInvalidOptionType     ErrorKind = "InvalidOptionType"
	KindInvalidOptionChoice   ErrorKind = "InvalidOptionChoice"
	KindHandlerFailure        ErrorKind = "HandlerFailure"

	// Host-side kinds.
	KindHostConfig ErrorKind = "HostConfig"
	KindBackend    ErrorKind = "Backend"
	KindInternal   ErrorKind = "Internal"
)

// IsLoadKind reports whether k is raised while loading plugins.
func (k ErrorKind) IsLoadKind() bool {
	switch k {
	case KindInvalidMetadata, KindIncompatibleHost, KindDuplicateID, KindMissingDependency,
		KindCyclicDependency, KindDependencyFailed, KindInvalidConfig, KindInitializationFailed,
		KindCommandCollision:
		return true
	default:
		return false
	}
}

// IsDispatchKind reports whether k is raised while dispatching a command.
func (k ErrorKind) IsDispatchKind() bool {
	switch k {
	case KindUnknownCommand, KindMissingRequiredOption, KindInvalidOptionType,
		KindInvalidOptionChoice, KindHandlerFailure:
		return true
	default:
		return false
	}
}

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution completely
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"
)

// RetryStrategy indicates how an error should be handled in retry scenarios.
type RetryStrategy string

const (
	RetryNever     RetryStrategy = "never"
	RetryBackoff   RetryStrategy = "backoff"
	RetryRateLimit RetryStrategy = "rate_limit"
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	value, exists := c[key]
	return value, exists
}

// GetString retrieves a string context value.
func (c ErrorContext) GetString(key string) (string, bool) {
	if value, exists := c.Get(key); exists {
		if str, ok := value.(string); ok {
			return str, true
		}
	}
	return "", false
}

// Merge combines two contexts, with other taking precedence.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	if c == nil {
		return other
	}
	if other == nil {
		return c
	}
	result := make(ErrorContext, len(c)+len(other))
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}
