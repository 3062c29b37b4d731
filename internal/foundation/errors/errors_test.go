package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(KindIncompatibleHost, "host too old").
			ForPlugin("alpha").
			WithContext("min_cli_version", "2.0.0").
			Build()

		assert.Equal(t, KindIncompatibleHost, err.Kind())
		assert.Equal(t, SeverityError, err.Severity())
		assert.Equal(t, "alpha", err.Plugin())
		assert.Equal(t, "[IncompatibleHost:alpha] host too old", err.Error())

		v, ok := err.Context().GetString("min_cli_version")
		require.True(t, ok)
		assert.Equal(t, "2.0.0", v)
	})

	t.Run("Wrapped errors keep their kind", func(t *testing.T) {
		cause := errors.New("boom")
		err := WrapError(cause, KindInitializationFailed, "initialize failed").Build()
		wrapped := fmt.Errorf("loading: %w", err)

		assert.ErrorIs(t, wrapped, cause)
		assert.Equal(t, KindInitializationFailed, KindOf(wrapped))
		assert.True(t, HasKind(wrapped, KindInitializationFailed))
		assert.Equal(t, KindInternal, KindOf(cause))
	})

	t.Run("WithContext copies", func(t *testing.T) {
		base := NewError(KindInvalidConfig, "bad").Build()
		extended := base.WithContext("key", "value")

		_, ok := base.Context().Get("key")
		assert.False(t, ok)
		_, ok = extended.Context().Get("key")
		assert.True(t, ok)
	})

	t.Run("Is compares kind and message", func(t *testing.T) {
		a := NewError(KindUnknownCommand, "unknown command").Build()
		b := NewError(KindUnknownCommand, "unknown command").ForPlugin("x").Build()
		c := NewError(KindHandlerFailure, "unknown command").Build()

		assert.ErrorIs(t, a, b)
		assert.NotErrorIs(t, a, c)
	})
}

func TestErrorBuilder(t *testing.T) {
	tests := []struct {
		name     string
		builder  *ErrorBuilder
		kind     ErrorKind
		severity ErrorSeverity
		retry    bool
	}{
		{"HostConfigError", HostConfigError("x"), KindHostConfig, SeverityFatal, false},
		{"BackendError", BackendError("x"), KindBackend, SeverityError, false},
		{"BackendError retryable", BackendError("x").Retryable(), KindBackend, SeverityError, true},
		{"RateLimit", BackendError("x").RateLimit().Warning(), KindBackend, SeverityWarning, true},
		{"InternalError", InternalError("x"), KindInternal, SeverityFatal, false},
		{"Newf", Newf(KindUnknownCommand, "unknown %q", "foo"), KindUnknownCommand, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.builder.Build()
			assert.Equal(t, tt.kind, err.Kind())
			assert.Equal(t, tt.severity, err.Severity())
			assert.Equal(t, tt.retry, err.CanRetry())
			assert.Equal(t, tt.retry, IsRetryable(err))
		})
	}
}

func TestErrorKindGroups(t *testing.T) {
	assert.True(t, KindCyclicDependency.IsLoadKind())
	assert.False(t, KindCyclicDependency.IsDispatchKind())
	assert.True(t, KindInvalidOptionChoice.IsDispatchKind())
	assert.False(t, KindHostConfig.IsLoadKind())
	assert.False(t, KindHostConfig.IsDispatchKind())
}

func TestErrorContext(t *testing.T) {
	var ctx ErrorContext
	ctx = ctx.Set("key1", "value1").Set("key2", 42)

	v1, ok := ctx.GetString("key1")
	require.True(t, ok)
	assert.Equal(t, "value1", v1)

	_, ok = ctx.GetString("key2")
	assert.False(t, ok)

	merged := ctx.Merge(ErrorContext{"key2": 43, "key3": true})
	assert.Equal(t, 43, merged["key2"])
	assert.Equal(t, 42, ctx["key2"])
	assert.Len(t, merged, 3)
}
