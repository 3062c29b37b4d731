package history

import (
	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
)

var (
	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = ferrors.InternalError("history store is closed").Build()
)

func storeError(err error, msg string) error {
	return ferrors.WrapError(err, ferrors.KindInternal, msg).Build()
}
