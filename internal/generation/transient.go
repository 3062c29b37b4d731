package generation

import (
	"context"
	"errors"
	"net/http"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
)

// isTransient reports whether a failed call is worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if c, ok := ferrors.AsClassified(err); ok {
		return c.CanRetry()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if ae, ok := apierror.FromError(err); ok {
		if code := ae.HTTPCode(); code > 0 {
			return transientHTTP(code)
		}
		if st := ae.GRPCStatus(); st != nil {
			return transientCode(st.Code())
		}
	}
	if st, ok := status.FromError(err); ok {
		return transientCode(st.Code())
	}
	return false
}

func transientHTTP(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func transientCode(c codes.Code) bool {
	switch c {
	case codes.ResourceExhausted, codes.Unavailable, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
		return true
	}
	return false
}
