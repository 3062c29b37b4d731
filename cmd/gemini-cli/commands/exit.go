package commands

import (
	"errors"
	"io"
	"log/slog"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
)

// reportedError is a failure whose message has already been written.
type reportedError struct {
	kind ferrors.ErrorKind
	msg  string
}

func (e *reportedError) Error() string { return e.msg }

// Exit reports err on w and returns the process exit code.
func Exit(err error, verbose bool, w io.Writer) int {
	if err == nil {
		return 0
	}
	var reported *reportedError
	if errors.As(err, &reported) {
		return ferrors.ExitCodeForKind(reported.kind)
	}
	return ferrors.NewCLIErrorAdapter(verbose, slog.Default()).Report(w, err)
}
