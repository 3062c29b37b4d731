package plugin

import (
	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
)

// Result is the normalized outcome of a command invocation.
type Result struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Kind    ferrors.ErrorKind `json:"kind,omitempty"`
	Data    any               `json:"data,omitempty"`
	Files   []string          `json:"files,omitempty"`
}

// OK returns a successful result.
func OK(message string, data any) Result {
	return Result{Success: true, Message: message, Data: data}
}

// WithFiles records files produced by the invocation.
func (r Result) WithFiles(files ...string) Result {
	r.Files = append(r.Files, files...)
	return r
}

// FailedResult builds a failed result from err, keeping its kind when classified.
func FailedResult(err error) Result {
	kind := ferrors.KindHandlerFailure
	msg := "command failed"
	if err != nil {
		msg = err.Error()
		if c, ok := ferrors.AsClassified(err); ok {
			kind = c.Kind()
			msg = c.Message()
			if c.Cause() != nil {
				msg += ": " + c.Cause().Error()
			}
		}
	}
	return Result{Success: false, Error: msg, Kind: kind}
}

// normalize enforces the result invariants for a handler result of cmd.
func normalize(cmd Command, r Result) Result {
	if r.Success {
		r.Error = ""
		r.Kind = ""
		return r
	}
	r.Kind = ferrors.KindHandlerFailure
	if r.Error == "" {
		r.Error = r.Message
		if r.Error == "" {
			r.Error = "command failed"
		}
	}
	if !cmd.PartialResults {
		r.Data = nil
		r.Files = nil
	}
	return r
}
