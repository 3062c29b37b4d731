package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyPlugin       = "plugin"
	KeyVersion      = "version"
	KeyCommand      = "command"
	KeyState        = "state"
	KeyFromState    = "from_state"
	KeyErrorKind    = "error_kind"
	KeyInvocationID = "invocation_id"
	KeyDurationMS   = "duration_ms"
	KeySchedule     = "schedule_name"
	KeyModel        = "model"
	KeyAttempt      = "attempt"
	KeyPath         = "path"
	KeyError        = "error"
	KeyMethod       = "method"
	KeyStatus       = "status"
	KeyRequestID    = "request_id"
	KeyRemoteAddr   = "remote_addr"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Plugin(id string) slog.Attr         { return slog.String(KeyPlugin, id) }
func Version(v string) slog.Attr         { return slog.String(KeyVersion, v) }
func Command(name string) slog.Attr      { return slog.String(KeyCommand, name) }
func State(s string) slog.Attr           { return slog.String(KeyState, s) }
func FromState(s string) slog.Attr       { return slog.String(KeyFromState, s) }
func ErrorKind(k string) slog.Attr       { return slog.String(KeyErrorKind, k) }
func InvocationID(id string) slog.Attr   { return slog.String(KeyInvocationID, id) }
func ScheduleName(n string) slog.Attr    { return slog.String(KeySchedule, n) }
func Model(m string) slog.Attr           { return slog.String(KeyModel, m) }
func Attempt(n int) slog.Attr            { return slog.Int(KeyAttempt, n) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func Duration(d time.Duration) slog.Attr { return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000) }
func Method(m string) slog.Attr          { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr          { return slog.Int(KeyStatus, code) }
func RequestID(id string) slog.Attr      { return slog.String(KeyRequestID, id) }
func RemoteAddr(a string) slog.Attr      { return slog.String(KeyRemoteAddr, a) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
