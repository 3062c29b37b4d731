// Package generation implements plugin.Generator on top of the Gemini API.
//
// Every request runs under the configured timeout and is retried with the
// configured backoff when the backend reports a transient failure
// (rate limiting, unavailability, deadline exceeded on the server side).
// Failures surface as Backend errors.
package generation
