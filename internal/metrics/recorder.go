package metrics

import "time"

// ResultLabel enumerates command result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailure ResultLabel = "failure"
)

// Recorder defines observability hooks for plugin lifecycle and command
// metrics. Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	IncPluginTransition(plugin, state string)
	IncLoadFailure(kind string)
	AddReadyPlugins(delta int)
	ObserveCommandDuration(command string, d time.Duration)
	IncCommandResult(command string, result ResultLabel, kind string)
	IncGenerationRetry(operation string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncPluginTransition(string, string)           {}
func (NoopRecorder) IncLoadFailure(string)                        {}
func (NoopRecorder) AddReadyPlugins(int)                          {}
func (NoopRecorder) ObserveCommandDuration(string, time.Duration) {}
func (NoopRecorder) IncCommandResult(string, ResultLabel, string) {}
func (NoopRecorder) IncGenerationRetry(string)                    {}
