// Package metrics records plugin lifecycle and command dispatch metrics.
//
// Components depend on the Recorder interface. NoopRecorder is the default
// when metrics are disabled; PrometheusRecorder backs the /metrics endpoint
// served by the host. Observer bridges registry events onto a Recorder so
// the registry itself stays unaware of Prometheus.
package metrics
