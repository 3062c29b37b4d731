package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gemini_cli"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	transitions       *prom.CounterVec
	loadFailures      *prom.CounterVec
	readyPlugins      prom.Gauge
	commandDuration   *prom.HistogramVec
	commandResults    *prom.CounterVec
	generationRetries *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.transitions = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_transitions_total",
			Help:      "Plugin lifecycle transitions by target state",
		}, []string{"plugin", "state"})
		pr.loadFailures = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_load_failures_total",
			Help:      "Plugins that failed to load, by error kind",
		}, []string{"kind"})
		pr.readyPlugins = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "plugins_ready",
			Help:      "Number of plugins currently Ready",
		})
		pr.commandDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Duration of command invocations",
			Buckets:   prom.DefBuckets,
		}, []string{"command"})
		pr.commandResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "command_results_total",
			Help:      "Command results by outcome and error kind",
		}, []string{"command", "result", "kind"})
		pr.generationRetries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "generation_retries_total",
			Help:      "Retried generation backend calls (transient failures)",
		}, []string{"operation"})
		reg.MustRegister(pr.transitions, pr.loadFailures, pr.readyPlugins, pr.commandDuration, pr.commandResults, pr.generationRetries)
	})
	return pr
}

func (p *PrometheusRecorder) IncPluginTransition(plugin, state string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(plugin, state).Inc()
}

func (p *PrometheusRecorder) IncLoadFailure(kind string) {
	if p == nil || p.loadFailures == nil {
		return
	}
	p.loadFailures.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) AddReadyPlugins(delta int) {
	if p == nil || p.readyPlugins == nil {
		return
	}
	p.readyPlugins.Add(float64(delta))
}

func (p *PrometheusRecorder) ObserveCommandDuration(command string, d time.Duration) {
	if p == nil || p.commandDuration == nil {
		return
	}
	p.commandDuration.WithLabelValues(command).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCommandResult(command string, result ResultLabel, kind string) {
	if p == nil || p.commandResults == nil {
		return
	}
	p.commandResults.WithLabelValues(command, string(result), kind).Inc()
}

func (p *PrometheusRecorder) IncGenerationRetry(operation string) {
	if p == nil || p.generationRetries == nil {
		return
	}
	p.generationRetries.WithLabelValues(operation).Inc()
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
