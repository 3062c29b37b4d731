// Package host assembles the plugin runtime from configuration: capability
// providers, observers and the registry loaded with the builtin plugins.
package host

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/ObvexBlackvault/custom-gemini-cli/internal/config"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/events"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/filesystem"
	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/generation"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/history"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/logfields"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/metrics"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin/builtin"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/project"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/version"
)

// Host owns the registry and every resource created for it.
type Host struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *plugin.Registry
	report   *plugin.LoadReport
	history  history.Store
	metrics  *prom.Registry
	closers  []func() error
}

type options struct {
	cwd         string
	logger      *slog.Logger
	generator   plugin.Generator
	fs          plugin.FileSystem
	project     *plugin.ProjectInfo
	skipProject bool
	factories   []plugin.Factory
	eventsConn  events.Conn
	hostVersion string
}

// Option customizes New.
type Option func(*options)

// WithCwd sets the working directory plugins see; defaults to ".".
func WithCwd(dir string) Option { return func(o *options) { o.cwd = dir } }

// WithLogger sets the host logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithGenerator replaces the Gemini generator.
func WithGenerator(g plugin.Generator) Option { return func(o *options) { o.generator = g } }

// WithFileSystem replaces the working directory file system.
func WithFileSystem(fs plugin.FileSystem) Option { return func(o *options) { o.fs = fs } }

// WithProject fixes the project instead of detecting it. Nil disables detection.
func WithProject(p *plugin.ProjectInfo) Option {
	return func(o *options) {
		o.project = p
		o.skipProject = true
	}
}

// WithFactories loads the given plugins instead of the builtin catalog.
func WithFactories(f ...plugin.Factory) Option { return func(o *options) { o.factories = f } }

// WithEventsConn publishes events over conn instead of dialing events.url.
func WithEventsConn(conn events.Conn) Option { return func(o *options) { o.eventsConn = conn } }

// WithHostVersion overrides the version plugins are checked against.
func WithHostVersion(v string) Option { return func(o *options) { o.hostVersion = v } }

// New builds the runtime and loads plugins. Plugin load failures are logged
// and reported by LoadReport; only host-level problems return an error.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *Host, err error) {
	o := options{cwd: ".", hostVersion: version.Host()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	h := &Host{cfg: cfg, logger: o.logger}
	defer func() {
		if err != nil {
			_ = h.closeResources()
		}
	}()

	var observers []plugin.Observer
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Enabled {
		h.metrics = prom.NewRegistry()
		rec := metrics.NewPrometheusRecorder(h.metrics)
		recorder = rec
		observers = append(observers, metrics.NewObserver(rec))
	}

	if cfg.History.Enabled {
		store, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		h.history = store
		h.closers = append(h.closers, store.Close)
		observers = append(observers, history.NewObserver(store, o.logger))
	}

	switch {
	case o.eventsConn != nil:
		pub := events.NewPublisher(o.eventsConn, cfg.Events.SubjectPrefix, o.logger)
		h.closers = append(h.closers, pub.Close)
		observers = append(observers, pub)
	case cfg.Events.URL != "":
		pub, err := events.Connect(cfg.Events, o.logger)
		if err != nil {
			return nil, err
		}
		h.closers = append(h.closers, pub.Close)
		observers = append(observers, pub)
	}

	gen := o.generator
	if gen == nil {
		gen = h.newGenerator(ctx, recorder)
	}
	fs := o.fs
	if fs == nil {
		fs = filesystem.New(o.cwd)
	}
	proj := o.project
	if !o.skipProject {
		proj = h.detectProject(o.cwd)
	}

	contexts := plugin.NewContextFactory(plugin.Providers{
		Generator:    gen,
		FS:           fs,
		Logger:       o.logger,
		Cwd:          o.cwd,
		Project:      proj,
		SharedConfig: cfg.Plugins.Shared,
		PluginConfig: cfg.Plugins.Settings,
	})
	reg, err := plugin.NewRegistry(o.hostVersion,
		plugin.WithContextFactory(contexts),
		plugin.WithLogger(o.logger),
		plugin.WithObservers(observers...))
	if err != nil {
		return nil, err
	}
	h.registry = reg

	factories := o.factories
	if factories == nil {
		factories = builtin.Factories(cfg.IsDisabled)
	}
	report, err := reg.LoadAll(ctx, factories)
	if err != nil {
		return nil, err
	}
	h.report = report
	for _, f := range report.Failures {
		o.logger.Warn("Plugin failed to load",
			logfields.Plugin(f.Plugin),
			logfields.ErrorKind(string(f.Kind)),
			slog.String("reason", f.Reason))
	}
	return h, nil
}

// newGenerator connects to Gemini. A missing key leaves generation
// unavailable instead of failing the host.
func (h *Host) newGenerator(ctx context.Context, rec metrics.Recorder) plugin.Generator {
	client, err := generation.New(ctx, h.cfg.Generation,
		generation.WithLogger(h.logger), generation.WithRecorder(rec))
	if err != nil {
		h.logger.Warn("Generation backend unavailable", logfields.Error(err))
		return generation.Unavailable{Reason: err}
	}
	h.closers = append(h.closers, client.Close)
	h.logger.Debug("Generation backend ready", logfields.Model(client.Model()))
	return client
}

func (h *Host) detectProject(cwd string) *plugin.ProjectInfo {
	info, ok, err := project.Detect(cwd)
	if err != nil {
		h.logger.Warn("Project detection failed", logfields.Path(cwd), logfields.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	h.logger.Debug("Project detected",
		slog.String("name", info.Name), slog.String("type", info.Type), slog.String("language", info.Language))
	return info
}

// Registry returns the plugin registry.
func (h *Host) Registry() *plugin.Registry { return h.registry }

// LoadReport returns the outcome of loading plugins.
func (h *Host) LoadReport() *plugin.LoadReport { return h.report }

// Config returns the host configuration.
func (h *Host) Config() *config.Config { return h.cfg }

// History returns the invocation history store, when enabled.
func (h *Host) History() (history.Store, bool) { return h.history, h.history != nil }

// MetricsHandler serves Prometheus metrics, or nil when metrics are disabled.
func (h *Host) MetricsHandler() http.Handler {
	if h.metrics == nil {
		return nil
	}
	return metrics.HTTPHandler(h.metrics)
}

// Close unloads every plugin, then releases stores and connections.
func (h *Host) Close(ctx context.Context) error {
	var errs []error
	if h.registry != nil {
		report := h.registry.UnloadAll(ctx)
		for _, f := range report.Failures {
			h.logger.Warn("Plugin cleanup failed", logfields.Plugin(f.Plugin), slog.String("reason", f.Reason))
		}
	}
	if err := h.closeResources(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return ferrors.WrapError(errors.Join(errs...), ferrors.KindInternal, "failed to close host").Build()
	}
	return nil
}

func (h *Host) closeResources() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}
