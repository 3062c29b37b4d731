// Package server exposes the plugin registry over HTTP and runs scheduled
// commands while serving.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/ObvexBlackvault/custom-gemini-cli/internal/config"
	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/history"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/logfields"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/server/middleware"
)

const (
	requestTimeout  = 5 * time.Minute
	shutdownTimeout = 30 * time.Second
)

// Options configures a Server. History and Metrics are optional.
type Options struct {
	Addr      string
	Registry  *plugin.Registry
	History   history.Store
	Metrics   http.Handler
	Schedules []config.Schedule
	Logger    *slog.Logger
}

// Server is the HTTP surface of the plugin host.
type Server struct {
	registry  *plugin.Registry
	history   history.Store
	metrics   http.Handler
	logger    *slog.Logger
	errors    *ferrors.HTTPErrorAdapter
	router    *chi.Mux
	server    *http.Server
	scheduler *Scheduler
	started   time.Time
}

// New creates a server and registers its schedules. Schedules naming a
// command that is not registered are kept and logged; their runs fail with
// UnknownCommand until a plugin provides it.
func New(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, ferrors.InternalError("server requires a plugin registry").Build()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := opts.Addr
	if addr == "" {
		addr = config.DefaultServerAddr
	}

	s := &Server{
		registry: opts.Registry,
		history:  opts.History,
		metrics:  opts.Metrics,
		logger:   logger,
		errors:   ferrors.NewHTTPErrorAdapter(logger),
		router:   chi.NewRouter(),
		started:  time.Now(),
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if len(opts.Schedules) > 0 {
		sch, err := NewScheduler(opts.Registry, logger)
		if err != nil {
			return nil, err
		}
		known := make(map[string]struct{})
		for _, c := range opts.Registry.Commands() {
			known[c.Name] = struct{}{}
			for _, a := range c.Aliases {
				known[a] = struct{}{}
			}
		}
		for _, schedule := range opts.Schedules {
			if _, ok := known[schedule.Command]; !ok {
				logger.Warn("Schedule names an unregistered command",
					logfields.ScheduleName(schedule.Name), logfields.Command(schedule.Command))
			}
			if err := sch.Add(schedule); err != nil {
				_ = sch.Stop()
				return nil, err
			}
		}
		s.scheduler = sch
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Chain(s.logger, s.errors))
	s.router.Use(chimw.Timeout(requestTimeout))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/plugins", s.handlePlugins)
	s.router.Get("/plugins/{id}", s.handlePlugin)
	s.router.Get("/commands", s.handleCommands)
	s.router.Post("/commands/{name}", s.handleDispatch)
	s.router.Get("/history", s.handleHistory)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Run serves until ctx is cancelled, then stops the scheduler and shuts the
// HTTP server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if s.scheduler != nil {
		s.scheduler.Start(gctx)
	}

	g.Go(func() error {
		s.logger.Info("Serving plugin host", slog.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return ferrors.WrapError(err, ferrors.KindHostConfig, "failed to listen on "+s.server.Addr).Build()
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown(context.WithoutCancel(gctx))
	})
	return g.Wait()
}

func (s *Server) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var errs []error
	if s.scheduler != nil {
		if err := s.scheduler.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info("Server stopped")
	if len(errs) > 0 {
		return ferrors.WrapError(errors.Join(errs...), ferrors.KindInternal, "failed to stop server").Build()
	}
	return nil
}
