package server

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/ObvexBlackvault/custom-gemini-cli/internal/config"
	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/logfields"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
)

// Dispatcher runs a command by name.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, raw map[string]any) plugin.Result
}

// Scheduler wraps a gocron scheduler that dispatches configured commands periodically.
type Scheduler struct {
	scheduler  gocron.Scheduler
	dispatcher Dispatcher
	logger     *slog.Logger
	ctx        context.Context
}

// NewScheduler creates a scheduler dispatching through d.
func NewScheduler(d Dispatcher, logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.KindInternal, "failed to create scheduler").Build()
	}
	return &Scheduler{scheduler: s, dispatcher: d, logger: logger, ctx: context.Background()}, nil
}

// Add registers a schedule. Overlapping runs of the same schedule are skipped.
func (s *Scheduler) Add(sch config.Schedule) error {
	every := config.Duration(sch.Every)
	if every <= 0 {
		return ferrors.HostConfigError("schedule " + sch.Name + " has no valid interval").Build()
	}
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(s.run, sch),
		gocron.WithName(sch.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.KindHostConfig, "failed to schedule "+sch.Name).Build()
	}
	s.logger.Info("Scheduled command",
		logfields.ScheduleName(sch.Name),
		logfields.Command(sch.Command),
		slog.Duration("every", every))
	return nil
}

// Start begins running jobs. Dispatches use ctx for cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.scheduler.Start()
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) run(sch config.Schedule) {
	id := uuid.NewString()
	start := time.Now()
	res := s.dispatcher.Dispatch(s.ctx, sch.Command, maps.Clone(sch.Args))
	attrs := []any{
		logfields.ScheduleName(sch.Name),
		logfields.Command(sch.Command),
		logfields.InvocationID(id),
		logfields.Duration(time.Since(start)),
	}
	if !res.Success {
		attrs = append(attrs, logfields.ErrorKind(string(res.Kind)), slog.String("reason", res.Error))
		s.logger.Warn("Scheduled command failed", attrs...)
		return
	}
	s.logger.Info("Scheduled command completed", attrs...)
}
