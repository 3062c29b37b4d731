package history

import (
	"context"
	"log/slog"

	"github.com/ObvexBlackvault/custom-gemini-cli/internal/logfields"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
)

// Observer records every dispatched command into a Store.
type Observer struct {
	store  Store
	logger *slog.Logger
}

// NewObserver returns a plugin.Observer appending to store.
func NewObserver(store Store, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{store: store, logger: logger}
}

// PluginTransition is not recorded.
func (o *Observer) PluginTransition(context.Context, plugin.TransitionEvent) {}

func (o *Observer) CommandDispatched(ctx context.Context, ev plugin.DispatchEvent) {
	e := Entry{
		Command:    ev.Command,
		Plugin:     ev.Plugin,
		Success:    ev.Result.Success,
		Kind:       string(ev.Result.Kind),
		Message:    ev.Result.Message,
		Error:      ev.Result.Error,
		Args:       ev.Args,
		StartedAt:  ev.Started,
		DurationMS: ev.Duration.Milliseconds(),
	}
	// recording must outlive a cancelled request
	if err := o.store.Append(context.WithoutCancel(ctx), e); err != nil {
		o.logger.WarnContext(ctx, "Failed to record invocation",
			logfields.Command(ev.Command), logfields.Error(err))
	}
}
