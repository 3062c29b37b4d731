package metrics

import (
	"context"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
)

// unknownCommand labels dispatches that never matched a command, keeping
// label cardinality bounded by the registered command set.
const unknownCommand = "unknown"

// Observer adapts a Recorder to plugin.Observer.
type Observer struct {
	rec Recorder
}

// NewObserver returns an observer feeding rec. A nil rec records nothing.
func NewObserver(rec Recorder) *Observer {
	if rec == nil {
		rec = NoopRecorder{}
	}
	return &Observer{rec: rec}
}

func (o *Observer) PluginTransition(_ context.Context, ev plugin.TransitionEvent) {
	o.rec.IncPluginTransition(ev.Plugin, ev.To.String())
	switch {
	case ev.To == plugin.StateReady:
		o.rec.AddReadyPlugins(1)
	case ev.From == plugin.StateReady:
		o.rec.AddReadyPlugins(-1)
	}
	if ev.To == plugin.StateFailed && ev.Kind.IsLoadKind() {
		o.rec.IncLoadFailure(string(ev.Kind))
	}
}

func (o *Observer) CommandDispatched(_ context.Context, ev plugin.DispatchEvent) {
	name := ev.Command
	if ev.Result.Kind == ferrors.KindUnknownCommand {
		name = unknownCommand
	}
	o.rec.ObserveCommandDuration(name, ev.Duration)
	if ev.Result.Success {
		o.rec.IncCommandResult(name, ResultSuccess, "")
		return
	}
	o.rec.IncCommandResult(name, ResultFailure, string(ev.Result.Kind))
}
