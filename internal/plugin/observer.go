package plugin

import (
	"context"
	"time"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
)

// TransitionEvent reports a lifecycle state change.
type TransitionEvent struct {
	Plugin  string            `json:"plugin"`
	Version string            `json:"version,omitempty"`
	From    State             `json:"from"`
	To      State             `json:"to"`
	Kind    ferrors.ErrorKind `json:"kind,omitempty"`
	Reason  string            `json:"reason,omitempty"`
	At      time.Time         `json:"at"`
}

// DispatchEvent reports a finished command invocation, successful or not.
type DispatchEvent struct {
	Command  string         `json:"command"`
	Plugin   string         `json:"plugin,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
	Result   Result         `json:"result"`
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration"`
}

// Observer receives registry events. Implementations must be safe for
// concurrent use and should not block.
type Observer interface {
	PluginTransition(ctx context.Context, ev TransitionEvent)
	CommandDispatched(ctx context.Context, ev DispatchEvent)
}

// Observers fans events out to several observers.
type Observers []Observer

func (o Observers) PluginTransition(ctx context.Context, ev TransitionEvent) {
	for _, obs := range o {
		obs.PluginTransition(ctx, ev)
	}
}

func (o Observers) CommandDispatched(ctx context.Context, ev DispatchEvent) {
	for _, obs := range o {
		obs.CommandDispatched(ctx, ev)
	}
}
