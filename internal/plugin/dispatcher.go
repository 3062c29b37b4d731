package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/logfields"
)

// Dispatch resolves name (exact command name first, then alias), validates
// raw against the command's options and invokes its handler. Every outcome,
// including unknown commands and handler panics, is returned as a Result.
// Dispatch is safe for concurrent use.
func (r *Registry) Dispatch(ctx context.Context, name string, raw map[string]any) Result {
	started := time.Now()

	e, err := r.acquire(name)
	if err != nil {
		res := FailedResult(err)
		r.observer.CommandDispatched(ctx, DispatchEvent{
			Command:  name,
			Args:     maps.Clone(raw),
			Result:   res,
			Started:  started,
			Duration: time.Since(started),
		})
		return res
	}
	defer e.inst.inflight.Done()

	res := r.invoke(ctx, e, raw)
	elapsed := time.Since(started)

	logger := r.logger.With(logfields.Command(e.cmd.Name), logfields.Plugin(e.inst.meta.ID))
	if res.Success {
		logger.Debug("Command completed", logfields.Duration(elapsed))
	} else {
		logger.Info("Command failed",
			logfields.ErrorKind(string(res.Kind)),
			logfields.Duration(elapsed),
			slog.String(logfields.KeyError, res.Error))
	}

	r.observer.CommandDispatched(ctx, DispatchEvent{
		Command:  e.cmd.Name,
		Plugin:   e.inst.meta.ID,
		Args:     maps.Clone(raw),
		Result:   res,
		Started:  started,
		Duration: elapsed,
	})
	return res
}

// acquire looks up name and registers an in-flight invocation on the owning
// plugin. The caller must call inflight.Done on success.
func (r *Registry) acquire(name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closing {
		return nil, ferrors.Newf(ferrors.KindUnknownCommand, "unknown command %q: plugins are unloading", name).Build()
	}
	e, ok := r.names[name]
	if !ok {
		e, ok = r.aliases[name]
	}
	if !ok {
		return nil, ferrors.Newf(ferrors.KindUnknownCommand, "unknown command %q", name).
			WithContext("command", name).Build()
	}
	e.inst.inflight.Add(1)
	return e, nil
}

func (r *Registry) invoke(ctx context.Context, e *entry, raw map[string]any) Result {
	args, err := applyOptions(e.cmd.Options, raw)
	if err != nil {
		return FailedResult(err)
	}

	res, herr, fault := callHandler(ctx, e.cmd.Handler, args, r.contexts.New(e.inst.meta.ID))
	switch {
	case fault != nil:
		r.withdraw(ctx, e.inst, fault)
		res.Success = false
		res.Error = fault.Error()
	case herr != nil:
		res.Success = false
		res.Error = herr.Error()
	}
	return normalize(e.cmd, res)
}

func callHandler(ctx context.Context, h HandlerFunc, args Args, pctx *Context) (res Result, err, fault error) {
	defer func() {
		if rec := recover(); rec != nil {
			fault = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	res, err = h(ctx, args, pctx)
	return res, err, nil
}

// withdraw fails a plugin whose handler faulted and removes its commands.
func (r *Registry) withdraw(ctx context.Context, inst *instance, cause error) {
	r.mu.Lock()
	for k, e := range r.names {
		if e.inst == inst {
			delete(r.names, k)
		}
	}
	for k, e := range r.aliases {
		if e.inst == inst {
			delete(r.aliases, k)
		}
	}
	r.mu.Unlock()

	inst.mu.Lock()
	inst.commands = nil
	inst.mu.Unlock()

	r.transition(ctx, inst, StateFailed,
		ferrors.WrapError(cause, ferrors.KindHandlerFailure, "command handler faulted").ForPlugin(inst.meta.ID).Build())
}
