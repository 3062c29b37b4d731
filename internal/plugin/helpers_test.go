package plugin

import (
	"context"
	"errors"
	"sync"
)

// callLog records lifecycle calls across plugins in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type testPlugin struct {
	BasePlugin
	log       *callLog
	cmds      []Command
	initErr   error
	initPanic bool
	pctx      *Context
}

func (p *testPlugin) Initialize(_ context.Context, pctx *Context) error {
	if p.log != nil {
		p.log.add("init:" + p.Meta.ID)
	}
	if p.initPanic {
		panic("init exploded")
	}
	p.pctx = pctx
	return p.initErr
}

func (p *testPlugin) Commands() []Command {
	return p.cmds
}

type cleanablePlugin struct {
	testPlugin
	cleanupErr error
}

func (p *cleanablePlugin) Cleanup(context.Context) error {
	if p.log != nil {
		p.log.add("cleanup:" + p.Meta.ID)
	}
	return p.cleanupErr
}

type validatingPlugin struct {
	testPlugin
	schema []byte
	accept func(map[string]any) bool
}

func (p *validatingPlugin) ConfigSchema() []byte { return p.schema }

func (p *validatingPlugin) ValidateConfig(cfg map[string]any) bool {
	if p.accept == nil {
		return true
	}
	return p.accept(cfg)
}

func meta(id string, deps ...string) Metadata {
	return Metadata{ID: id, Name: id, Version: "1.0.0", Dependencies: deps}
}

func newTestPlugin(log *callLog, id string, deps ...string) *testPlugin {
	return &testPlugin{BasePlugin: BasePlugin{Meta: meta(id, deps...)}, log: log}
}

func newCleanable(log *callLog, id string, deps ...string) *cleanablePlugin {
	return &cleanablePlugin{testPlugin: *newTestPlugin(log, id, deps...)}
}

func factoryOf(p Plugin) Factory {
	return func() Plugin { return p }
}

func echoCommand(name string, opts ...Option) Command {
	return Command{
		Name:    name,
		Options: opts,
		Handler: func(_ context.Context, args Args, _ *Context) (Result, error) {
			return OK(name, args.Values()), nil
		},
	}
}

func failingCommand(name string) Command {
	return Command{
		Name: name,
		Handler: func(context.Context, Args, *Context) (Result, error) {
			return Result{Data: "partial"}, errors.New("backend unavailable")
		},
	}
}

// recordingObserver captures every event.
type recordingObserver struct {
	mu          sync.Mutex
	transitions []TransitionEvent
	dispatches  []DispatchEvent
}

func (o *recordingObserver) PluginTransition(_ context.Context, ev TransitionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, ev)
}

func (o *recordingObserver) CommandDispatched(_ context.Context, ev DispatchEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dispatches = append(o.dispatches, ev)
}

func (o *recordingObserver) statesOf(id string) []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []State
	for _, ev := range o.transitions {
		if ev.Plugin == id {
			out = append(out, ev.To)
		}
	}
	return out
}
