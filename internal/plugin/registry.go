package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/logfields"
)

// Registry owns the loaded plugins, their lifecycle state and the command
// table. A Registry loads plugins once and unloads them once.
type Registry struct {
	validator *MetadataValidator
	contexts  *ContextFactory
	logger    *slog.Logger
	observer  Observers

	// lifecycle serializes LoadAll, RegisterCommands and UnloadAll.
	lifecycle sync.Mutex

	mu         sync.RWMutex
	discovered []*instance
	instances  map[string]*instance
	loadOrder  []*instance
	names      map[string]*entry
	aliases    map[string]*entry
	loaded     bool
	closing    bool
}

type instance struct {
	seq  int
	meta Metadata
	caps CapabilitySet

	mu          sync.Mutex
	plugin      Plugin
	state       State
	failure     *Failure
	initialized bool
	registered  bool
	commands    []string

	inflight sync.WaitGroup
}

type entry struct {
	cmd  Command
	inst *instance
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithContextFactory sets the factory used to build plugin contexts.
func WithContextFactory(f *ContextFactory) RegistryOption {
	return func(r *Registry) { r.contexts = f }
}

// WithLogger sets the registry's own logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithObservers adds observers notified of transitions and dispatches.
func WithObservers(obs ...Observer) RegistryOption {
	return func(r *Registry) {
		for _, o := range obs {
			if o != nil {
				r.observer = append(r.observer, o)
			}
		}
	}
}

// NewRegistry creates an empty registry for the given host version.
func NewRegistry(hostVersion string, opts ...RegistryOption) (*Registry, error) {
	validator, err := NewMetadataValidator(hostVersion)
	if err != nil {
		return nil, err
	}
	r := &Registry{
		validator: validator,
		instances: make(map[string]*instance),
		names:     make(map[string]*entry),
		aliases:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.contexts == nil {
		r.contexts = NewContextFactory(Providers{Logger: r.logger})
	}
	return r, nil
}

// HostVersion returns the version plugins are validated against.
func (r *Registry) HostVersion() string {
	return r.validator.HostVersion()
}

// LoadReport summarizes a LoadAll call.
type LoadReport struct {
	// Loaded lists the Ready plugins in realized load order.
	Loaded   []string  `json:"loaded"`
	Failures []Failure `json:"failures,omitempty"`
}

// Failed returns the failures recorded for pluginID.
func (r *LoadReport) Failed(pluginID string) []Failure {
	var out []Failure
	for _, f := range r.Failures {
		if f.Plugin == pluginID {
			out = append(out, f)
		}
	}
	return out
}

// LoadAll instantiates, validates, orders and initializes the plugins built
// by factories, then registers their commands. Per-plugin failures are
// reported in the LoadReport; the error is reserved for misuse.
func (r *Registry) LoadAll(ctx context.Context, factories []Factory) (*LoadReport, error) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	if r.loaded || r.closing {
		r.mu.Unlock()
		return nil, ferrors.InternalError("plugins have already been loaded into this registry").Build()
	}
	r.loaded = true
	r.mu.Unlock()

	report := &LoadReport{}
	fail := func(inst *instance, err error) {
		r.transition(ctx, inst, StateFailed, err)
		report.Failures = append(report.Failures, newFailure(inst.label(), err))
	}

	var validated []*instance
	for i, factory := range factories {
		inst, err := instantiate(i, factory)
		r.mu.Lock()
		r.discovered = append(r.discovered, inst)
		r.mu.Unlock()
		if err != nil {
			fail(inst, err)
			continue
		}
		if err := r.validator.Validate(inst.meta); err != nil {
			fail(inst, err)
			continue
		}
		r.transition(ctx, inst, StateValidated, nil)
		r.mu.Lock()
		r.instances[inst.meta.ID] = inst
		r.mu.Unlock()
		validated = append(validated, inst)
	}

	metas := make([]Metadata, len(validated))
	byID := make(map[string]*instance, len(validated))
	for i, inst := range validated {
		metas[i] = inst.meta
		byID[inst.meta.ID] = inst
	}
	res := Resolve(metas)
	for _, f := range res.Failures {
		fail(byID[f.Plugin], f.Err)
	}

	for _, id := range res.Order {
		inst := byID[id]
		if err := ctx.Err(); err != nil {
			fail(inst, ferrors.WrapError(err, ferrors.KindInitializationFailed, "loading cancelled").ForPlugin(id).Build())
			continue
		}
		if dep, ok := r.unreadyDependency(inst); ok {
			fail(inst, ferrors.Newf(ferrors.KindDependencyFailed, "dependency %q is not ready", dep).
				ForPlugin(id).WithContext("dependency", dep).Build())
			continue
		}
		if err := ValidateConfig(inst.plugin, r.contexts.Config(id)); err != nil {
			fail(inst, err)
			continue
		}

		r.transition(ctx, inst, StateInitializing, nil)
		if err := r.initialize(ctx, inst); err != nil {
			fail(inst, ferrors.WrapError(err, ferrors.KindInitializationFailed, "initialize failed").ForPlugin(id).Build())
			continue
		}
		inst.mu.Lock()
		inst.initialized = true
		inst.mu.Unlock()
		r.mu.Lock()
		r.loadOrder = append(r.loadOrder, inst)
		r.mu.Unlock()
		r.transition(ctx, inst, StateReady, nil)
	}

	report.Failures = append(report.Failures, r.registerCommands(ctx)...)
	report.Loaded = r.LoadOrder()

	r.logger.Info("Plugins loaded",
		slog.Int("ready", len(report.Loaded)),
		slog.Int("failures", len(report.Failures)))
	return report, nil
}

// RegisterCommands adds the commands of Ready plugins that have not been
// registered yet. A command whose name or alias is already taken is rejected
// as a whole; the earlier command stays dispatchable.
func (r *Registry) RegisterCommands(ctx context.Context) []Failure {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	return r.registerCommands(ctx)
}

func (r *Registry) registerCommands(ctx context.Context) []Failure {
	r.mu.RLock()
	var pending []*instance
	for _, inst := range r.loadOrder {
		if inst.currentState() == StateReady && !inst.isRegistered() {
			pending = append(pending, inst)
		}
	}
	closing := r.closing
	r.mu.RUnlock()
	if closing {
		return nil
	}

	var failures []Failure
	for _, inst := range pending {
		id := inst.meta.ID
		cmds, err := commandsOf(inst.plugin)
		if err != nil {
			err = ferrors.WrapError(err, ferrors.KindInvalidMetadata, "commands could not be read").ForPlugin(id).Build()
			inst.markRegistered(nil)
			r.transition(ctx, inst, StateFailed, err)
			failures = append(failures, newFailure(id, err))
			continue
		}

		var accepted []string
		r.mu.Lock()
		for _, cmd := range cmds {
			if err := validateDeclaration(cmd); err != nil {
				f := newFailure(id, ferrors.WrapError(err, ferrors.KindInvalidMetadata, "malformed command").ForPlugin(id).Build())
				f.Command = cmd.Name
				failures = append(failures, f)
				continue
			}
			if key, owner, taken := r.collision(cmd); taken {
				f := newFailure(id, ferrors.Newf(ferrors.KindCommandCollision,
					"command %q collides with %q registered by %s", cmd.Name, key, owner).
					ForPlugin(id).WithContext("key", key).Build())
				f.Command = cmd.Name
				failures = append(failures, f)
				continue
			}
			e := &entry{cmd: cmd, inst: inst}
			r.names[cmd.Name] = e
			for _, alias := range cmd.Keys()[1:] {
				r.aliases[alias] = e
			}
			accepted = append(accepted, cmd.Name)
		}
		r.mu.Unlock()
		inst.markRegistered(accepted)
	}

	for _, f := range failures {
		r.logger.Warn("Command not registered",
			logfields.Plugin(f.Plugin),
			logfields.Command(f.Command),
			logfields.ErrorKind(string(f.Kind)),
			slog.String("reason", f.Reason))
	}
	return failures
}

// collision reports the first key of cmd already present in the table.
// Callers hold r.mu.
func (r *Registry) collision(cmd Command) (key, owner string, taken bool) {
	for _, k := range cmd.Keys() {
		if e, ok := r.names[k]; ok {
			return k, e.inst.meta.ID, true
		}
		if e, ok := r.aliases[k]; ok {
			return k, e.inst.meta.ID, true
		}
	}
	return "", "", false
}

// UnloadReport summarizes an UnloadAll call.
type UnloadReport struct {
	Unloaded []string  `json:"unloaded"`
	Failures []Failure `json:"failures,omitempty"`
}

// UnloadAll stops dispatching, waits for running invocations and cleans up
// every initialized plugin in reverse load order. Cleanup failures are logged
// and reported; they never stop the remaining cleanups.
func (r *Registry) UnloadAll(ctx context.Context) *UnloadReport {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	r.closing = true
	order := slices.Clone(r.loadOrder)
	clear(r.names)
	clear(r.aliases)
	r.mu.Unlock()

	r.waitIdle(ctx, order)

	report := &UnloadReport{}
	for i := len(order) - 1; i >= 0; i-- {
		inst := order[i]
		id := inst.meta.ID
		r.transition(ctx, inst, StateCleaning, nil)
		if err := cleanup(ctx, inst); err != nil {
			err = ferrors.WrapError(err, ferrors.KindInternal, "cleanup failed").ForPlugin(id).Warning().Build()
			r.logger.Warn("Plugin cleanup failed", logfields.Plugin(id), logfields.Error(err))
			report.Failures = append(report.Failures, newFailure(id, err))
		}
		r.transition(ctx, inst, StateUnloaded, nil)
		report.Unloaded = append(report.Unloaded, id)
	}

	r.mu.Lock()
	for _, inst := range r.discovered {
		inst.mu.Lock()
		inst.plugin = nil
		inst.commands = nil
		inst.mu.Unlock()
	}
	r.loadOrder = nil
	r.mu.Unlock()
	return report
}

func (r *Registry) waitIdle(ctx context.Context, order []*instance) {
	done := make(chan struct{})
	go func() {
		for _, inst := range order {
			inst.inflight.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("Unloading plugins with invocations still running", logfields.Error(ctx.Err()))
	}
}

// PluginInfo is a snapshot of one discovered plugin.
type PluginInfo struct {
	Metadata     Metadata      `json:"metadata"`
	State        State         `json:"state"`
	Capabilities CapabilitySet `json:"capabilities"`
	Commands     []string      `json:"commands,omitempty"`
	Failure      *Failure      `json:"failure,omitempty"`
}

// Plugins returns a snapshot of every discovered plugin in discovery order.
func (r *Registry) Plugins() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PluginInfo, 0, len(r.discovered))
	for _, inst := range r.discovered {
		out = append(out, inst.info())
	}
	return out
}

// Plugin returns a snapshot of the plugin with the given id. When several
// discovered plugins share the id, the accepted one wins.
func (r *Registry) Plugin(id string) (PluginInfo, bool) {
	inst, ok := r.lookup(id)
	if !ok {
		return PluginInfo{}, false
	}
	return inst.info(), true
}

// State returns the lifecycle state of the plugin with the given id.
func (r *Registry) State(id string) (State, bool) {
	inst, ok := r.lookup(id)
	if !ok {
		return StateDiscovered, false
	}
	return inst.currentState(), true
}

func (r *Registry) lookup(id string) (*instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if inst, ok := r.instances[id]; ok {
		return inst, true
	}
	for _, inst := range r.discovered {
		if inst.meta.ID == id {
			return inst, true
		}
	}
	return nil, false
}

// LoadOrder returns the ids of the Ready plugins in the order they were initialized.
func (r *Registry) LoadOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, inst := range r.loadOrder {
		if inst.currentState() == StateReady {
			out = append(out, inst.meta.ID)
		}
	}
	return out
}

// CommandInfo describes a dispatchable command.
type CommandInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	Options     []Option `json:"options,omitempty"`
	Plugin      string   `json:"plugin"`
}

// Commands lists the dispatchable commands sorted by name.
func (r *Registry) Commands() []CommandInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CommandInfo, 0, len(r.names))
	for _, e := range r.names {
		var aliases []string
		for _, a := range e.cmd.Keys()[1:] {
			if r.aliases[a] == e {
				aliases = append(aliases, a)
			}
		}
		out = append(out, CommandInfo{
			Name:        e.cmd.Name,
			Description: e.cmd.Description,
			Aliases:     aliases,
			Options:     slices.Clone(e.cmd.Options),
			Plugin:      e.inst.meta.ID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) unreadyDependency(inst *instance) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, dep := range inst.meta.Dependencies {
		d, ok := r.instances[dep]
		if !ok || d.currentState() != StateReady {
			return dep, true
		}
	}
	return "", false
}

func (r *Registry) initialize(ctx context.Context, inst *instance) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("initialize panicked: %v", rec)
		}
	}()
	return inst.plugin.Initialize(ctx, r.contexts.New(inst.meta.ID))
}

// transition moves inst to state to and notifies observers. Invalid
// transitions are logged and ignored.
func (r *Registry) transition(ctx context.Context, inst *instance, to State, cause error) {
	inst.mu.Lock()
	from := inst.state
	if from == to {
		inst.mu.Unlock()
		return
	}
	if !canTransition(from, to) {
		inst.mu.Unlock()
		r.logger.Error("Invalid plugin state transition",
			logfields.Plugin(inst.label()), logfields.FromState(from.String()), logfields.State(to.String()))
		return
	}
	inst.state = to
	ev := TransitionEvent{Plugin: inst.label(), Version: inst.meta.Version, From: from, To: to, At: time.Now()}
	if to == StateFailed && cause != nil {
		f := newFailure(inst.label(), cause)
		inst.failure = &f
		ev.Kind = f.Kind
		ev.Reason = f.Reason
	}
	inst.mu.Unlock()

	if to == StateFailed {
		r.logger.Warn("Plugin failed",
			logfields.Plugin(ev.Plugin), logfields.FromState(from.String()),
			logfields.ErrorKind(string(ev.Kind)), slog.String("reason", ev.Reason))
	} else {
		r.logger.Debug("Plugin state changed",
			logfields.Plugin(ev.Plugin), logfields.FromState(from.String()), logfields.State(to.String()))
	}
	r.observer.PluginTransition(ctx, ev)
}

func instantiate(seq int, factory Factory) (inst *instance, err error) {
	inst = &instance{seq: seq, state: StateDiscovered}
	defer func() {
		if rec := recover(); rec != nil {
			err = ferrors.Newf(ferrors.KindInvalidMetadata, "plugin factory panicked: %v", rec).
				ForPlugin(inst.meta.ID).Build()
		}
	}()
	if factory == nil {
		return inst, ferrors.NewError(ferrors.KindInvalidMetadata, "nil plugin factory").Build()
	}
	p := factory()
	if p == nil {
		return inst, ferrors.NewError(ferrors.KindInvalidMetadata, "plugin factory returned nil").Build()
	}
	meta := p.Metadata()
	meta.Dependencies = slices.Clone(meta.Dependencies)
	inst.plugin = p
	inst.meta = meta
	inst.caps = Capabilities(p)
	return inst, nil
}

func commandsOf(p Plugin) (cmds []Command, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("commands panicked: %v", rec)
		}
	}()
	return p.Commands(), nil
}

func cleanup(ctx context.Context, inst *instance) (err error) {
	inst.mu.Lock()
	p := inst.plugin
	inst.mu.Unlock()
	c, ok := p.(Cleaner)
	if !ok {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("cleanup panicked: %v", rec)
		}
	}()
	return c.Cleanup(ctx)
}

func (i *instance) label() string {
	if i.meta.ID != "" {
		return i.meta.ID
	}
	return fmt.Sprintf("factory#%d", i.seq)
}

func (i *instance) currentState() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

func (i *instance) isRegistered() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.registered
}

func (i *instance) markRegistered(cmds []string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.registered = true
	i.commands = cmds
}

func (i *instance) info() PluginInfo {
	i.mu.Lock()
	defer i.mu.Unlock()
	info := PluginInfo{
		Metadata:     i.meta,
		State:        i.state,
		Capabilities: i.caps,
		Commands:     slices.Clone(i.commands),
	}
	if i.failure != nil {
		f := *i.failure
		info.Failure = &f
	}
	return info
}
