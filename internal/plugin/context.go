package plugin

import (
	"log/slog"
	"maps"
	"slices"

	"dario.cat/mergo"

	"github.com/ObvexBlackvault/custom-gemini-cli/internal/logfields"
)

// Context is the capability-scoped view a plugin gets of the host. Plugins can
// use the capabilities but not replace them.
type Context struct {
	pluginID  string
	generator Generator
	fs        FileSystem
	logger    Logger
	cwd       string
	config    map[string]any
	project   *ProjectInfo
}

// PluginID returns the id of the plugin the context was built for.
func (c *Context) PluginID() string { return c.pluginID }

// Generator returns the text generation capability.
func (c *Context) Generator() Generator { return c.generator }

// FS returns the file system capability.
func (c *Context) FS() FileSystem { return c.fs }

// Logger returns a logger scoped to the plugin.
func (c *Context) Logger() Logger { return c.logger }

// Cwd returns the host working directory.
func (c *Context) Cwd() string { return c.cwd }

// Config returns the plugin's merged configuration slice. The map belongs to
// this context; changes do not leak into other contexts.
func (c *Context) Config() map[string]any { return c.config }

// Project returns the detected project, if any.
func (c *Context) Project() (ProjectInfo, bool) {
	if c.project == nil {
		return ProjectInfo{}, false
	}
	p := *c.project
	p.Dependencies = slices.Clone(p.Dependencies)
	return p, true
}

// Providers are the host-owned capabilities bound into every Context.
type Providers struct {
	Generator Generator
	FS        FileSystem
	Logger    *slog.Logger
	Cwd       string
	Project   *ProjectInfo

	// SharedConfig applies to every plugin; PluginConfig entries keyed by
	// plugin id override it.
	SharedConfig map[string]any
	PluginConfig map[string]map[string]any
}

// ContextFactory builds plugin contexts from a fixed set of providers.
type ContextFactory struct {
	p Providers
}

// NewContextFactory creates a factory. A nil logger falls back to slog.Default.
func NewContextFactory(p Providers) *ContextFactory {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &ContextFactory{p: p}
}

// New builds a context for the plugin with the given id.
func (f *ContextFactory) New(pluginID string) *Context {
	return &Context{
		pluginID:  pluginID,
		generator: f.p.Generator,
		fs:        f.p.FS,
		logger:    f.p.Logger.With(logfields.Plugin(pluginID)),
		cwd:       f.p.Cwd,
		config:    f.Config(pluginID),
		project:   f.p.Project,
	}
}

// Config returns a fresh copy of the merged configuration for pluginID.
func (f *ContextFactory) Config(pluginID string) map[string]any {
	merged := deepCopyMap(f.p.SharedConfig)
	if scoped, ok := f.p.PluginConfig[pluginID]; ok {
		if err := mergo.Merge(&merged, deepCopyMap(scoped), mergo.WithOverride); err != nil {
			f.p.Logger.Warn("Merging plugin configuration failed", logfields.Plugin(pluginID), logfields.Error(err))
			maps.Copy(merged, deepCopyMap(scoped))
		}
	}
	return merged
}

func deepCopyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}
