// Package plugin is the plugin contract and lifecycle engine of the CLI host.
//
// Plugins are produced by Factory functions, validated against the host version,
// ordered by their declared dependencies, initialized with a capability-scoped
// Context and asked for their commands. The Registry owns every loaded instance
// and dispatches commands by name or alias; UnloadAll cleans plugins up in
// reverse load order.
package plugin

import (
	"context"
	"fmt"
)

// Plugin is implemented by every plugin the host can load.
type Plugin interface {
	// Metadata returns the plugin's identity and requirements. It must be
	// stable: the registry reads it once, before initialization.
	Metadata() Metadata

	// Initialize is called once, after validation and dependency ordering.
	// A returned error marks the plugin Failed with InitializationFailed.
	Initialize(ctx context.Context, pctx *Context) error

	// Commands returns the commands the plugin exposes. It is called once,
	// after a successful Initialize.
	Commands() []Command
}

// Cleaner is implemented by plugins that hold resources across invocations.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

// ConfigSchemaProvider is implemented by plugins that describe their
// configuration slice with a JSON schema.
type ConfigSchemaProvider interface {
	ConfigSchema() []byte
}

// ConfigValidator is implemented by plugins that check their configuration
// slice themselves. Returning false rejects the configuration.
type ConfigValidator interface {
	ValidateConfig(cfg map[string]any) bool
}

// Factory creates a fresh plugin value.
type Factory func() Plugin

// CapabilitySet reports which optional methods a plugin provides.
type CapabilitySet struct {
	Cleanup          bool `json:"cleanup"`
	ConfigSchema     bool `json:"configSchema"`
	ConfigValidation bool `json:"configValidation"`
}

// Capabilities inspects p for the optional interfaces.
func Capabilities(p Plugin) CapabilitySet {
	_, cleanup := p.(Cleaner)
	_, schema := p.(ConfigSchemaProvider)
	_, validation := p.(ConfigValidator)
	return CapabilitySet{Cleanup: cleanup, ConfigSchema: schema, ConfigValidation: validation}
}

// BasePlugin stores metadata for plugins that embed it.
type BasePlugin struct {
	Meta Metadata
}

// Metadata returns the embedded metadata.
func (b *BasePlugin) Metadata() Metadata {
	return b.Meta
}

// Error ties an error to the plugin operation that produced it.
type Error struct {
	PluginID  string
	Operation string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("plugin %s: %s failed: %v", e.PluginID, e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
