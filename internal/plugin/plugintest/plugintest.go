// Package plugintest loads plugins into a real registry backed by an
// in-memory file system and a scripted generator.
package plugintest

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"

	"github.com/ObvexBlackvault/custom-gemini-cli/internal/filesystem"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
)

// HostVersion is the host version test registries run as.
const HostVersion = "1.1.0"

// Call records one generator invocation.
type Call struct {
	Op       string
	Prompt   string
	Language string
	Messages []plugin.ChatMessage
}

// Generator is a plugin.Generator returning Reply (or Err) and recording calls.
type Generator struct {
	mu    sync.Mutex
	Reply string
	Err   error
	calls []Call
}

var _ plugin.Generator = (*Generator)(nil)

func (g *Generator) record(c Call) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, c)
	return g.Reply, g.Err
}

func (g *Generator) GenerateText(_ context.Context, prompt string, _ plugin.TextOptions) (string, error) {
	return g.record(Call{Op: "text", Prompt: prompt})
}

func (g *Generator) GenerateCode(_ context.Context, prompt, language string, _ plugin.CodeOptions) (string, error) {
	return g.record(Call{Op: "code", Prompt: prompt, Language: language})
}

func (g *Generator) Chat(_ context.Context, messages []plugin.ChatMessage, _ plugin.ChatOptions) (string, error) {
	return g.record(Call{Op: "chat", Messages: messages})
}

// Calls returns the recorded calls.
func (g *Generator) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// LastPrompt returns the prompt of the most recent call, or "".
func (g *Generator) LastPrompt() string {
	calls := g.Calls()
	if len(calls) == 0 {
		return ""
	}
	return calls[len(calls)-1].Prompt
}

// Options configures Load.
type Options struct {
	Files        map[string]string
	SharedConfig map[string]any
	PluginConfig map[string]map[string]any
	Project      *plugin.ProjectInfo
	Generator    *Generator
}

// Env is a loaded registry with its fakes.
type Env struct {
	Registry  *plugin.Registry
	Report    *plugin.LoadReport
	Generator *Generator
	FS        *filesystem.FS
}

// Load seeds the file system, loads factories and unloads them when the test ends.
func Load(t testing.TB, opts Options, factories ...plugin.Factory) *Env {
	t.Helper()

	fs := filesystem.Wrap(memfs.New())
	for name, content := range opts.Files {
		require.NoError(t, fs.WriteFile(name, content))
	}
	gen := opts.Generator
	if gen == nil {
		gen = &Generator{}
	}
	logger := slog.New(slog.DiscardHandler)

	contexts := plugin.NewContextFactory(plugin.Providers{
		Generator:    gen,
		FS:           fs,
		Logger:       logger,
		Cwd:          "/",
		Project:      opts.Project,
		SharedConfig: opts.SharedConfig,
		PluginConfig: opts.PluginConfig,
	})
	reg, err := plugin.NewRegistry(HostVersion, plugin.WithContextFactory(contexts), plugin.WithLogger(logger))
	require.NoError(t, err)

	report, err := reg.LoadAll(context.Background(), factories)
	require.NoError(t, err)
	t.Cleanup(func() { reg.UnloadAll(context.Background()) })

	return &Env{Registry: reg, Report: report, Generator: gen, FS: fs}
}

// Dispatch is Registry.Dispatch with a background context.
func (e *Env) Dispatch(name string, raw map[string]any) plugin.Result {
	return e.Registry.Dispatch(context.Background(), name, raw)
}
