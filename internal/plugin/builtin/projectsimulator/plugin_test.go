package projectsimulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin/plugintest"
)

var tree = map[string]string{
	"go.mod":                 "module example.com/app",
	"main.go":                "package main",
	"internal/api/server.go": "package api",
	"internal/api/deep/x.go": "package deep",
	"node_modules/left/i.js": "",
	"README.md":              "# app",
}

func load(t *testing.T, opts plugintest.Options) *plugintest.Env {
	t.Helper()
	if opts.Generator == nil {
		opts.Generator = &plugintest.Generator{Reply: "looks fine"}
	}
	if opts.Files == nil {
		opts.Files = tree
	}
	env := plugintest.Load(t, opts, New)
	require.Empty(t, env.Report.Failures)
	return env
}

func TestAnalyzeProjectDepths(t *testing.T) {
	tests := []struct {
		depth string
		want  []string
	}{
		{"shallow", []string{"README.md", "go.mod", "internal/", "main.go", "node_modules/"}},
		{"medium", []string{"README.md", "go.mod", "internal/", "main.go", "node_modules/", "internal/api/"}},
		{"deep", []string{"README.md", "go.mod", "internal/", "main.go", "node_modules/", "internal/api/", "internal/api/deep/", "internal/api/server.go", "internal/api/deep/x.go"}},
	}
	for _, tt := range tests {
		t.Run(tt.depth, func(t *testing.T) {
			env := load(t, plugintest.Options{})
			res := env.Dispatch("analyze-project", map[string]any{"depth": tt.depth})
			require.True(t, res.Success, res.Error)
			assert.Equal(t, "Project analysis complete", res.Message)

			a, ok := res.Data.(Analysis)
			require.True(t, ok)
			assert.Equal(t, tt.want, a.Files)
			assert.Equal(t, "looks fine", a.Analysis)
			assert.Contains(t, env.Generator.LastPrompt(), "Analyze a project with these files: README.md, go.mod")
		})
	}
}

func TestAnalyzeProjectDefaultsAndAlias(t *testing.T) {
	env := load(t, plugintest.Options{})
	res := env.Dispatch("analyze", nil)
	require.True(t, res.Success, res.Error)
	a := res.Data.(Analysis)
	assert.Equal(t, ".", a.Path)
	assert.Equal(t, "medium", a.Depth)
	assert.Contains(t, env.Generator.LastPrompt(), "potential issues")
}

func TestAnalyzeProjectRejectsUnknownDepth(t *testing.T) {
	env := load(t, plugintest.Options{})
	res := env.Dispatch("analyze-project", map[string]any{"depth": "abyssal"})
	assert.Equal(t, ferrors.KindInvalidOptionChoice, res.Kind)
}

func TestAnalyzeProjectHonorsMaxFiles(t *testing.T) {
	env := load(t, plugintest.Options{PluginConfig: map[string]map[string]any{ID: {"maxFiles": 2}}})
	res := env.Dispatch("analyze-project", map[string]any{"depth": "deep"})
	require.True(t, res.Success)
	a := res.Data.(Analysis)
	assert.Equal(t, []string{"README.md", "go.mod"}, a.Files)
	assert.True(t, a.Truncated)
}

func TestAnalyzeProjectIncludesProject(t *testing.T) {
	env := load(t, plugintest.Options{Project: &plugin.ProjectInfo{Name: "app", Type: "api-server", Language: "go", Framework: "chi"}})
	res := env.Dispatch("analyze-project", map[string]any{"path": "internal", "depth": "shallow"})
	require.True(t, res.Success)
	a := res.Data.(Analysis)
	assert.Equal(t, []string{"api/"}, a.Files)
	require.NotNil(t, a.Project)
	assert.Contains(t, env.Generator.LastPrompt(), `The project is a api-server named "app" written in go using chi.`)
}

func TestAnalyzeProjectMissingPath(t *testing.T) {
	env := load(t, plugintest.Options{})
	res := env.Dispatch("analyze-project", map[string]any{"path": "nope"})
	assert.False(t, res.Success)
	assert.Equal(t, ferrors.KindHandlerFailure, res.Kind)
	assert.Contains(t, res.Error, "failed to analyze project")
	assert.Nil(t, res.Data)
}

func TestSimulateScenarioPrompts(t *testing.T) {
	tests := []struct {
		name       string
		scenario   string
		parameters any
		wantPrompt string
		wantParams map[string]any
	}{
		{
			name:       "load test",
			scenario:   "load-test",
			parameters: `{"users": 500, "duration": "10m"}`,
			wantPrompt: "Simulate a load-test for this project with 500 users over 10m. Include expected performance metrics and log events.",
			wantParams: map[string]any{"users": float64(500), "duration": "10m"},
		},
		{
			name:       "load test defaults",
			scenario:   "load-test",
			wantPrompt: "Simulate a load-test for this project with an unspecified number of users over a default duration. Include expected performance metrics and log events.",
			wantParams: map[string]any{},
		},
		{
			name:       "failure test raw parameters",
			scenario:   "failure-test",
			parameters: "db goes down",
			wantPrompt: "Simulate a failure scenario: No failure scenario description provided. Include step-by-step breakdown and system responses.",
			wantParams: map[string]any{"raw": "db goes down"},
		},
		{
			name:       "upgrade",
			scenario:   "upgrade",
			parameters: `{"to": "v2"}`,
			wantPrompt: `Simulate a system upgrade with these parameters: {"to":"v2"}. Predict risks and roll-back plans.`,
			wantParams: map[string]any{"to": "v2"},
		},
		{
			name:       "generic",
			scenario:   "chaos-monkey",
			parameters: "5",
			wantPrompt: `Simulate a "chaos-monkey" scenario using these parameters: {"raw":"5"}. Show step-by-step reasoning and outcomes.`,
			wantParams: map[string]any{"raw": "5"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &plugintest.Generator{Reply: "simulated"}
			env := load(t, plugintest.Options{Generator: gen})
			raw := map[string]any{"scenario": tt.scenario}
			if tt.parameters != nil {
				raw["parameters"] = tt.parameters
			}
			res := env.Dispatch("simulate-scenario", raw)
			require.True(t, res.Success, res.Error)
			assert.Equal(t, `Scenario "`+tt.scenario+`" simulation complete`, res.Message)

			sim := res.Data.(Simulation)
			assert.Equal(t, tt.wantPrompt, sim.Prompt)
			assert.Equal(t, tt.wantPrompt, gen.LastPrompt())
			assert.Equal(t, tt.wantParams, sim.Parameters)
			assert.Equal(t, "simulated", sim.Result)
		})
	}
}

func TestSimulateScenarioRequiresScenario(t *testing.T) {
	env := load(t, plugintest.Options{})
	res := env.Dispatch("simulate", map[string]any{"parameters": "{}"})
	assert.Equal(t, ferrors.KindMissingRequiredOption, res.Kind)
}

func TestValidateConfig(t *testing.T) {
	p := New().(*Plugin)
	assert.True(t, p.ValidateConfig(map[string]any{}))
	assert.True(t, p.ValidateConfig(map[string]any{"maxFiles": 10}))
	assert.True(t, p.ValidateConfig(map[string]any{"maxFiles": float64(3)}))
	assert.False(t, p.ValidateConfig(map[string]any{"maxFiles": 0}))
	assert.False(t, p.ValidateConfig(map[string]any{"maxFiles": 2.5}))
	assert.False(t, p.ValidateConfig(map[string]any{"maxFiles": "10"}))
}

func TestInvalidConfigFailsLoad(t *testing.T) {
	env := plugintest.Load(t, plugintest.Options{PluginConfig: map[string]map[string]any{ID: {"maxFiles": -1}}}, New)
	failures := env.Report.Failed(ID)
	require.Len(t, failures, 1)
	assert.Equal(t, ferrors.KindInvalidConfig, failures[0].Kind)
	state, _ := env.Registry.State(ID)
	assert.Equal(t, plugin.StateFailed, state)
}
