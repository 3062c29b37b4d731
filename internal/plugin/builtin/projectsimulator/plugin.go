// Package projectsimulator analyzes the project tree and simulates
// operational scenarios (load tests, failures, upgrades) with the model.
package projectsimulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path"
	"strings"

	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
)

// ID is the plugin id.
const ID = "project-simulator-plugin"

// DefaultMaxFiles caps the listing sent to the model.
const DefaultMaxFiles = 200

const (
	depthShallow = "shallow"
	depthMedium  = "medium"
	depthDeep    = "deep"
)

// depthLevels is how many directory levels each depth descends.
var depthLevels = map[string]int{
	depthShallow: 1,
	depthMedium:  2,
	depthDeep:    math.MaxInt,
}

// skippedDirs are never descended into.
var skippedDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "target": true,
	"dist": true, "build": true, "__pycache__": true, ".venv": true,
}

// Plugin implements the simulation commands.
type Plugin struct {
	plugin.BasePlugin
}

// New is the plugin factory.
func New() plugin.Plugin {
	return &Plugin{BasePlugin: plugin.BasePlugin{Meta: plugin.Metadata{
		ID:            ID,
		Name:          "Project Simulator Plugin",
		Version:       "1.1.0",
		Description:   "Simulates and analyzes software projects with scenario templates.",
		Author:        "Gemini CLI contributors",
		MinCLIVersion: "1.0.0",
	}}}
}

func (p *Plugin) Initialize(_ context.Context, pctx *plugin.Context) error {
	pctx.Logger().Info("Project simulator plugin initialized", "max_files", maxFiles(pctx.Config()))
	return nil
}

// ValidateConfig accepts an optional positive integer maxFiles.
func (p *Plugin) ValidateConfig(cfg map[string]any) bool {
	v, ok := cfg["maxFiles"]
	if !ok {
		return true
	}
	n, ok := asInt(v)
	return ok && n > 0
}

func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{
			Name:        "analyze-project",
			Description: "Analyze a software project",
			Aliases:     []string{"analyze"},
			Options: []plugin.Option{
				{Name: "path", Description: "Path to analyze", Type: plugin.OptionString, Default: "."},
				{Name: "depth", Description: "Analysis depth", Type: plugin.OptionString, Default: depthMedium, Choices: []string{depthShallow, depthMedium, depthDeep}},
			},
			Handler: p.analyzeProject,
		},
		{
			Name:        "simulate-scenario",
			Description: "Simulate a scenario (e.g. load-test, failure-test) with rich config",
			Aliases:     []string{"simulate"},
			Options: []plugin.Option{
				{Name: "scenario", Description: "Scenario name", Type: plugin.OptionString, Required: true},
				{Name: "parameters", Description: "JSON object or plain text parameters", Type: plugin.OptionString},
			},
			Handler: p.simulateScenario,
		},
	}
}

// Analysis is the data of a successful analyze-project.
type Analysis struct {
	Path      string              `json:"path"`
	Depth     string              `json:"depth"`
	Files     []string            `json:"files"`
	Truncated bool                `json:"truncated,omitempty"`
	Project   *plugin.ProjectInfo `json:"project,omitempty"`
	Analysis  string              `json:"analysis"`
}

func (p *Plugin) analyzeProject(ctx context.Context, args plugin.Args, pctx *plugin.Context) (plugin.Result, error) {
	root := args.String("path")
	depth := args.String("depth")

	files, truncated, err := listFiles(pctx.FS(), root, depthLevels[depth], maxFiles(pctx.Config()))
	if err != nil {
		return failed("failed to analyze project", err), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze a project with these files: %s.", strings.Join(files, ", "))
	out := Analysis{Path: root, Depth: depth, Files: files, Truncated: truncated}
	if proj, ok := pctx.Project(); ok {
		out.Project = &proj
		fmt.Fprintf(&sb, " The project is a %s named %q", proj.Type, proj.Name)
		if proj.Language != "" {
			fmt.Fprintf(&sb, " written in %s", proj.Language)
		}
		if proj.Framework != "" {
			fmt.Fprintf(&sb, " using %s", proj.Framework)
		}
		sb.WriteString(".")
	}
	switch depth {
	case depthShallow:
		sb.WriteString(" Give a brief overview of its structure and purpose.")
	case depthDeep:
		sb.WriteString(" Provide a thorough review: architecture, complexity hot spots, risks, and concrete improvements.")
	default:
		sb.WriteString(" Please provide insights, complexity, and potential issues.")
	}

	analysis, err := pctx.Generator().GenerateText(ctx, sb.String(), plugin.TextOptions{})
	if err != nil {
		return failed("failed to analyze project", err), nil
	}
	out.Analysis = analysis
	return plugin.OK("Project analysis complete", out), nil
}

// listFiles walks root breadth first up to levels deep, returning paths
// relative to root with a trailing slash on directories.
func listFiles(fs plugin.FileSystem, root string, levels, limit int) ([]string, bool, error) {
	type dir struct {
		rel   string
		level int
	}
	var files []string
	queue := []dir{{rel: "", level: 1}}
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		names, err := fs.ReadDir(path.Join(root, d.rel))
		if err != nil {
			return nil, false, err
		}
		for _, name := range names {
			if len(files) == limit {
				return files, true, nil
			}
			rel := path.Join(d.rel, name)
			st, err := fs.Stat(path.Join(root, rel))
			if err != nil {
				return nil, false, err
			}
			if st.IsDirectory {
				files = append(files, rel+"/")
				if d.level < levels && !skippedDirs[name] {
					queue = append(queue, dir{rel: rel, level: d.level + 1})
				}
				continue
			}
			files = append(files, rel)
		}
	}
	return files, false, nil
}

// Simulation is the data of a successful simulate-scenario.
type Simulation struct {
	Scenario   string         `json:"scenario"`
	Parameters map[string]any `json:"parameters"`
	Prompt     string         `json:"prompt"`
	Result     string         `json:"result"`
}

func (p *Plugin) simulateScenario(ctx context.Context, args plugin.Args, pctx *plugin.Context) (plugin.Result, error) {
	scenario := args.String("scenario")
	params := parseParameters(args.String("parameters"), args.Has("parameters"))
	prompt := scenarioPrompt(scenario, params)

	pctx.Logger().Info("Running simulation", "scenario", scenario)
	result, err := pctx.Generator().GenerateText(ctx, prompt, plugin.TextOptions{})
	if err != nil {
		return failed("failed to simulate scenario", err), nil
	}
	return plugin.OK(fmt.Sprintf("Scenario %q simulation complete", scenario), Simulation{
		Scenario:   scenario,
		Parameters: params,
		Prompt:     prompt,
		Result:     result,
	}), nil
}

// parseParameters decodes a JSON object; anything else is kept as {"raw": s}.
func parseParameters(s string, given bool) map[string]any {
	params := map[string]any{}
	if !given {
		return params
	}
	if err := json.Unmarshal([]byte(s), &params); err != nil || params == nil {
		return map[string]any{"raw": s}
	}
	return params
}

func scenarioPrompt(scenario string, params map[string]any) string {
	switch scenario {
	case "load-test":
		return fmt.Sprintf("Simulate a load-test for this project with %s users over %s. Include expected performance metrics and log events.",
			param(params, "users", "an unspecified number of"), param(params, "duration", "a default duration"))
	case "failure-test":
		return fmt.Sprintf("Simulate a failure scenario: %s Include step-by-step breakdown and system responses.",
			param(params, "description", "No failure scenario description provided."))
	case "upgrade":
		return fmt.Sprintf("Simulate a system upgrade with these parameters: %s. Predict risks and roll-back plans.", encode(params))
	default:
		return fmt.Sprintf("Simulate a %q scenario using these parameters: %s. Show step-by-step reasoning and outcomes.", scenario, encode(params))
	}
}

func param(params map[string]any, key, fallback string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return fallback
	}
	return fmt.Sprint(v)
}

func encode(params map[string]any) string {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprint(params)
	}
	return string(raw)
}

func maxFiles(cfg map[string]any) int {
	if n, ok := asInt(cfg["maxFiles"]); ok && n > 0 {
		return n
	}
	return DefaultMaxFiles
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), n <= math.MaxInt
	case float64:
		return int(n), n == math.Trunc(n) && !math.IsInf(n, 0)
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

func failed(prefix string, err error) plugin.Result {
	r := plugin.FailedResult(err)
	r.Error = prefix + ": " + r.Error
	return r
}
