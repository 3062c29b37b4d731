// Package promptengineering generates code and program plans from prompts,
// optionally expanding a prompt template first.
package promptengineering

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/ObvexBlackvault/custom-gemini-cli/internal/markdown"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
)

// ID is the plugin id.
const ID = "prompt-engineering-plugin"

const (
	formatRaw      = "raw"
	formatMarkdown = "markdown"
	formatJSON     = "json"

	// promptPlaceholder is replaced by the prompt in template files.
	promptPlaceholder = "{{prompt}}"
)

const configSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"templateDir": {"type": "string", "minLength": 1}
	}
}`

// Plugin implements the prompt engineering commands.
type Plugin struct {
	plugin.BasePlugin
}

// New is the plugin factory.
func New() plugin.Plugin {
	return &Plugin{BasePlugin: plugin.BasePlugin{Meta: plugin.Metadata{
		ID:            ID,
		Name:          "Prompt Engineering Plugin",
		Version:       "1.1.0",
		Description:   "Generates code and programs using prompt templates and flexible output formats.",
		Author:        "Gemini CLI contributors",
		MinCLIVersion: "1.0.0",
	}}}
}

func (p *Plugin) Initialize(_ context.Context, pctx *plugin.Context) error {
	pctx.Logger().Info("Prompt engineering plugin initialized", "template_dir", templateDir(pctx))
	return nil
}

// ConfigSchema describes the plugin configuration slice.
func (p *Plugin) ConfigSchema() []byte {
	return []byte(configSchema)
}

func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{
			Name:        "generate-code",
			Description: "Generate code from a prompt or template, with advanced output options",
			Aliases:     []string{"gen"},
			Options: []plugin.Option{
				{Name: "prompt", Description: "Prompt for code generation", Type: plugin.OptionString, Required: true},
				{Name: "language", Description: "Programming language", Type: plugin.OptionString, Default: "javascript"},
				{Name: "output", Description: "Output file to save code", Type: plugin.OptionString},
				{Name: "templatePath", Description: "Path to a prompt template file", Type: plugin.OptionString},
				{Name: "format", Description: "Output format", Type: plugin.OptionString, Default: formatRaw, Choices: []string{formatRaw, formatMarkdown, formatJSON}},
				{Name: "extract", Description: "Strip Markdown fences from the model answer", Type: plugin.OptionBoolean, Default: true},
			},
			Handler: p.generateCode,
		},
		{
			Name:        "build-program",
			Description: "Build a full program structure from a description",
			Options: []plugin.Option{
				{Name: "description", Description: "Description of the program", Type: plugin.OptionString, Required: true},
				{Name: "template", Description: "Project template (e.g. web-app, cli)", Type: plugin.OptionString, Default: "web-app"},
				{Name: "language", Description: "Programming language", Type: plugin.OptionString, Default: "javascript"},
			},
			Handler: p.buildProgram,
		},
	}
}

// generatedCode is the json output format.
type generatedCode struct {
	Language string `json:"language"`
	Code     string `json:"code"`
	Prompt   string `json:"prompt"`
}

func (p *Plugin) generateCode(ctx context.Context, args plugin.Args, pctx *plugin.Context) (plugin.Result, error) {
	language := args.String("language")
	prompt := p.expandTemplate(args.String("prompt"), args.String("templatePath"), pctx)

	code, err := pctx.Generator().GenerateCode(ctx, prompt, language, plugin.CodeOptions{IncludeComments: true})
	if err != nil {
		return failed("failed to generate code", err), nil
	}
	if args.Bool("extract") {
		code = markdown.ExtractCode(code, language)
	}

	var (
		data any
		text string
	)
	switch args.String("format") {
	case formatJSON:
		out := generatedCode{Language: language, Code: code, Prompt: prompt}
		data = out
		raw, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return failed("failed to encode code", err), nil
		}
		text = string(raw)
	case formatMarkdown:
		text = markdown.Fence(language, code)
		data = text
	default:
		text = code
		data = code
	}

	if output := args.String("output"); output != "" {
		if err := pctx.FS().WriteFile(output, text); err != nil {
			return failed("failed to save code", err), nil
		}
		return plugin.OK(fmt.Sprintf("Code generated and saved to %s", output), nil).WithFiles(output), nil
	}
	return plugin.OK("Code generated successfully", data), nil
}

// expandTemplate substitutes prompt into the template file. A template that
// cannot be read is logged and the bare prompt is used.
func (p *Plugin) expandTemplate(prompt, templatePath string, pctx *plugin.Context) string {
	if templatePath == "" {
		return prompt
	}
	resolved := templatePath
	if dir := templateDir(pctx); dir != "" && !path.IsAbs(templatePath) {
		resolved = path.Join(dir, templatePath)
	}
	content, err := pctx.FS().ReadFile(resolved)
	if err != nil {
		pctx.Logger().Warn("Failed to load prompt template", "path", resolved, "error", err.Error())
		return prompt
	}
	return strings.ReplaceAll(content, promptPlaceholder, prompt)
}

func (p *Plugin) buildProgram(ctx context.Context, args plugin.Args, pctx *plugin.Context) (plugin.Result, error) {
	planPrompt := strings.Join([]string{
		fmt.Sprintf("You are an expert %s developer.", args.String("language")),
		fmt.Sprintf("Generate a detailed file/folder plan and main entry point for a %q project described as:", args.String("template")),
		args.String("description"),
	}, "\n")

	plan, err := pctx.Generator().GenerateText(ctx, planPrompt, plugin.TextOptions{})
	if err != nil {
		return failed("failed to build program", err), nil
	}
	return plugin.OK("Program build plan generated", plan), nil
}

func templateDir(pctx *plugin.Context) string {
	dir, _ := pctx.Config()["templateDir"].(string)
	return dir
}

func failed(prefix string, err error) plugin.Result {
	r := plugin.FailedResult(err)
	r.Error = prefix + ": " + r.Error
	return r
}
