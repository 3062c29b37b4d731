package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
)

// PluginsCmd implements the 'plugins' command.
type PluginsCmd struct {
	JSON bool `help:"Print plugin information as JSON"`
}

func (p *PluginsCmd) Run(g *Global, root *CLI) error {
	h, err := root.openHost(context.Background(), g)
	if err != nil {
		return err
	}
	defer closeHost(h, g.Logger)

	plugins := h.Registry().Plugins()
	if p.JSON {
		return writeJSON(g.out(), plugins)
	}

	t := newTable(g.out())
	t.AppendHeader(table.Row{"ID", "Version", "State", "Commands", "Failure"})
	for _, info := range plugins {
		failure := ""
		if info.Failure != nil {
			failure = fmt.Sprintf("%s: %s", info.Failure.Kind, info.Failure.Reason)
		}
		t.AppendRow(table.Row{info.Metadata.ID, info.Metadata.Version, info.State, strings.Join(info.Commands, ", "), failure})
	}
	t.Render()
	return nil
}

// CommandsCmd implements the 'commands' command.
type CommandsCmd struct {
	JSON bool `help:"Print command information as JSON"`
}

func (c *CommandsCmd) Run(g *Global, root *CLI) error {
	h, err := root.openHost(context.Background(), g)
	if err != nil {
		return err
	}
	defer closeHost(h, g.Logger)

	commands := h.Registry().Commands()
	if c.JSON {
		return writeJSON(g.out(), commands)
	}

	t := newTable(g.out())
	t.AppendHeader(table.Row{"Command", "Aliases", "Plugin", "Options", "Description"})
	for _, cmd := range commands {
		t.AppendRow(table.Row{cmd.Name, strings.Join(cmd.Aliases, ", "), cmd.Plugin, formatOptions(cmd.Options), cmd.Description})
	}
	t.Render()
	return nil
}

// formatOptions renders options compactly: required ones end in "*",
// defaults follow "=" and choices are listed in braces.
func formatOptions(opts []plugin.Option) string {
	parts := make([]string, 0, len(opts))
	for _, o := range opts {
		var b strings.Builder
		b.WriteString(o.Name)
		if o.Required {
			b.WriteString("*")
		}
		if o.Default != nil {
			fmt.Fprintf(&b, "=%v", o.Default)
		}
		if len(o.Choices) > 0 {
			fmt.Fprintf(&b, "{%s}", strings.Join(o.Choices, "|"))
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, " ")
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	return t
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
