package commands

import (
	"context"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit   int    `short:"n" help:"Number of invocations to show" default:"20"`
	Command string `help:"Only show invocations of this command"`
	JSON    bool   `help:"Print invocations as JSON"`
}

func (c *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.prepare(g)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return ferrors.HostConfigError("history is disabled; set history.enabled in the configuration").Build()
	}
	store, err := history.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.List(context.Background(), history.Query{Limit: c.Limit, Command: c.Command})
	if err != nil {
		return err
	}
	if c.JSON {
		return writeJSON(g.out(), entries)
	}

	t := newTable(g.out())
	t.AppendHeader(table.Row{"Started", "Command", "Plugin", "Status", "Duration", "Message"})
	for _, e := range entries {
		status := "ok"
		msg := e.Message
		if !e.Success {
			status = e.Kind
			msg = e.Error
		}
		duration := (time.Duration(e.DurationMS) * time.Millisecond).String()
		t.AppendRow(table.Row{e.StartedAt.Local().Format(time.DateTime), e.Command, e.Plugin, status, duration, msg})
	}
	t.Render()
	return nil
}
