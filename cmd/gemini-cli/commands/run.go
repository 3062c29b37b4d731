package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/plugin"
)

// RunCmd implements the 'run' command. Everything after "run" is parsed by
// parseInvocation: host flags, the command name, then plugin options.
type RunCmd struct {
	Args []string `arg:"" optional:"" help:"[--json] <command> [--option value | --option=value | --flag | --no-flag]..."`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	inv, err := parseInvocation(r.Args)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	h, err := root.openHost(ctx, g)
	if err != nil {
		return err
	}
	defer closeHost(h, g.Logger)

	if err := inv.checkFlags(h.Registry().Commands()); err != nil {
		return err
	}

	res := h.Registry().Dispatch(ctx, inv.command, inv.args)
	if inv.json {
		enc := json.NewEncoder(g.out())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return ferrors.WrapError(err, ferrors.KindInternal, "failed to encode result").Build()
		}
	} else {
		writeResult(g, res)
	}
	if !res.Success {
		return &reportedError{kind: res.Kind, msg: res.Error}
	}
	return nil
}

func writeResult(g *Global, res plugin.Result) {
	if !res.Success {
		_, _ = fmt.Fprintf(g.err(), "Error: %s\n", res.Error)
		return
	}
	w := g.out()
	if res.Message != "" {
		_, _ = fmt.Fprintln(w, res.Message)
	}
	switch data := res.Data.(type) {
	case nil:
	case string:
		_, _ = fmt.Fprintln(w, data)
	default:
		b, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			_, _ = fmt.Fprintf(w, "%v\n", data)
		} else {
			_, _ = fmt.Fprintln(w, string(b))
		}
	}
	for _, f := range res.Files {
		_, _ = fmt.Fprintf(w, "wrote %s\n", f)
	}
}

type invocation struct {
	command string
	args    map[string]any
	json    bool
	// bare lists options given as --flag or --no-flag without a value.
	bare []string
}

// parseInvocation splits raw arguments into the command name and its
// options. Values stay strings; the registry coerces them to the declared
// option types. Repeating an option collects its values into an array.
func parseInvocation(raw []string) (invocation, error) {
	inv := invocation{args: map[string]any{}}
	i := 0
	for ; i < len(raw) && strings.HasPrefix(raw[i], "-"); i++ {
		switch raw[i] {
		case "--json":
			inv.json = true
		default:
			return inv, usageError("unknown flag %q before the command name", raw[i])
		}
	}
	if i == len(raw) {
		return inv, usageError("a command name is required")
	}
	inv.command = raw[i]

	for i++; i < len(raw); i++ {
		tok := raw[i]
		if tok == "--" {
			if i+1 < len(raw) {
				return inv, usageError("unexpected argument %q", raw[i+1])
			}
			break
		}
		name, ok := strings.CutPrefix(tok, "--")
		if !ok || name == "" {
			return inv, usageError("unexpected argument %q", tok)
		}
		if key, value, found := strings.Cut(name, "="); found {
			set(inv.args, key, value)
			continue
		}
		if i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "--") {
			set(inv.args, name, raw[i+1])
			i++
			continue
		}
		if negated, ok := strings.CutPrefix(name, "no-"); ok && negated != "" {
			set(inv.args, negated, false)
			inv.bare = append(inv.bare, negated)
			continue
		}
		set(inv.args, name, true)
		inv.bare = append(inv.bare, name)
	}
	return inv, nil
}

// checkFlags rejects bare flags for string and number options of the
// invoked command. Unknown commands and options are left to the registry.
func (inv invocation) checkFlags(cmds []plugin.CommandInfo) error {
	for _, c := range cmds {
		if c.Name != inv.command && !slices.Contains(c.Aliases, inv.command) {
			continue
		}
		for _, name := range inv.bare {
			for _, o := range c.Options {
				if o.Name != name {
					continue
				}
				if o.Type == plugin.OptionString || o.Type == plugin.OptionNumber {
					return usageError("option --%s of %s requires a %s value", name, c.Name, o.Type)
				}
			}
		}
		return nil
	}
	return nil
}

func set(args map[string]any, key string, value any) {
	prev, ok := args[key]
	if !ok {
		args[key] = value
		return
	}
	if list, isList := prev.([]any); isList {
		args[key] = append(list, value)
		return
	}
	args[key] = []any{prev, value}
}

func usageError(format string, a ...any) error {
	return ferrors.Newf(ferrors.KindInvalidOptionType, format, a...).Build()
}
