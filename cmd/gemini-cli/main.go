package main

import (
	"os"

	"github.com/alecthomas/kong"

	"github.com/ObvexBlackvault/custom-gemini-cli/cmd/gemini-cli/commands"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("gemini-cli"),
		kong.Description("Gemini CLI plugin host: load plugins and run their commands."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	err := ctx.Run(&commands.Global{Out: os.Stdout, Err: os.Stderr}, &cli)
	os.Exit(commands.Exit(err, cli.Verbose, os.Stderr))
}
