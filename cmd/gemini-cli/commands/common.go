package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/ObvexBlackvault/custom-gemini-cli/internal/config"
	"github.com/ObvexBlackvault/custom-gemini-cli/internal/host"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
	Err    io.Writer
	// HostOptions are appended to the options every command builds its host with.
	HostOptions []host.Option
}

func (g *Global) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Global) err() io.Writer {
	if g.Err == nil {
		return os.Stderr
	}
	return g.Err
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"gemini-cli.yaml" env:"GEMINI_CLI_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Cwd     string           `help:"Working directory plugins operate in" default:"." type:"existingdir"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run      RunCmd      `cmd:"" passthrough:"" help:"Run a plugin command: run [--json] <command> [--option value]..."`
	Plugins  PluginsCmd  `cmd:"" help:"List loaded plugins and their lifecycle state"`
	Commands CommandsCmd `cmd:"" help:"List available plugin commands"`
	History  HistoryCmd  `cmd:"" help:"Show recent command invocations"`
	Serve    ServeCmd    `cmd:"" help:"Serve plugin commands over HTTP and run scheduled commands"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(newLogger(os.Stderr, level, config.LogFormatText))
	return nil
}

// prepare loads the configuration and applies its logging section unless
// the caller supplied a logger.
func (c *CLI) prepare(g *Global) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(c.Config)
	if err != nil {
		return nil, err
	}
	if g.Logger == nil {
		level := cfg.Logging.Level.SlogLevel()
		if c.Verbose {
			level = slog.LevelDebug
		}
		g.Logger = newLogger(g.err(), level, cfg.Logging.Format)
		slog.SetDefault(g.Logger)
	}
	return cfg, nil
}

// openHost loads configuration and plugins for commands that dispatch.
func (c *CLI) openHost(ctx context.Context, g *Global) (*host.Host, error) {
	cfg, err := c.prepare(g)
	if err != nil {
		return nil, err
	}
	opts := append([]host.Option{host.WithCwd(c.Cwd), host.WithLogger(g.Logger)}, g.HostOptions...)
	return host.New(ctx, cfg, opts...)
}

func closeHost(h *host.Host, logger *slog.Logger) {
	if err := h.Close(context.Background()); err != nil {
		logger.Warn("Failed to close host", "error", err)
	}
}

func newLogger(w io.Writer, level slog.Level, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
