package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ObvexBlackvault/custom-gemini-cli/internal/server"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr string `help:"Listen address, overrides server.addr"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	h, err := root.openHost(ctx, g)
	if err != nil {
		return err
	}
	defer closeHost(h, g.Logger)

	cfg := h.Config()
	addr := cfg.Server.Addr
	if s.Addr != "" {
		addr = s.Addr
	}
	store, _ := h.History()
	srv, err := server.New(server.Options{
		Addr:      addr,
		Registry:  h.Registry(),
		History:   store,
		Metrics:   h.MetricsHandler(),
		Schedules: cfg.Server.Schedules,
		Logger:    g.Logger,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
