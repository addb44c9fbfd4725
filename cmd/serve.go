package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prematch/internal/server"
)

// Serve starts the read-only PreDB API with health and metrics endpoints until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open()
	if err != nil {
		return err
	}
	r.registerRuntimeCollectors()

	host := r.config.Server.Host
	if v := cmd.String("host"); v != "" {
		host = v
	}
	port := r.config.Server.Port
	if v := cmd.Int("port"); v > 0 {
		port = v
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := server.NewRouter(s.predb, s.db.PingContext, r.registry, r.logger)
	srv := server.NewServer(net.JoinHostPort(host, strconv.Itoa(port)), router)
	return server.Serve(ctx, srv, r.logger)
}
