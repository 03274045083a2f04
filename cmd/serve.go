package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/lepinkainen/bookhaven/internal/httpapi"
	"github.com/lepinkainen/bookhaven/internal/telemetry"
)

const telemetryShutdownTimeout = 5 * time.Second

// ServeCmd runs the JSON HTTP API until interrupted
type ServeCmd struct {
	Addr string `short:"a" help:"Listen address (defaults to server.addr)"`
}

var listenAndServe = httpapi.ListenAndServe

func (c *ServeCmd) Run(rt *Runtime) error {
	tp, shutdown, err := telemetry.Setup(rt.ctx, "bookhaven", rt.cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			slog.Warn("Failed to flush traces", "error", err)
		}
	}()

	rt.tracerProvider = tp
	app, err := rt.App()
	if err != nil {
		return err
	}

	addr := c.Addr
	if addr == "" {
		addr = rt.cfg.Server.Addr
	}

	server := httpapi.NewServer(app.Catalog, app.Library, app.Reviews, httpapi.WithTracerProvider(tp))
	return listenAndServe(rt.ctx, addr, server.Routes())
}
