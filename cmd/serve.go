package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/ursnani/Voice-Cloning/internal/httpapi"
	"github.com/ursnani/Voice-Cloning/internal/mcpserver"
)

func handleServe(ctx context.Context, c *cli.Command) error {
	e, err := newEnv(ctx, c)
	if err != nil {
		return err
	}
	defer e.Close()

	serverCfg := e.cfg.EffectiveServer()
	addr := serverCfg.Addr
	if a := c.String("addr"); a != "" {
		addr = a
	}

	opts := []httpapi.Option{
		httpapi.WithDefaultProvider(e.cfg.GetEffectiveProvider("")),
		httpapi.WithCredentials(e.creds),
	}
	if len(serverCfg.AllowedOrigins) > 0 {
		opts = append(opts, httpapi.WithAllowedOrigins(serverCfg.AllowedOrigins))
	}

	srv := httpapi.New(e.samples, e.coord, e.providers, opts...)
	return httpapi.ListenAndServe(ctx, addr, srv.Handler())
}

func handleMCP(ctx context.Context, c *cli.Command) error {
	e, err := newEnv(ctx, c)
	if err != nil {
		return err
	}
	defer e.Close()

	log.Debug().Msg("Serving MCP tools on stdio")
	return mcpserver.ServeStdio(mcpserver.NewTools(e.samples, e.coord, e.workDir), version)
}
