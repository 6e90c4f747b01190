// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/dossier"
	"github.com/kadirpekel/dossier/pkg/auth"
	"github.com/kadirpekel/dossier/pkg/config"
	"github.com/kadirpekel/dossier/pkg/hitl"
	"github.com/kadirpekel/dossier/pkg/ratelimit"
	"github.com/kadirpekel/dossier/pkg/server"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Host  string `help:"Host to bind to (overrides config)."`
	Port  int    `short:"p" help:"Port to listen on (overrides config)."`
	Watch bool   `help:"Reload the logger settings when the config source changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	var opts []config.LoaderOption
	if c.Watch {
		opts = append(opts, config.WithOnChange(func(cfg *config.Config) {
			if err := applyLoggerConfig(cfg.Logger); err != nil {
				slog.Error("Failed to apply reloaded logger settings", "error", err)
				return
			}
			slog.Info("Reloaded logger settings; restart to apply other changes")
		}))
	}

	a, err := newApp(ctx, cli, opts...)
	if err != nil {
		return err
	}
	defer a.close()

	if c.Host != "" {
		a.cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		a.cfg.Server.Port = c.Port
	}

	decisions := hitl.NewAwaiter()
	svc, err := a.service(ctx, decisions)
	if err != nil {
		return err
	}
	validator, err := auth.NewValidatorFromConfig(&a.cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to set up authentication: %w", err)
	}
	if validator != nil {
		defer validator.Close()
	}

	limiter, err := ratelimit.NewFromConfig(ctx, &a.cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("failed to set up rate limiting: %w", err)
	}
	if limiter != nil {
		defer limiter.Close()
	}

	inspector, err := a.inspector(ctx)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Server:        &a.cfg.Server,
		Auth:          &a.cfg.Auth,
		Service:       svc,
		Decisions:     decisions,
		Cache:         a.cache,
		Admin:         inspector,
		Validator:     validator,
		Limiter:       limiter,
		Observability: a.obs,
	})
	if err != nil {
		return err
	}
	printBanner(a.cfg, srv.Address(), validator != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if c.Watch && a.loader != nil {
		g.Go(func() error {
			if err := a.loader.Watch(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func printBanner(cfg *config.Config, addr string, authEnabled bool) {
	fmt.Printf("\n%s\n", dossier.GetVersion())
	fmt.Printf("  HTTP:      http://%s\n", addr)
	fmt.Printf("  Research:  POST /v1/research, POST /v1/chat\n")
	fmt.Printf("  Decisions: GET /v1/decisions (timeout %s, top %d)\n", cfg.HITL.Timeout, cfg.HITL.TopN)
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("  Metrics:   %s\n", cfg.Observability.Metrics.Endpoint)
	}
	if authEnabled {
		fmt.Printf("  Auth:      JWT (%s)\n", cfg.Auth.Issuer)
	}
	for _, l := range cfg.RateLimit.Limits {
		fmt.Printf("  Limit:     %d runs per %s\n", l.Limit, l.Window)
	}
	fmt.Println()
}
