package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/kadirpekel/dossier/pkg/admin"
	"github.com/kadirpekel/dossier/pkg/auth"
	"github.com/kadirpekel/dossier/pkg/cache"
	"github.com/kadirpekel/dossier/pkg/config"
	"github.com/kadirpekel/dossier/pkg/hitl"
	"github.com/kadirpekel/dossier/pkg/observability"
	"github.com/kadirpekel/dossier/pkg/ratelimit"
	"github.com/kadirpekel/dossier/pkg/research"
)

type Options struct {
	Server *config.ServerConfig
	Auth   *config.AuthConfig

	Service *research.Service

	// Decisions answers the prompts of executive runs. Without it the
	// decision endpoints report 501.
	Decisions *hitl.Awaiter

	// Cache is cleared by DELETE /v1/cache. Optional.
	Cache cache.Cache

	// Admin serves GET /v1/admin/status. Without it the endpoint reports
	// 501.
	Admin *admin.Inspector

	// Validator enables bearer authentication. Optional.
	Validator auth.TokenValidator

	// Limiter caps the runs each caller may start. Optional.
	Limiter *ratelimit.Limiter

	Observability *observability.Manager
}

type Server struct {
	opts    Options
	handler http.Handler
	http    *http.Server
}

func New(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("research service is required")
	}
	if opts.Server == nil {
		opts.Server = &config.ServerConfig{}
	}
	opts.Server.SetDefaults()
	if opts.Auth == nil {
		opts.Auth = &config.AuthConfig{}
	}
	opts.Auth.SetDefaults()
	if opts.Observability == nil {
		opts.Observability = observability.NoopManager()
	}

	s := &Server{opts: opts}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the routed handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is done, then shuts down gracefully. Open streams
// share ctx, so their runs are cancelled when shutdown begins.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.opts.Server
	s.http = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.handler,
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	slog.Info("HTTP server starting", "address", cfg.Address(), "auth", s.opts.Validator != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.opts.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}

// Address returns the listen address.
func (s *Server) Address() string {
	return s.opts.Server.Address()
}
