// Package webserver runs the HTTP API for recipe validation and
// optimization and exposes Prometheus metrics.
package webserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paintlab/paintopt/internal/service"
	"github.com/paintlab/paintopt/internal/webapi"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host string
	Port int
	// ResultsDir is where finished runs are written. Empty keeps them in
	// memory only.
	ResultsDir     string
	AllowedOrigins []string
	Backend        service.Backend
	Logger         *slog.Logger
	// ShutdownTimeout bounds the wait for in-flight requests. Default 5s.
	ShutdownTimeout time.Duration
}

// Server wraps the HTTP server with configuration.
type Server struct {
	cfg    Config
	srv    *http.Server
	logger *slog.Logger
}

// New creates a new HTTP server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.Backend.Logger == nil {
		cfg.Backend.Logger = cfg.Logger
	}

	mux := http.NewServeMux()
	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		srv: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	registerRoutes(mux, cfg)
	s.srv.Handler = webapi.CORSMiddleware(instrument(mux, cfg.Logger), cfg.AllowedOrigins...)
	return s, nil
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. Request contexts
// derive from ctx, so cancelling it also stops running optimizations at
// their next generation boundary; they still answer with their partial
// result before Serve returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("HTTP server starting", "address", ln.Addr().String())
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
