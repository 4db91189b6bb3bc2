// Package server exposes the alias graph over HTTP: a JSON API plus a
// datastar event stream that pushes a fresh check after every reload.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/aliasgraph/internal/engine"
	"golang.org/x/sync/errgroup"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

const shutdownTimeout = 5 * time.Second

// Server serves one engine.
type Server struct {
	engine   *engine.Engine
	addr     string
	logger   *slog.Logger
	notifier *Notifier
}

// Config holds configuration for the server.
type Config struct {
	Engine *engine.Engine
	Addr   string
	Logger *slog.Logger
}

// New creates a server. The engine must already be discovered.
func New(cfg Config) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		engine:   cfg.Engine,
		addr:     addr,
		logger:   logger,
		notifier: NewNotifier(),
	}
}

// Notifier returns the notifier feeding /api/events.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/check", s.handleCheck)
		r.Get("/deps", s.handleDeps)
		r.Get("/order", s.handleOrder)
		r.Get("/scc", s.handleSCC)
		r.Get("/files", s.handleFiles)
		r.Get("/runs", s.handleRuns)
		r.Get("/runs/{id}", s.handleRun)
		r.Post("/reload", s.handleReload)
		r.Get("/events", s.handleEvents)
	})
	return r
}

// Serve listens on the configured address and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting server", "addr", s.addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: middleware.Logger(s.Handler()),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
