// Package server exposes the fill engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/config"
	"github.com/xkilldash9x/autoform/internal/observability"
)

// Server hosts the fill API and owns the browser manager's shutdown.
type Server struct {
	cfg        config.Interface
	logger     *zap.Logger
	httpServer *http.Server
	browser    schemas.BrowserManager
	handlers   *Handlers
}

// New creates a Server. browser may be nil when the runner does not need one.
func New(cfg config.Interface, logger *zap.Logger, browser schemas.BrowserManager, runner Runner) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger.Named("server"),
		browser:  browser,
		handlers: NewHandlers(logger, runner, cfg.Server().MaxBodyBytes),
	}
}

// Router builds the HTTP handler with middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if timeout := s.cfg.Server().RequestTimeout; timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}
	r.Use(corsMiddleware)

	s.handlers.RegisterRoutes(r)
	return r
}

// Start serves until ctx is canceled or SIGINT/SIGTERM arrives, then shuts
// down gracefully: the listener first, then the browser.
func (s *Server) Start(ctx context.Context) error {
	defer observability.Sync()

	addr := s.cfg.Server().Addr
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.shutdownBrowser()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		s.logger.Info("Received shutdown signal, shutting down gracefully...")
		s.shutdown()
	}()

	s.logger.Info("Autoform server starting", zap.String("address", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server Serve error", zap.Error(err))
		stop()
		<-shutdownDone
		return err
	}

	<-shutdownDone
	s.logger.Info("Autoform server stopped.")
	return nil
}

func (s *Server) shutdown() {
	ctx, cancel := s.shutdownContext()
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	s.releaseBrowser(ctx)
}

func (s *Server) shutdownBrowser() {
	ctx, cancel := s.shutdownContext()
	defer cancel()
	s.releaseBrowser(ctx)
}

func (s *Server) releaseBrowser(ctx context.Context) {
	if s.browser == nil {
		return
	}
	s.logger.Info("Shutting down browser manager...")
	if err := s.browser.Shutdown(ctx); err != nil {
		s.logger.Error("Browser manager shutdown error", zap.Error(err))
	}
}

func (s *Server) shutdownContext() (context.Context, context.CancelFunc) {
	timeout := s.cfg.Server().ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

// corsMiddleware allows any origin to call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
