// Package server is the local preview HTTP server used by `spectra serve` and
// `spectra build -s`.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
	"git.home.luguber.info/inful/spectra/internal/metrics"
	"git.home.luguber.info/inful/spectra/internal/server/middleware"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. "127.0.0.1:8080".
	Addr string
	// LiveReload enables /livereload and /livereload.js when non-nil.
	LiveReload *LiveReloadHub
	// Gatherer enables /metrics when non-nil.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server wraps an http.Server with the preview routes.
type Server struct {
	opts    Options
	router  *chi.Mux
	server  *http.Server
	logger  *slog.Logger
	adapter *errors.HTTPErrorAdapter
}

// New creates a server that answers every unmatched route with content.
func New(content http.Handler, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		opts:    opts,
		router:  chi.NewRouter(),
		logger:  logger,
		adapter: errors.NewHTTPErrorAdapter(logger),
	}
	s.setupRoutes(content)

	// No write timeout: /livereload is a long-lived stream.
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(content http.Handler) {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Chain(s.logger, s.adapter))

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.opts.LiveReload != nil {
		s.router.Get("/livereload", s.opts.LiveReload.ServeHTTP)
		s.router.Get("/livereload.js", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			_, _ = w.Write([]byte(LiveReloadScript))
		})
	}
	if s.opts.Gatherer != nil {
		s.router.Handle("/metrics", metrics.HTTPHandler(s.opts.Gatherer))
	}
	s.router.Handle("/*", content)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Serve listens on the configured address and serves until ctx is canceled,
// then shuts down gracefully. ready, when non-nil, receives the base URL once
// the listener is open.
func (s *Server) Serve(ctx context.Context, ready func(baseURL string)) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "failed to listen").
			WithContext("addr", s.opts.Addr).
			Fatal().
			Build()
	}
	if ready != nil {
		ready(baseURL(ln.Addr()))
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(ln) }()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WrapError(err, errors.CategoryNetwork, "server failed").Build()
	case <-ctx.Done():
	}

	if s.opts.LiveReload != nil {
		s.opts.LiveReload.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func baseURL(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return "http://" + addr.String() + "/"
	}
	host := tcp.IP.String()
	if tcp.IP.IsUnspecified() {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s/", net.JoinHostPort(host, fmt.Sprint(tcp.Port)))
}
