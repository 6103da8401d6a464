// Package server exposes the engine over a JSON HTTP API.
//
// Routes:
//
//	POST /execute-curl   send one structured request
//	POST /run-tests      run a payload suite against a template
//	GET  /suites         list payload suites
//	POST /export/html    render results as an HTML report
//	POST /export/pdf     render results as a PDF report
//	GET  /health         liveness probe
//	GET  /metrics        Prometheus exposition (when metrics are enabled)
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/waftester/greenapi/pkg/core"
	"github.com/waftester/greenapi/pkg/defaults"
	"github.com/waftester/greenapi/pkg/duration"
	"github.com/waftester/greenapi/pkg/metrics"
)

// Config holds HTTP server settings.
type Config struct {
	// Addr is the listen address (default ":3000").
	Addr string

	// MaxBodyBytes caps request bodies (default 10 MiB).
	MaxBodyBytes int64

	// ShutdownTimeout bounds graceful shutdown (default 10s).
	ShutdownTimeout time.Duration
}

// Server serves the API for one engine.
type Server struct {
	config  Config
	engine  *core.Engine
	metrics *metrics.Metrics
	logger  *slog.Logger
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for access and error logs.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics mounts /metrics backed by m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a server for engine.
func New(engine *core.Engine, cfg Config, opts ...Option) *Server {
	if cfg.Addr == "" {
		cfg.Addr = defaults.ListenAddr
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaults.MaxRequestBody
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = duration.ShutdownGrace
	}

	s := &Server{
		config: cfg,
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()
	return s
}

// Handler returns the API handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute-curl", s.handleExecuteCurl)
	mux.HandleFunc("POST /run-tests", s.handleRunTests)
	mux.HandleFunc("GET /suites", s.handleSuites)
	mux.HandleFunc("POST /export/html", s.handleExportHTML)
	mux.HandleFunc("POST /export/pdf", s.handleExportPDF)
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return s.recovery(securityHeaders(s.accessLog(mux)))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: duration.ReadHeader,
		IdleTimeout:       duration.IdleConn,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
