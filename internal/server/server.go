// Package server exposes the runner and the task service over HTTP: script
// execution with incremental and streamed logs, asynchronous analysis tasks,
// and a health probe. Responses are JSON; errors are `{"error": ...}` with
// the matching status code.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sasbridge/internal/runner"
	"sasbridge/internal/task"
)

// Config tunes the HTTP server.
type Config struct {
	// Listen address
	Addr string

	// Grace period for in-flight requests on shutdown
	ShutdownTimeout time.Duration

	// Cap on request body size in bytes
	MaxBodyBytes int64

	// Interval between comment heartbeats on an idle SSE stream
	Heartbeat time.Duration

	// Interval between log polls while streaming
	PollInterval time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		ShutdownTimeout: 5 * time.Second,
		MaxBodyBytes:    1 << 20,
		Heartbeat:       15 * time.Second,
		PollInterval:    200 * time.Millisecond,
	}
}

// Server routes HTTP requests to the runner and the task service.
type Server struct {
	config  Config
	runner  *runner.Runner
	tasks   *task.Service
	logger  *zap.Logger
	handler http.Handler
	http    *http.Server
}

// New creates a server with the default configuration.
func New(run *runner.Runner, tasks *task.Service, logger *zap.Logger) *Server {
	return NewWithConfig(DefaultConfig(), run, tasks, logger)
}

// NewWithConfig creates a server. Zero config fields fall back to defaults;
// a nil logger is replaced with a no-op one.
func NewWithConfig(config Config, run *runner.Runner, tasks *task.Service, logger *zap.Logger) *Server {
	defaults := DefaultConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if config.Heartbeat <= 0 {
		config.Heartbeat = defaults.Heartbeat
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: config,
		runner: run,
		tasks:  tasks,
		logger: logger,
	}
	s.handler = s.withLogging(s.routes())
	s.http = &http.Server{
		Addr:              config.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for mounting or testing without a
// listener.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens until ctx is canceled, then shuts down gracefully. A server
// start failure is returned immediately.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("Server listening", zap.String("addr", s.config.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Graceful shutdown incomplete", zap.Error(err))
		return s.http.Close()
	}
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/run", s.handleRunStart)
	mux.HandleFunc("GET /api/run/{id}", s.handleRunStatus)
	mux.HandleFunc("GET /api/run/{id}/logs", s.handleRunLogs)
	mux.HandleFunc("GET /api/run/{id}/stream", s.handleRunStream)
	mux.HandleFunc("POST /api/run/{id}/stop", s.handleRunStop)
	mux.HandleFunc("POST /api/analyze/code", s.handleAnalyzeCode)
	mux.HandleFunc("POST /api/analyze/file", s.handleAnalyzeFile)
	mux.HandleFunc("POST /api/analyze/directory", s.handleAnalyzeDirectory)
	mux.HandleFunc("GET /api/task/{id}", s.handleTaskGet)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// statusRecorder captures the response status for request logging. It
// forwards Flush so streaming handlers still see a Flusher.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("Request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
