// Package server exposes the gathered statistics over HTTP. A single
// worker pool carries the blocking parts of every request, the database
// gather and the text encoding, so the handler goroutines only shuttle
// ready-made chunks to clients.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/maropu/pg-stats-exporter/metric"
	"github.com/maropu/pg-stats-exporter/pkg/worker"
)

// Gatherer produces metric families for one scrape.
type Gatherer interface {
	Gather(ctx context.Context) ([]*dto.MetricFamily, error)
}

// Task is one unit of blocking work handed to the pool.
type Task func(ctx context.Context) error

// Config holds the HTTP server settings.
type Config struct {
	ListenAddr      string
	BufferSize      int
	Workers         int
	QueueSize       int
	ShutdownTimeout time.Duration
}

// Server serves /metrics, /health and an index page.
type Server struct {
	config   Config
	logger   *slog.Logger
	registry *metric.Registry
	gatherer Gatherer
	pool     *worker.Pool[Task]

	httpServer *http.Server
}

// New builds the server and its worker pool. Start must be called before
// the server accepts requests.
func New(config Config, logger *slog.Logger, registry *metric.Registry, gatherer Gatherer) *Server {
	pool := worker.NewPool(
		config.Workers,
		config.QueueSize,
		func(ctx context.Context, task Task) error { return task(ctx) },
		worker.WithMetricsRegistry[Task](registry, "pg_stats_exporter_worker"),
	)

	s := &Server{
		config:   config,
		logger:   logger,
		registry: registry,
		gatherer: gatherer,
		pool:     pool,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", s.span("metrics", s.handleMetrics))
	mux.Handle("GET /health", s.span("health", s.handleHealth))
	mux.Handle("GET /{$}", s.span("index", s.handleIndex))

	s.httpServer = &http.Server{
		Addr:              config.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the server's HTTP handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start launches the worker pool and blocks serving HTTP until the
// listener fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if err := s.pool.Start(ctx); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}

	s.logger.Info("listening", "addr", s.config.ListenAddr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve on %s: %w", s.config.ListenAddr, err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the worker pool.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	if stopErr := s.pool.Stop(s.config.ShutdownTimeout); stopErr != nil {
		s.logger.Warn("worker pool did not drain", "error", stopErr)
		if err == nil {
			err = stopErr
		}
	}

	return err
}
