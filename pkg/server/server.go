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
	"github.com/go-chi/render"

	"github.com/kacperjurak/tafelcore/pkg/config"
	"github.com/kacperjurak/tafelcore/pkg/handlers"
	"github.com/kacperjurak/tafelcore/pkg/metrics"
	"github.com/kacperjurak/tafelcore/pkg/profiling"
	"github.com/kacperjurak/tafelcore/pkg/webhook"
	"github.com/kacperjurak/tafelcore/pkg/worker"
)

// Server represents the HTTP server with all dependencies
type Server struct {
	config     *config.Config
	workerPool *worker.Pool
	httpServer *http.Server
	profiler   *profiling.Profiler
	metrics    *metrics.Metrics
	logger     *slog.Logger
	router     chi.Router
	started    time.Time
}

// Options holds configuration for creating a new server
type Options struct {
	Config    *config.Config
	Processor handlers.ProcessorFunc
	// Metrics defaults to a fresh registry.
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// New creates a new server instance
func New(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	sc := opts.Config.Server

	var sender worker.WebhookSender
	if sc.WebhookURL != "" {
		sender = webhook.NewClient(sc.WebhookURL, webhook.WithLogger(opts.Logger))
	}

	workerPool := worker.New(worker.Options{
		Workers:   sc.WorkerCount,
		Processor: worker.ProcessorFunc(opts.Processor),
		Sender:    sender,
		Logger:    opts.Logger,
	})

	s := &Server{
		config:     opts.Config,
		workerPool: workerPool,
		profiler:   profiling.New(sc, opts.Logger),
		metrics:    opts.Metrics,
		logger:     opts.Logger.With(slog.String("component", "server")),
		started:    time.Now(),
	}

	s.setupRoutes(opts.Processor)
	return s
}

// setupRoutes configures HTTP routes and handlers
func (s *Server) setupRoutes(processor handlers.ProcessorFunc) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	if origins := s.config.Server.CORSOrigins; len(origins) > 0 {
		r.Use(corsHandler(origins))
	}

	analyzeHandler := handlers.NewAnalyzeHandler(s.config, processor, s.logger)
	batchHandler := handlers.NewBatchHandler(s.config, s.workerPool, s.logger)

	r.Route("/api/v1", func(r chi.Router) {
		if rps := s.config.Server.RateLimit; rps > 0 {
			r.Use(newRateLimiter(rps, s.config.Server.RateBurst, s.logger).Handler)
		}
		r.Method(http.MethodPost, "/analyze", analyzeHandler)
		r.Method(http.MethodPost, "/analyze/batch", batchHandler)
	})
	r.Get("/health", s.healthHandler)
	if s.config.Server.EnableMetrics {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Post("/debug/gc", s.gcHandler)
	r.Get("/debug/memory", s.memoryHandler)

	s.router = r
	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Server.Port,
		Handler:      r,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// healthHandler provides a simple health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"workers":   s.workerPool.Workers(),
	})
}

// gcHandler triggers garbage collection and returns stats
func (s *Server) gcHandler(w http.ResponseWriter, r *http.Request) {
	profiling.ForceGC(s.logger)
	render.JSON(w, r, profiling.GetGCStats())
}

// memoryHandler returns current memory statistics
func (s *Server) memoryHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, profiling.GetMemStats())
}

// Start listens on the configured port and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.profiler.Start(); err != nil {
		s.logger.Error("❌ Failed to start profiler", slog.String("error", err.Error()))
	}

	addr := ln.Addr().String()
	s.logger.Info("🚀 Starting HTTP server", slog.String("addr", addr))
	s.logger.Info("📡 Endpoints available",
		slog.String("analyze", "POST /api/v1/analyze"),
		slog.String("batch", "POST /api/v1/analyze/batch"),
		slog.String("health", "GET /health"),
		slog.Bool("metrics", s.config.Server.EnableMetrics),
	)

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains HTTP connections, then stops the profiler and workers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("🛑 Shutting down server...")

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.logger.Warn("⚠️ HTTP shutdown error", slog.String("error", err.Error()))
	}

	if perr := s.profiler.Stop(ctx); perr != nil {
		s.logger.Warn("⚠️ Profiler shutdown error", slog.String("error", perr.Error()))
	}

	s.workerPool.Shutdown()

	s.logger.Info("✅ Server shutdown complete")
	return err
}
