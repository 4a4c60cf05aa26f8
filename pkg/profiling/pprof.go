package profiling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/kacperjurak/tafelcore/pkg/config"
)

// Profiler manages the pprof side server
type Profiler struct {
	config config.ServerConfig
	server *http.Server
	logger *slog.Logger
}

// New creates a new profiler instance
func New(cfg config.ServerConfig, logger *slog.Logger) *Profiler {
	return &Profiler{
		config: cfg,
		logger: logger.With(slog.String("component", "profiler")),
	}
}

// Handler serves pprof under /debug and runtime info at /debug/info.
func (p *Profiler) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/debug", func(r chi.Router) {
		r.Get("/info", p.infoHandler)
		r.Mount("/", middleware.Profiler())
	})
	return r
}

// Start starts the profiling server on a separate port when enabled
func (p *Profiler) Start() error {
	if !p.config.EnableProfiling {
		p.logger.Debug("📊 Profiling disabled")
		return nil
	}

	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)

	ln, err := net.Listen("tcp", ":"+p.config.ProfilingPort)
	if err != nil {
		return fmt.Errorf("profiling listener: %w", err)
	}
	p.server = &http.Server{Handler: p.Handler()}

	p.logger.Info("📊 Starting profiling server",
		slog.String("addr", ln.Addr().String()),
		slog.String("index", "/debug/pprof/"),
		slog.String("info", "/debug/info"),
	)

	go func() {
		if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("❌ Profiling server error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Stop gracefully stops the profiling server
func (p *Profiler) Stop(ctx context.Context) error {
	if p.server == nil {
		return nil
	}

	p.logger.Info("🛑 Shutting down profiling server...")
	if err := p.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("profiling server shutdown error: %w", err)
	}
	p.logger.Info("✅ Profiling server stopped")
	return nil
}

// RuntimeInfo describes the running process.
type RuntimeInfo struct {
	Goroutines int      `json:"goroutines"`
	GOMAXPROCS int      `json:"gomaxprocs"`
	NumCPU     int      `json:"num_cpu"`
	Version    string   `json:"version"`
	Memory     MemStats `json:"memory"`
	GC         GCStats  `json:"gc"`
}

// infoHandler provides runtime information
func (p *Profiler) infoHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, RuntimeInfo{
		Goroutines: runtime.NumGoroutine(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		NumCPU:     runtime.NumCPU(),
		Version:    runtime.Version(),
		Memory:     GetMemStats(),
		GC:         GetGCStats(),
	})
}
