package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kacperjurak/tafelcore/internal/processing"
	"github.com/kacperjurak/tafelcore/pkg/config"
	"github.com/kacperjurak/tafelcore/pkg/metrics"
	"github.com/kacperjurak/tafelcore/pkg/server"
)

type serveOptions struct {
	port    string
	workers int
	webhook string
	profile bool
}

func newServeCmd(a *app) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP analysis service",
		Long: `Serve starts the HTTP API:

  POST /api/v1/analyze        analyze one sweep synchronously
  POST /api/v1/analyze/batch  queue sweeps on the worker pool
  GET  /health
  GET  /metrics               Prometheus metrics

Batch results are posted to the webhook URL when one is configured.
SIGINT or SIGTERM drains connections and stops the workers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := &a.cfg.Server
			f := cmd.Flags()
			if f.Changed("port") {
				sc.Port = opts.port
			}
			if f.Changed("workers") {
				sc.WorkerCount = opts.workers
			}
			if f.Changed("webhook") {
				sc.WebhookURL = opts.webhook
			}
			if f.Changed("profile") {
				sc.EnableProfiling = opts.profile
			}
			return a.runServe(cmd.Context())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.port, "port", "p", "8080", "HTTP port")
	f.IntVarP(&opts.workers, "workers", "w", 5, "worker pool size for batches")
	f.StringVar(&opts.webhook, "webhook", "", "URL receiving batch results")
	f.BoolVar(&opts.profile, "profile", false, "serve pprof on the profiling port")
	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	m := metrics.New(nil)
	processor := processing.NewTafelProcessor(a.logger, m)
	srv := server.New(server.Options{
		Config:    cfg,
		Processor: processor.ProcessorFunc(),
		Metrics:   m,
		Logger:    a.logger,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("🛑 Received shutdown signal...")
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultServerConfig().ShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", slog.String("error", err.Error()))
		return err
	}
	return <-errCh
}
