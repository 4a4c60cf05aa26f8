package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kacperjurak/tafelcore"
	"github.com/kacperjurak/tafelcore/pkg/models"
)

// ErrClosed is returned when submitting to a pool that is shutting down.
var ErrClosed = errors.New("worker pool closed")

// ProcessorFunc analyzes one sweep
type ProcessorFunc func(s tafelcore.Sweep, p tafelcore.Params) (*tafelcore.Analysis, error)

// WebhookSender delivers finished results
type WebhookSender interface {
	Send(ctx context.Context, item models.WebhookItem) error
}

// Pool manages concurrent sweep analysis workers
type Pool struct {
	jobs         chan models.WorkItem
	webhookQueue chan models.WebhookItem
	workers      int
	shutdown     chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
	sends        sync.WaitGroup
	processor    ProcessorFunc
	sender       WebhookSender
	logger       *slog.Logger
}

// Options holds configuration for creating a new worker pool
type Options struct {
	Workers   int
	Processor ProcessorFunc
	// Sender is optional; without it queued webhooks are dropped.
	Sender WebhookSender
	Logger *slog.Logger
}

// New creates a new worker pool with specified configuration
func New(opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	// buffer jobs so submitting a batch does not wait on busy workers
	pool := &Pool{
		jobs:         make(chan models.WorkItem, opts.Workers*2),
		webhookQueue: make(chan models.WebhookItem, opts.Workers*4), // webhooks are slower than analysis
		workers:      opts.Workers,
		shutdown:     make(chan struct{}),
		processor:    opts.Processor,
		sender:       opts.Sender,
		logger:       opts.Logger.With(slog.String("component", "worker_pool")),
	}

	pool.start()
	return pool
}

// start initializes and starts all workers
func (p *Pool) start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.wg.Add(1)
	go p.webhookProcessor()

	p.logger.Info("🔧 Worker pool started", slog.Int("workers", p.workers))
}

// worker processes analysis jobs from the jobs channel
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobs:
			result := p.processJob(job)
			if job.Reply != nil {
				job.Reply <- result
			}

		case <-p.shutdown:
			return
		}
	}
}

// processJob runs the processor and times it
func (p *Pool) processJob(job models.WorkItem) models.WorkResult {
	startTime := time.Now()
	an, err := p.processor(job.Sweep, job.Params)
	processingTime := time.Since(startTime)

	p.logger.Debug("job processed",
		slog.String("request_id", job.RequestID),
		slog.String("batch_id", job.BatchID),
		slog.Int("index", job.ID),
		slog.Int("samples", len(job.Sweep)),
		slog.Duration("duration", processingTime),
		slog.String("kind", tafelcore.ErrorKind(err)),
	)

	return models.WorkResult{
		ID:             job.ID,
		RequestID:      job.RequestID,
		BatchID:        job.BatchID,
		SampleID:       job.SampleID,
		Analysis:       an,
		Err:            err,
		ProcessingTime: processingTime,
	}
}

// webhookProcessor handles webhook requests asynchronously
func (p *Pool) webhookProcessor() {
	defer p.wg.Done()

	for {
		select {
		case item := <-p.webhookQueue:
			// deliver without blocking the queue on a slow receiver
			p.sends.Add(1)
			go p.sendWebhook(item)

		case <-p.shutdown:
			return
		}
	}
}

func (p *Pool) sendWebhook(item models.WebhookItem) {
	defer p.sends.Done()
	if p.sender == nil {
		p.logger.Debug("no webhook configured, dropping result", slog.String("request_id", item.RequestID))
		return
	}

	start := time.Now()
	if err := p.sender.Send(context.Background(), item); err != nil {
		p.logger.Warn("❌ Webhook delivery failed",
			slog.String("request_id", item.RequestID),
			slog.String("error", err.Error()),
		)
		return
	}
	p.logger.Debug("🌐 Webhook delivered",
		slog.String("request_id", item.RequestID),
		slog.Duration("duration", time.Since(start)),
	)
}

// SubmitJob queues a job, waiting for room while the pool is busy.
func (p *Pool) SubmitJob(ctx context.Context, job models.WorkItem) error {
	select {
	case <-p.shutdown:
		return ErrClosed
	default:
	}

	select {
	case p.jobs <- job:
		return nil
	default:
		p.logger.Warn("⚠️ Worker pool jobs channel full, job may be delayed", slog.String("request_id", job.RequestID))
	}

	select {
	case p.jobs <- job:
		return nil
	case <-p.shutdown:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueWebhook queues a webhook for async processing
func (p *Pool) QueueWebhook(item models.WebhookItem) {
	select {
	case p.webhookQueue <- item:
	default:
		p.logger.Warn("⚠️ Webhook queue full, dropping webhook", slog.String("request_id", item.RequestID))
	}
}

// Workers returns the number of analysis workers.
func (p *Pool) Workers() int {
	return p.workers
}

// Done is closed when shutdown begins.
func (p *Pool) Done() <-chan struct{} {
	return p.shutdown
}

// Shutdown stops the workers and waits for in-flight webhooks.
func (p *Pool) Shutdown() {
	p.closeOnce.Do(func() {
		p.logger.Info("🛑 Shutting down worker pool...")
		close(p.shutdown)
		p.wg.Wait()
		p.sends.Wait()
		p.logger.Info("✅ Worker pool shutdown complete")
	})
}
