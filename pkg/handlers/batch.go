package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/render"

	"github.com/kacperjurak/tafelcore"
	"github.com/kacperjurak/tafelcore/internal/utils"
	"github.com/kacperjurak/tafelcore/pkg/config"
	"github.com/kacperjurak/tafelcore/pkg/models"
	"github.com/kacperjurak/tafelcore/pkg/worker"
)

// TimingHeader names the columns of the batch timing file.
var TimingHeader = []string{
	"Timestamp",
	"BatchID",
	"TotalSweeps",
	"Concurrency",
	"TotalBatchTime_ms",
	"AvgSweepTime_ms",
	"MinSweepTime_ms",
	"MaxSweepTime_ms",
	"SuccessRate",
	"AvgTafelSlope",
	"SweepsPerSecond",
	"EfficiencyScore",
}

// BatchHandler handles batch sweep analysis requests
type BatchHandler struct {
	config     *config.Config
	workerPool *worker.Pool
	logger     *slog.Logger

	// timingMu serializes appends from concurrent batches
	timingMu sync.Mutex
	// onDone, when set, observes every completed batch
	onDone func(batchID string, timings []models.SweepTiming)
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(cfg *config.Config, pool *worker.Pool, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{
		config:     cfg,
		workerPool: pool,
		logger:     logger.With(slog.String("handler", "batch")),
	}
}

// ServeHTTP handles POST /api/v1/analyze/batch
func (h *BatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var batch models.BatchRequest
	if err := decode(w, r, &batch); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	if err := validate.Struct(batch); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err), "validation")
		return
	}
	if batch.BatchID == "" {
		batch.BatchID = utils.GenerateID()
	}

	h.logger.InfoContext(r.Context(), "🔄 Batch processing started",
		slog.String("batch_id", batch.BatchID),
		slog.Int("sweeps", len(batch.Sweeps)),
	)

	go h.processBatchAsync(batch)

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, models.BatchAccepted{
		Success: true,
		BatchID: batch.BatchID,
		Sweeps:  len(batch.Sweeps),
		Message: "Batch processing started with worker pool",
	})
}

// processBatchAsync submits every sweep, then collects results, queues
// webhooks and records timing once all have returned.
func (h *BatchHandler) processBatchAsync(batch models.BatchRequest) {
	batchStartTime := time.Now()
	timings := make([]models.SweepTiming, len(batch.Sweeps))
	reply := make(chan models.WorkResult, len(batch.Sweeps))
	params := h.config.Params()

	pending := 0
	for i, req := range batch.Sweeps {
		job, err := h.createWorkItem(i, req, batch.BatchID, params, reply)
		if err == nil {
			err = h.workerPool.SubmitJob(context.Background(), job)
		}
		if err != nil {
			// rejected before analysis, reported like any other failure
			h.processResult(models.WorkResult{
				ID:        i,
				RequestID: job.RequestID,
				BatchID:   batch.BatchID,
				SampleID:  req.SampleID,
				Err:       err,
			}, timings)
			continue
		}
		pending++
	}

	for ; pending > 0; pending-- {
		select {
		case result := <-reply:
			h.processResult(result, timings)
		case <-h.workerPool.Done():
			h.logger.Warn("batch abandoned on shutdown",
				slog.String("batch_id", batch.BatchID),
				slog.Int("pending", pending),
			)
			return
		}
	}

	totalBatchTime := time.Since(batchStartTime)
	h.saveTimingResults(batch.BatchID, totalBatchTime, timings, h.workerPool.Workers())

	h.logger.Info("🎉 Batch processing completed",
		slog.String("batch_id", batch.BatchID),
		slog.Duration("total_time", totalBatchTime),
	)
	if h.onDone != nil {
		h.onDone(batch.BatchID, timings)
	}
}

// createWorkItem converts a batch entry to a work item
func (h *BatchHandler) createWorkItem(i int, req models.SweepRequest, batchID string, params tafelcore.Params, reply chan<- models.WorkResult) (models.WorkItem, error) {
	job := models.WorkItem{
		ID:        i,
		RequestID: fmt.Sprintf("%s_sweep_%03d", batchID, i),
		BatchID:   batchID,
		SampleID:  req.SampleID,
		Params:    req.Params.Apply(params),
		StartTime: time.Now(),
		Reply:     reply,
	}
	sweep, err := tafelcore.NewSweep(req.Voltages, req.Currents)
	if err != nil {
		return job, err
	}
	job.Sweep = sweep
	return job, nil
}

// processResult records timing and queues the webhook
func (h *BatchHandler) processResult(result models.WorkResult, timings []models.SweepTiming) {
	timings[result.ID] = models.TimingFromResult(result)
	h.workerPool.QueueWebhook(models.WebhookFromResult(result))

	if !h.config.Quiet {
		h.logger.Info("✅ Processed sweep",
			slog.String("batch_id", result.BatchID),
			slog.Int("index", result.ID),
			slog.String("kind", tafelcore.ErrorKind(result.Err)),
		)
	}
}

// saveTimingResults appends the batch statistics to the timing file
func (h *BatchHandler) saveTimingResults(batchID string, totalTime time.Duration, timings []models.SweepTiming, concurrency int) {
	filename := h.config.Server.TimingFile
	if filename == "" {
		return
	}

	h.timingMu.Lock()
	defer h.timingMu.Unlock()

	var writeHeader bool
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		writeHeader = true
	}

	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		h.logger.Error("Error opening timing file", slog.String("file", filename), slog.String("error", err.Error()))
		return
	}
	defer file.Close()

	stats := timingStats(timings, totalTime, concurrency)
	if err := writeTimingRecord(file, writeHeader, time.Now(), batchID, stats); err != nil {
		h.logger.Error("Error writing timing record", slog.String("file", filename), slog.String("error", err.Error()))
		return
	}

	h.logger.Info("📊 Timing saved",
		slog.Int("sweeps", stats.Sweeps),
		slog.Int("concurrency", concurrency),
		slog.Duration("total_time", totalTime),
		slog.Float64("success_rate", stats.SuccessRate),
		slog.Float64("efficiency", stats.Efficiency),
	)
}

// batchStats summarizes one batch for the timing file.
type batchStats struct {
	Sweeps        int
	Concurrency   int
	Total         time.Duration
	Avg, Min, Max time.Duration
	SuccessRate   float64
	AvgTafelSlope float64
	SweepsPerSec  float64
	Efficiency    float64
}

func timingStats(timings []models.SweepTiming, totalTime time.Duration, concurrency int) batchStats {
	s := batchStats{Sweeps: len(timings), Concurrency: concurrency, Total: totalTime}
	if s.Sweeps == 0 {
		return s
	}

	var sum time.Duration
	var successful int
	var slopeSum float64
	s.Min = timings[0].ProcessingTime
	for _, t := range timings {
		sum += t.ProcessingTime
		s.Min = min(s.Min, t.ProcessingTime)
		s.Max = max(s.Max, t.ProcessingTime)
		if t.Success {
			successful++
			slopeSum += t.TafelSlope
		}
	}

	s.Avg = sum / time.Duration(s.Sweeps)
	s.SuccessRate = float64(successful) / float64(s.Sweeps) * 100
	if successful > 0 {
		s.AvgTafelSlope = slopeSum / float64(successful)
	}
	if secs := totalTime.Seconds(); secs > 0 {
		s.SweepsPerSec = float64(s.Sweeps) / secs
		// 1.0 means the workers were kept fully busy
		if concurrency > 0 {
			s.Efficiency = sum.Seconds() / secs / float64(concurrency)
		}
	}
	return s
}

func writeTimingRecord(w io.Writer, header bool, now time.Time, batchID string, s batchStats) error {
	writer := csv.NewWriter(w)
	if header {
		if err := writer.Write(TimingHeader); err != nil {
			return err
		}
	}
	record := []string{
		now.Format(time.RFC3339),
		batchID,
		fmt.Sprintf("%d", s.Sweeps),
		fmt.Sprintf("%d", s.Concurrency),
		millis(s.Total),
		millis(s.Avg),
		millis(s.Min),
		millis(s.Max),
		fmt.Sprintf("%.1f", s.SuccessRate),
		fmt.Sprintf("%.3f", s.AvgTafelSlope),
		fmt.Sprintf("%.2f", s.SweepsPerSec),
		fmt.Sprintf("%.3f", s.Efficiency),
	}
	if err := writer.Write(record); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d.Nanoseconds())/1e6)
}
