package processing

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kacperjurak/tafelcore"
	"github.com/kacperjurak/tafelcore/pkg/metrics"
)

// TafelProcessor validates sweeps, runs the analysis and records metrics.
type TafelProcessor struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewTafelProcessor creates a processor. m may be nil.
func NewTafelProcessor(logger *slog.Logger, m *metrics.Metrics) *TafelProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TafelProcessor{
		logger:  logger.With(slog.String("component", "processor")),
		metrics: m,
	}
}

// Process analyzes one sweep with the given parameters.
func (p *TafelProcessor) Process(s tafelcore.Sweep, params tafelcore.Params) (*tafelcore.Analysis, error) {
	start := time.Now()
	an, err := p.process(s, params)
	duration := time.Since(start)

	rows := 0
	if an != nil {
		rows = len(an.Rows)
	}
	if p.metrics != nil {
		p.metrics.ObserveAnalysis(err, rows, duration)
	}

	if err != nil {
		p.logger.Info("analysis failed",
			slog.Int("samples", len(s)),
			slog.String("kind", tafelcore.ErrorKind(err)),
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
		return nil, err
	}

	p.logger.Debug("analysis completed",
		slog.Int("samples", len(s)),
		slog.Int("boundary", an.Boundary),
		slog.Int("window_start", an.Window.Start),
		slog.Int("window_end", an.Window.End),
		slog.Float64("tafel_slope", an.Summary.TafelSlope),
		slog.Float64("r", an.Summary.R),
		slog.Duration("duration", duration),
	)
	for _, w := range an.Summary.Warnings {
		p.logger.Warn("analysis warning", slog.String("warning", w))
	}
	return an, nil
}

func (p *TafelProcessor) process(s tafelcore.Sweep, params tafelcore.Params) (*tafelcore.Analysis, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("no sweep data provided: %w", tafelcore.ErrEmptySweep)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if params.Electrode.Area <= 0 {
		return nil, fmt.Errorf("%w: area must be positive, got %g", tafelcore.ErrInvalidElectrode, params.Electrode.Area)
	}
	return tafelcore.NewAnalyzer(params).Analyze(s)
}

// ProcessorFunc adapts Process to the worker pool and handler signature.
func (p *TafelProcessor) ProcessorFunc() func(s tafelcore.Sweep, params tafelcore.Params) (*tafelcore.Analysis, error) {
	return p.Process
}
