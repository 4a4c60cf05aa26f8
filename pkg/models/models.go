package models

import (
	"math"
	"time"

	"github.com/kacperjurak/tafelcore"
)

// SweepRequest is one cyclic voltammetry sweep submitted for analysis.
// Voltages are against the reference electrode, currents in amperes.
type SweepRequest struct {
	SampleID string          `json:"sample_id" validate:"max=128"`
	Voltages []float64       `json:"voltages" validate:"required,min=2"`
	Currents []float64       `json:"currents" validate:"required,min=2"`
	Params   *ParamsOverride `json:"params,omitempty"`
}

// ParamsOverride replaces selected analysis parameters for one request.
// Unset fields keep the server configuration.
type ParamsOverride struct {
	MinSpan          *float64             `json:"min_span,omitempty" validate:"omitempty,gte=0"`
	MinLogJ          *float64             `json:"min_log_j,omitempty"`
	MinOverpotential *float64             `json:"min_overpotential,omitempty"`
	OnsetThreshold   *float64             `json:"onset_threshold,omitempty" validate:"omitempty,gte=0"`
	ReferenceLogJ    *float64             `json:"reference_log_j,omitempty"`
	CloseCycle       *bool                `json:"close_cycle,omitempty"`
	Electrode        *tafelcore.Electrode `json:"electrode,omitempty"`
}

// Apply returns p with the overridden fields replaced.
func (o *ParamsOverride) Apply(p tafelcore.Params) tafelcore.Params {
	if o == nil {
		return p
	}
	if o.MinSpan != nil {
		p.MinSpan = *o.MinSpan
	}
	if o.MinLogJ != nil {
		p.Quadrant.MinLogJ = *o.MinLogJ
	}
	if o.MinOverpotential != nil {
		p.Quadrant.MinOverpotential = *o.MinOverpotential
	}
	if o.OnsetThreshold != nil {
		p.OnsetThreshold = *o.OnsetThreshold
	}
	if o.ReferenceLogJ != nil {
		p.ReferenceLogJ = *o.ReferenceLogJ
	}
	if o.CloseCycle != nil {
		p.CloseCycle = *o.CloseCycle
	}
	if o.Electrode != nil {
		p.Electrode = *o.Electrode
	}
	return p
}

// BatchRequest is a set of sweeps analyzed asynchronously.
type BatchRequest struct {
	BatchID string         `json:"batch_id" validate:"max=128"`
	Sweeps  []SweepRequest `json:"sweeps" validate:"required,min=1,dive"`
}

// Point is one (log j, overpotential) pair of the fitted window.
type Point struct {
	LogJ          float64 `json:"log_j"`
	Overpotential float64 `json:"overpotential"`
}

// AnalysisResponse is the JSON form of a successful analysis.
type AnalysisResponse struct {
	RequestID  string               `json:"request_id"`
	SampleID   string               `json:"sample_id,omitempty"`
	Boundary   int                  `json:"boundary"`
	Rows       int                  `json:"rows"`
	Candidates int                  `json:"candidates"`
	Window     tafelcore.Window     `json:"window"`
	Regression tafelcore.Regression `json:"regression"`
	Summary    tafelcore.Summary    `json:"summary"`
	Linear     []Point              `json:"linear"`
}

// NewAnalysisResponse flattens an analysis for JSON. Non-finite optional
// results are dropped with a warning, since JSON cannot carry them.
func NewAnalysisResponse(requestID, sampleID string, an *tafelcore.Analysis) AnalysisResponse {
	x, y := an.Linear()
	linear := make([]Point, len(x))
	for i := range x {
		linear[i] = Point{LogJ: x[i], Overpotential: y[i]}
	}
	return AnalysisResponse{
		RequestID:  requestID,
		SampleID:   sampleID,
		Boundary:   an.Boundary,
		Rows:       len(an.Rows),
		Candidates: an.Candidates.Len(),
		Window:     an.Window,
		Regression: an.Regression,
		Summary:    FiniteSummary(an.Summary),
		Linear:     linear,
	}
}

// FiniteSummary returns a copy of s whose optional values are finite or nil.
func FiniteSummary(s tafelcore.Summary) tafelcore.Summary {
	s.Warnings = append([]string(nil), s.Warnings...)
	if v := s.ExchangeCurrentDensity; v != nil && !isFinite(*v) {
		s.ExchangeCurrentDensity = nil
		s.Warnings = append(s.Warnings, "exchange current density out of range")
	}
	if v := s.Onset; v != nil && !isFinite(*v) {
		s.Onset = nil
	}
	return s
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// BatchAccepted acknowledges a queued batch.
type BatchAccepted struct {
	Success bool   `json:"success"`
	BatchID string `json:"batch_id"`
	Sweeps  int    `json:"sweeps"`
	Message string `json:"message"`
}

// WorkItem represents a single sweep analysis task
type WorkItem struct {
	ID        int
	RequestID string
	BatchID   string
	SampleID  string
	Sweep     tafelcore.Sweep
	Params    tafelcore.Params
	StartTime time.Time
	// Reply receives the result; it must have room for it.
	Reply chan<- WorkResult
}

// WorkResult contains the result of one sweep analysis
type WorkResult struct {
	ID             int
	RequestID      string
	BatchID        string
	SampleID       string
	Analysis       *tafelcore.Analysis
	Err            error
	ProcessingTime time.Duration
}

// Success reports whether the analysis produced a result.
func (r WorkResult) Success() bool {
	return r.Err == nil && r.Analysis != nil
}

// WebhookItem represents a webhook task
type WebhookItem struct {
	RequestID      string
	BatchID        string
	SampleID       string
	Index          int
	Analysis       *tafelcore.Analysis
	Err            error
	ProcessingTime time.Duration
}

// WebhookFromResult builds the webhook task for a finished work item.
func WebhookFromResult(r WorkResult) WebhookItem {
	return WebhookItem{
		RequestID:      r.RequestID,
		BatchID:        r.BatchID,
		SampleID:       r.SampleID,
		Index:          r.ID,
		Analysis:       r.Analysis,
		Err:            r.Err,
		ProcessingTime: r.ProcessingTime,
	}
}

// WebhookPayload represents the webhook payload structure
type WebhookPayload struct {
	ID                     string            `json:"id"`
	Time                   string            `json:"time"`
	BatchID                string            `json:"batch_id,omitempty"`
	SampleID               string            `json:"sample_id,omitempty"`
	Index                  int               `json:"index"`
	Success                bool              `json:"success"`
	Kind                   string            `json:"kind"`
	Error                  string            `json:"error,omitempty"`
	ProcessingMs           float64           `json:"processing_ms"`
	Boundary               *int              `json:"boundary,omitempty"`
	Window                 *tafelcore.Window `json:"window,omitempty"`
	TafelSlope             *float64          `json:"tafel_slope,omitempty"`
	Intercept              *float64          `json:"intercept,omitempty"`
	R                      *float64          `json:"r,omitempty"`
	StdErr                 *float64          `json:"std_err,omitempty"`
	PotentialAtRef         *float64          `json:"potential_at_ref,omitempty"`
	OverpotentialAtRef     *float64          `json:"overpotential_at_ref,omitempty"`
	ExchangeCurrentDensity *float64          `json:"exchange_current_density,omitempty"`
	Onset                  *float64          `json:"onset_potential,omitempty"`
	Warnings               []string          `json:"warnings,omitempty"`
}

// SweepTiming tracks performance metrics for individual sweep processing
type SweepTiming struct {
	Index          int           `json:"index"`
	ProcessingTime time.Duration `json:"processing_time_ms"`
	TafelSlope     float64       `json:"tafel_slope"`
	Success        bool          `json:"success"`
	Kind           string        `json:"kind"`
}

// TimingFromResult records the timing of a finished work item.
func TimingFromResult(r WorkResult) SweepTiming {
	t := SweepTiming{
		Index:          r.ID,
		ProcessingTime: r.ProcessingTime,
		Success:        r.Success(),
		Kind:           tafelcore.ErrorKind(r.Err),
	}
	if t.Success {
		t.TafelSlope = r.Analysis.Summary.TafelSlope
	}
	return t
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
