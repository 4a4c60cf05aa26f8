package tafelcore

import (
	"fmt"
)

// Params configures an Analyzer.
type Params struct {
	Electrode Electrode `json:"electrode"`
	Quadrant  Quadrant  `json:"quadrant"`
	// MinSpan is the minimum log j range of the fitted window, in decades.
	MinSpan float64 `json:"min_span"`
	// OnsetThreshold is the |j| in mA/cm^2 that marks the onset potential.
	OnsetThreshold float64 `json:"onset_threshold"`
	// ReferenceLogJ is where potential and overpotential are reported.
	ReferenceLogJ float64 `json:"reference_log_j"`
	// CloseCycle appends the first sample before analysis.
	CloseCycle bool `json:"close_cycle"`
	Workers    int  `json:"workers"`
	MaxPoints  int  `json:"max_points"`
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Electrode:      DefaultElectrode(),
		MinSpan:        DefaultMinSpan,
		OnsetThreshold: 1.0,
		ReferenceLogJ:  DefaultReferenceLogJ,
		Workers:        1,
	}
}

// Analysis is the full result for one sweep.
type Analysis struct {
	Boundary   int             `json:"boundary"`
	Rows       []Row           `json:"rows"`
	Candidates CandidateSeries `json:"candidates"`
	Window     Window          `json:"window"`
	Regression Regression      `json:"regression"`
	Summary    Summary         `json:"summary"`
}

// Linear returns the candidate points inside the fitted window.
func (a *Analysis) Linear() (x, y []float64) {
	w := a.Window
	return a.Candidates.X[w.Start:w.End], a.Candidates.Y[w.Start:w.End]
}

// Analyzer runs boundary detection, derivation, segment search and summary
// for single sweeps. It holds no state between calls.
type Analyzer struct {
	params Params
	finder SegmentFinder
}

func NewAnalyzer(p Params) *Analyzer {
	return &Analyzer{
		params: p,
		finder: SegmentFinder{MinSpan: p.MinSpan, Workers: p.Workers, MaxPoints: p.MaxPoints},
	}
}

// Params returns the analyzer configuration.
func (a *Analyzer) Params() Params {
	return a.params
}

// Analyze processes one sweep. The sweep is not modified.
func (a *Analyzer) Analyze(s Sweep) (*Analysis, error) {
	if len(s) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples, got %d", ErrEmptySweep, len(s))
	}
	if a.params.CloseCycle {
		s = CloseCycle(s)
	}

	boundary, err := FindBoundary(s.Voltages())
	if err != nil {
		return nil, err
	}

	rows, err := Derive(s, boundary, a.params.Electrode)
	if err != nil {
		return nil, err
	}

	cands := Candidates(rows, a.params.Quadrant)
	w, reg, err := a.finder.Find(cands.X, cands.Y)
	if err != nil {
		return nil, fmt.Errorf("%d candidate points: %w", cands.Len(), err)
	}

	return &Analysis{
		Boundary:   boundary,
		Rows:       rows,
		Candidates: cands,
		Window:     w,
		Regression: reg,
		Summary:    Summarize(rows, cands, w, reg, a.params),
	}, nil
}
