package tafelcore

import (
	"fmt"
	"math"
)

// DefaultReferenceLogJ is log10 of the 10 mA/cm^2 benchmark current density.
const DefaultReferenceLogJ = 1.0

// TafelSlope converts a fitted slope in V/decade to mV/decade.
func TafelSlope(reg Regression) float64 {
	return 1000 * reg.Slope
}

// ExchangeCurrentDensity extrapolates the fit to zero overpotential,
// 10^(-intercept/slope), in the units of the fitted current density.
func ExchangeCurrentDensity(reg Regression) (float64, error) {
	if reg.Slope == 0 {
		return 0, ErrDegenerateSlope
	}
	return math.Pow(10, -reg.Intercept/reg.Slope), nil
}

// OverpotentialAt returns the fitted overpotential at a log current density.
func OverpotentialAt(reg Regression, logJ float64) float64 {
	return reg.At(logJ)
}

// PotentialAt returns the fitted absolute potential at a log current density.
func PotentialAt(reg Regression, logJ, reversible float64) float64 {
	return reg.At(logJ) + reversible
}

// OnsetPoint is where the current density first exceeds the threshold.
type OnsetPoint struct {
	Index     int     `json:"index"`
	Potential float64 `json:"potential"`
}

// OnsetPotential scans rows in order and returns the NHE potential of the
// first one whose |j| exceeds threshold.
func OnsetPotential(rows []Row, threshold float64) (OnsetPoint, error) {
	for i, r := range rows {
		if math.Abs(r.CurrentDensity) > threshold {
			return OnsetPoint{Index: i, Potential: r.VNHE}, nil
		}
	}
	return OnsetPoint{}, fmt.Errorf("%w: |j| <= %g across %d rows", ErrNoOnset, threshold, len(rows))
}

// Summary is the electrochemical activity of one sweep.
type Summary struct {
	TafelSlope             float64  `json:"tafel_slope"`
	Slope                  float64  `json:"slope"`
	Intercept              float64  `json:"intercept"`
	R                      float64  `json:"r"`
	StdErr                 float64  `json:"std_err"`
	LogJStart              float64  `json:"log_j_start"`
	LogJEnd                float64  `json:"log_j_end"`
	ReferenceLogJ          float64  `json:"reference_log_j"`
	OverpotentialAtRef     float64  `json:"overpotential_at_ref"`
	PotentialAtRef         float64  `json:"potential_at_ref"`
	ExchangeCurrentDensity *float64 `json:"exchange_current_density"`
	Onset                  *float64 `json:"onset_potential"`
	Warnings               []string `json:"warnings,omitempty"`
}

// Summarize derives the summary for a fitted window. Undefined exchange
// current density or a missing onset are recorded as nil with a warning.
func Summarize(rows []Row, c CandidateSeries, w Window, reg Regression, p Params) Summary {
	s := Summary{
		TafelSlope:         TafelSlope(reg),
		Slope:              reg.Slope,
		Intercept:          reg.Intercept,
		R:                  reg.R,
		StdErr:             reg.StdErr,
		LogJStart:          c.X[w.Start],
		LogJEnd:            c.X[w.End-1],
		ReferenceLogJ:      p.ReferenceLogJ,
		OverpotentialAtRef: OverpotentialAt(reg, p.ReferenceLogJ),
		PotentialAtRef:     PotentialAt(reg, p.ReferenceLogJ, p.Electrode.ReversiblePotential),
	}

	if j0, err := ExchangeCurrentDensity(reg); err != nil {
		s.Warnings = append(s.Warnings, err.Error())
	} else {
		s.ExchangeCurrentDensity = &j0
	}

	if onset, err := OnsetPotential(rows, p.OnsetThreshold); err != nil {
		s.Warnings = append(s.Warnings, err.Error())
	} else {
		s.Onset = &onset.Potential
	}
	return s
}
