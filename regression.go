package tafelcore

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Regression holds an ordinary least-squares fit of y against x.
type Regression struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R         float64 `json:"r"`
	StdErr    float64 `json:"std_err"`
	N         int     `json:"n"`
}

// At evaluates the fitted line.
func (r Regression) At(x float64) float64 {
	return r.Slope*x + r.Intercept
}

// Regress fits y = slope*x + intercept.
//
// R is the Pearson correlation clamped to [-1, 1], and is 0 when y is
// constant. StdErr is the standard error of the slope with n-2 degrees of
// freedom, 0 for two points.
func Regress(x, y []float64) (Regression, error) {
	if len(x) != len(y) {
		return Regression{}, ErrLengthMismatch
	}
	n := len(x)
	if n < 2 {
		return Regression{}, ErrDegenerateWindow
	}

	_, varX := stat.PopMeanVariance(x, nil)
	if varX == 0 {
		return Regression{}, ErrDegenerateWindow
	}
	_, varY := stat.PopMeanVariance(y, nil)

	intercept, slope := stat.LinearRegression(x, y, nil, false)

	r := 0.0
	if varY != 0 {
		r = stat.Correlation(x, y, nil)
		r = math.Max(-1, math.Min(1, r))
	}

	stdErr := 0.0
	if n > 2 {
		stdErr = math.Sqrt((1 - r*r) * varY / varX / float64(n-2))
	}

	return Regression{
		Slope:     slope,
		Intercept: intercept,
		R:         r,
		StdErr:    stdErr,
		N:         n,
	}, nil
}
