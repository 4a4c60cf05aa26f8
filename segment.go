package tafelcore

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultMinSpan is the minimum x-span, in decades of current density, a
// window must cover to be considered.
const DefaultMinSpan = 1.0

// Window is a half-open index range [Start, End) into a candidate series.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of points in the window.
func (w Window) Len() int {
	return w.End - w.Start
}

// Span returns x[End-1] - x[Start].
func (w Window) Span(x []float64) float64 {
	return x[w.End-1] - x[w.Start]
}

// SegmentFinder searches for the contiguous window of a series whose linear
// regression has the highest correlation coefficient.
type SegmentFinder struct {
	// MinSpan is the smallest x[j-1]-x[i] a window may cover.
	MinSpan float64
	// Workers > 1 spreads start indices over goroutines. The result is
	// identical to the sequential search.
	Workers int
	// MaxPoints bounds the series length. Zero means unbounded.
	MaxPoints int
}

// FindBestSegment runs a sequential SegmentFinder with the given span.
func FindBestSegment(x, y []float64, minSpan float64) (Window, Regression, error) {
	f := SegmentFinder{MinSpan: minSpan}
	return f.Find(x, y)
}

type rowBest struct {
	end int
	r   float64
}

// Find enumerates every window [i, j) with i ascending then j ascending and
// keeps the first one with a strictly greater r. The best r starts at zero,
// so windows with r <= 0 never win. The returned regression is recomputed
// over the winning window.
func (f SegmentFinder) Find(x, y []float64) (Window, Regression, error) {
	if len(x) != len(y) {
		return Window{}, Regression{}, fmt.Errorf("%w: len(x)=%d len(y)=%d", ErrLengthMismatch, len(x), len(y))
	}
	n := len(x)
	if n == 0 {
		return Window{}, Regression{}, ErrNotFound
	}
	if f.MaxPoints > 0 && n > f.MaxPoints {
		return Window{}, Regression{}, fmt.Errorf("%w: %d > %d", ErrTooManyPoints, n, f.MaxPoints)
	}

	rows := make([]rowBest, n)
	if f.Workers > 1 {
		var g errgroup.Group
		g.SetLimit(f.Workers)
		for i := 0; i < n; i++ {
			g.Go(func() error {
				rows[i] = f.scanRow(x, y, i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := 0; i < n; i++ {
			rows[i] = f.scanRow(x, y, i)
		}
	}

	best := Window{}
	bestR := 0.0
	found := false
	for i, row := range rows {
		if row.end > 0 && row.r > bestR {
			bestR = row.r
			best = Window{Start: i, End: row.end}
			found = true
		}
	}
	if !found {
		return Window{}, Regression{}, ErrNotFound
	}

	reg, err := Regress(x[best.Start:best.End], y[best.Start:best.End])
	if err != nil {
		return Window{}, Regression{}, fmt.Errorf("final regression over [%d, %d): %w", best.Start, best.End, err)
	}
	return best, reg, nil
}

// scanRow returns the first end index with the strictly greatest positive r
// among windows starting at i. end is zero when none qualifies.
func (f SegmentFinder) scanRow(x, y []float64, i int) rowBest {
	best := rowBest{}
	for j := i + 1; j <= len(x); j++ {
		if x[j-1]-x[i] < f.MinSpan {
			continue
		}
		reg, err := Regress(x[i:j], y[i:j])
		if err != nil {
			continue
		}
		if reg.R > best.r {
			best = rowBest{end: j, r: reg.R}
		}
	}
	return best
}
