package report

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kacperjurak/tafelcore"
)

var (
	pointColor  = color.Black
	fitColor    = color.RGBA{R: 0x1f, G: 0x4e, B: 0xd8, A: 0xff}
	windowColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}

	// overlayPalette cycles through sample colors on the overlay chart.
	overlayPalette = []color.Color{
		color.RGBA{R: 0x5d, G: 0xa5, B: 0xda, A: 0xff},
		color.RGBA{R: 0xfa, G: 0xa4, B: 0x3a, A: 0xff},
		color.RGBA{R: 0x60, G: 0xbd, B: 0x68, A: 0xff},
		color.RGBA{R: 0xf1, G: 0x7c, B: 0xb0, A: 0xff},
		color.RGBA{R: 0xb2, G: 0x91, B: 0x2f, A: 0xff},
		color.RGBA{R: 0xb2, G: 0x76, B: 0xb2, A: 0xff},
		color.RGBA{R: 0xde, G: 0xcf, B: 0x3f, A: 0xff},
		color.RGBA{R: 0xf1, G: 0x58, B: 0x54, A: 0xff},
		color.RGBA{R: 0x4d, G: 0x4d, B: 0x4d, A: 0xff},
	}
)

// ChartOptions sets the rendered image size and format.
type ChartOptions struct {
	// Size is the edge length in inches.
	Size   float64
	Format string
}

// DefaultChartOptions renders 4 inch PNG images.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{Size: 4, Format: "png"}
}

// TafelChart plots overpotential against log j: candidate points in black,
// the fitted window in red and the regression line in blue.
func TafelChart(title string, an *tafelcore.Analysis) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "log j (mA/cm^2)"
	p.Y.Label.Text = "Overpotential (V)"
	p.Add(plotter.NewGrid())

	all, err := plotter.NewScatter(xys(an.Candidates.X, an.Candidates.Y))
	if err != nil {
		return nil, fmt.Errorf("candidate points: %w", err)
	}
	all.GlyphStyle.Color = pointColor
	all.GlyphStyle.Radius = vg.Points(1.5)

	wx, wy := an.Linear()
	window, err := plotter.NewScatter(xys(wx, wy))
	if err != nil {
		return nil, fmt.Errorf("window points: %w", err)
	}
	window.GlyphStyle.Color = windowColor
	window.GlyphStyle.Radius = vg.Points(2)

	fit, err := fitLine(an.Regression, an.Candidates.X)
	if err != nil {
		return nil, err
	}
	fit.LineStyle.Color = fitColor

	p.Add(all, window, fit)
	p.Legend.Add("data", all)
	p.Legend.Add(fmt.Sprintf("fit %.1f mV/dec", an.Summary.TafelSlope), fit)
	p.Legend.Top = false
	return p, nil
}

// PolarizationChart plots current density against NHE potential.
// Inverted flips the current axis for cathodic sweeps.
func PolarizationChart(title string, rows []tafelcore.Row, inverted bool) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Potential (V vs NHE)"
	p.Y.Label.Text = "j (mA/cm^2)"
	p.Add(plotter.NewGrid())
	if inverted {
		p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	}

	x := make([]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x[i] = r.VNHE
		y[i] = r.CurrentDensity
	}
	l, err := plotter.NewLine(xys(x, y))
	if err != nil {
		return nil, fmt.Errorf("polarization curve: %w", err)
	}
	l.LineStyle.Color = pointColor
	p.Add(l)
	return p, nil
}

// Overlay accumulates the fitted windows of several samples on one chart.
type Overlay struct {
	plot *plot.Plot
	n    int
}

// NewOverlay creates an empty overlay chart.
func NewOverlay(title string) *Overlay {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "log j (mA/cm^2)"
	p.Y.Label.Text = "Overpotential (V)"
	p.Add(plotter.NewGrid())
	p.Legend.Top = false
	return &Overlay{plot: p}
}

// Add draws a sample's window points and fit line in the next palette color.
func (o *Overlay) Add(name string, an *tafelcore.Analysis) error {
	c := overlayPalette[o.n%len(overlayPalette)]

	wx, wy := an.Linear()
	pts, err := plotter.NewScatter(xys(wx, wy))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	pts.GlyphStyle.Color = c
	pts.GlyphStyle.Radius = vg.Points(1.5)

	fit, err := fitLine(an.Regression, wx)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	fit.LineStyle.Color = c

	o.plot.Add(pts, fit)
	o.plot.Legend.Add(fmt.Sprintf("%s %.1f mV/dec", name, an.Summary.TafelSlope), fit)
	o.n++
	return nil
}

// Len returns the number of samples drawn.
func (o *Overlay) Len() int {
	return o.n
}

// Plot returns the underlying chart.
func (o *Overlay) Plot() *plot.Plot {
	return o.plot
}

// Render writes the chart to w.
func Render(w io.Writer, p *plot.Plot, opts ChartOptions) error {
	size := vg.Length(opts.Size) * vg.Inch
	wt, err := p.WriterTo(size, size, opts.Format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// Save renders the chart to path.
func Save(path string, p *plot.Plot, opts ChartOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Render(f, p, opts); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", path, err)
	}
	return f.Close()
}

// fitLine spans the regression across the x range of xs.
func fitLine(reg tafelcore.Regression, xs []float64) (*plotter.Line, error) {
	if len(xs) == 0 {
		return nil, fmt.Errorf("fit line: no points")
	}
	lo, hi := floats.Min(xs), floats.Max(xs)
	l, err := plotter.NewLine(plotter.XYs{{X: lo, Y: reg.At(lo)}, {X: hi, Y: reg.At(hi)}})
	if err != nil {
		return nil, fmt.Errorf("fit line: %w", err)
	}
	l.LineStyle.Width = vg.Points(1.5)
	return l, nil
}

// xys drops non-finite points, which plotter rejects.
func xys(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(x))
	for i := range x {
		if isFinite(x[i]) && isFinite(y[i]) {
			pts = append(pts, plotter.XY{X: x[i], Y: y[i]})
		}
	}
	return pts
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
