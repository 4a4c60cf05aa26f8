// Package report writes analysis results as CSV tables, summary lines,
// workbooks and charts.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"

	"github.com/kacperjurak/tafelcore"
)

// TableHeader names the columns written by WriteTable.
var TableHeader = []string{
	"V vs Hg/HgO (V)",
	"i (A)",
	"V vs NHE (V)",
	"j (mA/cm^2)",
	"Overpotential (V)",
	"log j (decade)",
}

// LinearHeader names the columns written by WriteLinear.
var LinearHeader = []string{
	"log j (log10 mA/cm2)",
	"Overpotential (V)",
}

// SummaryHeader names the fields of SummaryLine.
var SummaryHeader = []string{
	"file",
	"tafel slope (mV/dec)",
	"onset potential (V)",
	"potential at ref (V)",
	"exchange current density (mA/cm2)",
	"intercept (V)",
	"r",
}

// Paths are the per-sample output files derived from the input name.
type Paths struct {
	Table        string
	Linear       string
	Tafel        string
	Polarization string
}

// OutputPaths places outputs in dir, or next to input when dir is empty.
func OutputPaths(dir, input string) Paths {
	if dir == "" {
		dir = filepath.Dir(input)
	}
	name := filepath.Base(input)
	return Paths{
		Table:        filepath.Join(dir, "out-"+name),
		Linear:       filepath.Join(dir, "linear-"+name),
		Tafel:        filepath.Join(dir, "tafel-"+name+".png"),
		Polarization: filepath.Join(dir, "pc-"+name+".png"),
	}
}

// WriteTable writes the forward-scan table with its derived columns.
func WriteTable(w io.Writer, rows []tafelcore.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TableHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			formatFloat(r.Voltage),
			formatFloat(r.Current),
			formatFloat(r.VNHE),
			formatFloat(r.CurrentDensity),
			formatFloat(r.Overpotential),
			formatFloat(r.LogJ),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLinear writes the candidate points inside the fitted window.
func WriteLinear(w io.Writer, c tafelcore.CandidateSeries, win tafelcore.Window) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LinearHeader); err != nil {
		return err
	}
	for i := win.Start; i < win.End; i++ {
		if err := cw.Write([]string{formatFloat(c.X[i]), formatFloat(c.Y[i])}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SummaryLine formats one sample as
// name,tafel,onset,potential,exchange,intercept,r. Undefined values print as nan.
func SummaryLine(name string, s tafelcore.Summary) string {
	return fmt.Sprintf("%s,%.3f,%s,%.3f,%s,%.3f,%.3f",
		name,
		s.TafelSlope,
		optional(s.Onset, "%.3f"),
		s.PotentialAtRef,
		optional(s.ExchangeCurrentDensity, "%.3e"),
		s.Intercept,
		s.R,
	)
}

// ErrorLine marks a sample whose analysis failed.
func ErrorLine(name string) string {
	return name + ",error"
}

func optional(v *float64, format string) string {
	if v == nil || math.IsNaN(*v) {
		return "nan"
	}
	return fmt.Sprintf(format, *v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
