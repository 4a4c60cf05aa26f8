package tafelcore

import (
	"fmt"
	"math"
)

// NernstSlope is the pH dependence of the reference electrode potential at
// room temperature, in volts per pH unit.
const NernstSlope = 0.0592

// Sample is one (voltage, current) acquisition point. Voltage is measured
// against the reference electrode, current is in amperes.
type Sample struct {
	Voltage float64 `json:"voltage"`
	Current float64 `json:"current"`
}

// Sweep is one potentiodynamic scan in acquisition order.
type Sweep []Sample

// Voltages returns the voltage column.
func (s Sweep) Voltages() []float64 {
	v := make([]float64, len(s))
	for i, p := range s {
		v[i] = p.Voltage
	}
	return v
}

// Currents returns the current column.
func (s Sweep) Currents() []float64 {
	c := make([]float64, len(s))
	for i, p := range s {
		c[i] = p.Current
	}
	return c
}

// NewSweep zips parallel voltage and current columns.
func NewSweep(voltages, currents []float64) (Sweep, error) {
	if len(voltages) != len(currents) {
		return nil, fmt.Errorf("%w: %d voltages, %d currents", ErrLengthMismatch, len(voltages), len(currents))
	}
	s := make(Sweep, len(voltages))
	for i := range voltages {
		s[i] = Sample{Voltage: voltages[i], Current: currents[i]}
	}
	return s, nil
}

// Validate reports the first NaN or infinite reading.
func (s Sweep) Validate() error {
	for i, p := range s {
		if math.IsNaN(p.Voltage) || math.IsInf(p.Voltage, 0) || math.IsNaN(p.Current) || math.IsInf(p.Current, 0) {
			return fmt.Errorf("%w at index %d: voltage=%v current=%v", ErrNonFinite, i, p.Voltage, p.Current)
		}
	}
	return nil
}

// CloseCycle returns a copy of s with its first sample appended, for
// instruments that stop one sample short of the starting potential.
func CloseCycle(s Sweep) Sweep {
	if len(s) == 0 {
		return nil
	}
	out := make(Sweep, len(s), len(s)+1)
	copy(out, s)
	return append(out, s[0])
}

// Electrode describes the cell used to convert raw readings.
type Electrode struct {
	// ReferenceOffset is the reference electrode potential vs NHE at pH 0.
	ReferenceOffset float64 `json:"reference_offset" yaml:"reference_offset"`
	PH              float64 `json:"ph" yaml:"ph"`
	// Area is the geometric electrode area in cm^2.
	Area float64 `json:"area" yaml:"area"`
	// ReversiblePotential is the thermodynamic potential of the reaction vs NHE.
	ReversiblePotential float64 `json:"reversible_potential" yaml:"reversible_potential"`
}

// DefaultElectrode is an Hg/HgO reference in 1 M KOH on a 5 mm disk,
// evaluated against the oxygen evolution reaction.
func DefaultElectrode() Electrode {
	return Electrode{
		ReferenceOffset:     0.140,
		PH:                  14,
		Area:                0.196,
		ReversiblePotential: 1.23,
	}
}

// ToNHE converts a reference-electrode potential to the NHE scale.
func (e Electrode) ToNHE(v float64) float64 {
	return v + e.ReferenceOffset + NernstSlope*e.PH
}

// Row is one forward-scan sample with its derived quantities.
type Row struct {
	Voltage        float64 `json:"voltage"`
	Current        float64 `json:"current"`
	VNHE           float64 `json:"v_nhe"`
	CurrentDensity float64 `json:"current_density"`
	Overpotential  float64 `json:"overpotential"`
	LogJ           float64 `json:"log_j"`
}

// Derive computes the forward-scan table up to and including boundary.
// Forward sample i is paired with reverse sample n-1-i; their mean current
// over the electrode area gives the current density in mA/cm^2.
func Derive(s Sweep, boundary int, e Electrode) ([]Row, error) {
	n := len(s)
	if boundary < 0 || boundary >= n {
		return nil, fmt.Errorf("boundary %d out of range for %d samples", boundary, n)
	}
	if n-1-boundary < boundary {
		return nil, fmt.Errorf("%w: forward %d samples, reverse %d", ErrUnbalancedSweep, boundary+1, n-boundary)
	}
	if e.Area <= 0 {
		return nil, fmt.Errorf("%w: area must be positive, got %g", ErrInvalidElectrode, e.Area)
	}

	rows := make([]Row, boundary+1)
	for i := range rows {
		fwd := s[i]
		rev := s[n-1-i]
		vNHE := e.ToNHE(fwd.Voltage)
		j := (fwd.Current + rev.Current) * 1000 / (2 * e.Area)
		rows[i] = Row{
			Voltage:        fwd.Voltage,
			Current:        fwd.Current,
			VNHE:           vNHE,
			CurrentDensity: j,
			Overpotential:  vNHE - e.ReversiblePotential,
			LogJ:           math.Log10(2 * math.Abs(j)),
		}
	}
	return rows, nil
}

// Quadrant bounds the physically meaningful part of the Tafel plot.
type Quadrant struct {
	MinLogJ          float64 `json:"min_log_j" yaml:"min_log_j"`
	MinOverpotential float64 `json:"min_overpotential" yaml:"min_overpotential"`
}

// CandidateSeries is the (log j, overpotential) series handed to the
// segment search. Index maps each point back to its source row.
type CandidateSeries struct {
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
	Index []int     `json:"index"`
}

// Len returns the number of candidate points.
func (c CandidateSeries) Len() int {
	return len(c.X)
}

// Candidates keeps rows strictly above both quadrant thresholds.
func Candidates(rows []Row, q Quadrant) CandidateSeries {
	var c CandidateSeries
	for i, r := range rows {
		if r.LogJ > q.MinLogJ && r.Overpotential > q.MinOverpotential {
			c.X = append(c.X, r.LogJ)
			c.Y = append(c.Y, r.Overpotential)
			c.Index = append(c.Index, i)
		}
	}
	return c
}
