package processing

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kacperjurak/tafelcore"
	"github.com/kacperjurak/tafelcore/pkg/metrics"
)

// tafelSweep returns a forward branch with a 60 mV/dec Tafel region and its
// mirror image, for an electrode with no reference offset.
func tafelSweep() (tafelcore.Sweep, tafelcore.Params) {
	p := tafelcore.DefaultParams()
	p.Electrode = tafelcore.Electrode{Area: 0.196, ReversiblePotential: 1.23}

	forward := make(tafelcore.Sweep, 41)
	for k := range forward {
		eta := 0.05 + 0.01*float64(k)
		j := math.Pow(10, (eta-0.1)/0.06) / 2
		forward[k] = tafelcore.Sample{Voltage: eta + 1.23, Current: j * 0.196 / 1000}
	}
	s := append(tafelcore.Sweep{}, forward...)
	for k := len(forward) - 2; k >= 0; k-- {
		s = append(s, forward[k])
	}
	return s, p
}

func TestProcess(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	proc := NewTafelProcessor(nil, m)

	s, p := tafelSweep()
	an, err := proc.ProcessorFunc()(s, p)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, an.Summary.TafelSlope, 1e-6)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepsAnalyzed.WithLabelValues("ok")))
}

func TestProcessErrors(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	proc := NewTafelProcessor(nil, m)
	s, p := tafelSweep()

	_, err := proc.Process(nil, p)
	assert.ErrorIs(t, err, tafelcore.ErrEmptySweep)

	bad := append(tafelcore.Sweep{}, s...)
	bad[5].Current = math.NaN()
	_, err = proc.Process(bad, p)
	assert.ErrorIs(t, err, tafelcore.ErrNonFinite)

	noArea := p
	noArea.Electrode.Area = 0
	_, err = proc.Process(s, noArea)
	assert.ErrorIs(t, err, tafelcore.ErrInvalidElectrode)

	_, err = proc.Process(s[:41], p)
	assert.ErrorIs(t, err, tafelcore.ErrNoCycleFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepsAnalyzed.WithLabelValues("no_cycle_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepsAnalyzed.WithLabelValues("non_finite")))
}

func TestProcessWithoutMetrics(t *testing.T) {
	s, p := tafelSweep()
	_, err := NewTafelProcessor(nil, nil).Process(s, p)
	assert.NoError(t, err)
}
