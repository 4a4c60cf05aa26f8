package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kacperjurak/tafelcore"
)

func ptr[T any](v T) *T { return &v }

func TestParamsOverrideApply(t *testing.T) {
	base := tafelcore.DefaultParams()

	var none *ParamsOverride
	assert.Equal(t, base, none.Apply(base))

	e := tafelcore.Electrode{Area: 1, ReversiblePotential: 1.23}
	o := &ParamsOverride{
		MinSpan:          ptr(0.5),
		MinLogJ:          ptr(-1.0),
		MinOverpotential: ptr(0.1),
		OnsetThreshold:   ptr(2.0),
		ReferenceLogJ:    ptr(0.0),
		CloseCycle:       ptr(true),
		Electrode:        &e,
	}
	got := o.Apply(base)
	assert.Equal(t, 0.5, got.MinSpan)
	assert.Equal(t, tafelcore.Quadrant{MinLogJ: -1, MinOverpotential: 0.1}, got.Quadrant)
	assert.Equal(t, 2.0, got.OnsetThreshold)
	assert.Equal(t, 0.0, got.ReferenceLogJ)
	assert.True(t, got.CloseCycle)
	assert.Equal(t, e, got.Electrode)
	assert.Equal(t, base.Workers, got.Workers)
}

func TestSweepRequestValidation(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())

	tests := []struct {
		name string
		req  SweepRequest
		ok   bool
	}{
		{"valid", SweepRequest{Voltages: []float64{0, 1}, Currents: []float64{1, 2}}, true},
		{"length mismatch is left to analysis", SweepRequest{Voltages: []float64{0, 1, 2}, Currents: []float64{1, 2}}, true},
		{"too short", SweepRequest{Voltages: []float64{0}, Currents: []float64{1}}, false},
		{"missing currents", SweepRequest{Voltages: []float64{0, 1}}, false},
		{"negative span", SweepRequest{
			Voltages: []float64{0, 1}, Currents: []float64{1, 2},
			Params: &ParamsOverride{MinSpan: ptr(-1.0)},
		}, false},
		{"zero area is left to analysis", SweepRequest{
			Voltages: []float64{0, 1}, Currents: []float64{1, 2},
			Params: &ParamsOverride{Electrode: &tafelcore.Electrode{}},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	err := v.Struct(BatchRequest{Sweeps: []SweepRequest{{Voltages: []float64{0}}}})
	assert.Error(t, err)
	assert.Error(t, v.Struct(BatchRequest{}))
}

func fittedAnalysis() *tafelcore.Analysis {
	j0 := math.Inf(1)
	onset := 1.4
	return &tafelcore.Analysis{
		Boundary: 3,
		Rows:     make([]tafelcore.Row, 4),
		Candidates: tafelcore.CandidateSeries{
			X:     []float64{0, 1, 2},
			Y:     []float64{0.07, 0.17, 0.27},
			Index: []int{1, 2, 3},
		},
		Window:     tafelcore.Window{Start: 1, End: 3},
		Regression: tafelcore.Regression{Slope: 0.1, Intercept: 0.07, R: 1, N: 2},
		Summary: tafelcore.Summary{
			TafelSlope:             100,
			ExchangeCurrentDensity: &j0,
			Onset:                  &onset,
		},
	}
}

func TestNewAnalysisResponse(t *testing.T) {
	an := fittedAnalysis()
	resp := NewAnalysisResponse("req-1", "cv1", an)

	assert.Equal(t, 4, resp.Rows)
	assert.Equal(t, 3, resp.Candidates)
	assert.Equal(t, []Point{{1, 0.17}, {2, 0.27}}, resp.Linear)
	assert.Nil(t, resp.Summary.ExchangeCurrentDensity)
	assert.Equal(t, []string{"exchange current density out of range"}, resp.Summary.Warnings)
	assert.NotNil(t, an.Summary.ExchangeCurrentDensity, "source analysis untouched")

	_, err := json.Marshal(resp)
	require.NoError(t, err)
}

func TestTimingFromResult(t *testing.T) {
	ok := TimingFromResult(WorkResult{ID: 2, Analysis: fittedAnalysis(), ProcessingTime: time.Millisecond})
	assert.Equal(t, SweepTiming{Index: 2, ProcessingTime: time.Millisecond, TafelSlope: 100, Success: true, Kind: "ok"}, ok)

	failed := TimingFromResult(WorkResult{ID: 3, Err: tafelcore.ErrNoCycleFound})
	assert.False(t, failed.Success)
	assert.Equal(t, "no_cycle_found", failed.Kind)

	item := WebhookFromResult(WorkResult{ID: 3, RequestID: "r", Err: errors.New("x")})
	assert.Equal(t, 3, item.Index)
	assert.Equal(t, "r", item.RequestID)
}
