package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kacperjurak/tafelcore"
	"github.com/kacperjurak/tafelcore/internal/processing"
	"github.com/kacperjurak/tafelcore/pkg/config"
	"github.com/kacperjurak/tafelcore/pkg/models"
	"github.com/kacperjurak/tafelcore/pkg/worker"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Quiet = true
	cfg.Server.TimingFile = filepath.Join(t.TempDir(), "timing.csv")
	return cfg
}

// sweepRequest builds a cycle whose forward branch has a 60 mV/dec Tafel
// region for the electrode in cfg.
func sweepRequest(cfg *config.Config, id string) models.SweepRequest {
	e := cfg.ElectrodeParams()
	var fwd []tafelcore.Sample
	for k := 0; k <= 40; k++ {
		eta := 0.05 + 0.01*float64(k)
		j := math.Pow(10, (eta-0.1)/0.06) / 2
		fwd = append(fwd, tafelcore.Sample{
			Voltage: eta + e.ReversiblePotential - e.ReferenceOffset - tafelcore.NernstSlope*e.PH,
			Current: j * e.Area / 1000,
		})
	}
	s := append(tafelcore.Sweep{}, fwd...)
	for k := len(fwd) - 2; k >= 0; k-- {
		s = append(s, fwd[k])
	}
	return models.SweepRequest{SampleID: id, Voltages: s.Voltages(), Currents: s.Currents()}
}

func post(t *testing.T, h http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeHandler(t *testing.T) {
	cfg := testConfig(t)
	h := NewAnalyzeHandler(cfg, processing.NewTafelProcessor(discard, nil).Process, discard)

	rec := post(t, h, sweepRequest(cfg, "cv1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp models.AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, "cv1", resp.SampleID)
	assert.Equal(t, 40, resp.Boundary)
	assert.InDelta(t, 60.0, resp.Summary.TafelSlope, 1e-6)
	assert.Len(t, resp.Linear, resp.Window.Len())
}

func TestAnalyzeHandlerParamsOverride(t *testing.T) {
	cfg := testConfig(t)
	h := NewAnalyzeHandler(cfg, processing.NewTafelProcessor(discard, nil).Process, discard)

	req := sweepRequest(cfg, "cv1")
	span := 100.0
	req.Params = &models.ParamsOverride{MinSpan: &span}

	rec := post(t, h, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"not_found"`)
}

func TestAnalyzeHandlerInvalidElectrode(t *testing.T) {
	cfg := testConfig(t)
	h := NewAnalyzeHandler(cfg, processing.NewTafelProcessor(discard, nil).Process, discard)

	req := sweepRequest(cfg, "cv1")
	req.Params = &models.ParamsOverride{Electrode: &tafelcore.Electrode{ReversiblePotential: 1.23}}

	rec := post(t, h, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"invalid_electrode"`)
	assert.NotContains(t, rec.Body.String(), `"kind":"validation"`)
}

func TestAnalyzeHandlerErrors(t *testing.T) {
	cfg := testConfig(t)
	h := NewAnalyzeHandler(cfg, processing.NewTafelProcessor(discard, nil).Process, discard)

	tests := []struct {
		name   string
		body   any
		status int
		kind   string
	}{
		{"malformed", `{"voltages": [`, http.StatusBadRequest, "bad_request"},
		{"too short", models.SweepRequest{Voltages: []float64{0}, Currents: []float64{0}}, http.StatusBadRequest, "validation"},
		{"length mismatch", models.SweepRequest{Voltages: []float64{0, 1, 0}, Currents: []float64{0, 1}}, http.StatusUnprocessableEntity, "length_mismatch"},
		{"no reversal", models.SweepRequest{Voltages: []float64{0, 1, 2}, Currents: []float64{0, 1, 2}}, http.StatusUnprocessableEntity, "no_cycle_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var e models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.Equal(t, tt.kind, e.Kind)
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestAnalyzeHandlerInternalError(t *testing.T) {
	cfg := testConfig(t)
	failing := func(tafelcore.Sweep, tafelcore.Params) (*tafelcore.Analysis, error) {
		return nil, errors.New("out of memory")
	}
	rec := post(t, NewAnalyzeHandler(cfg, failing, discard), sweepRequest(cfg, ""))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"internal"`)
}

func TestBatchHandler(t *testing.T) {
	cfg := testConfig(t)
	pool := worker.New(worker.Options{Workers: 2, Processor: processing.NewTafelProcessor(discard, nil).Process, Logger: discard})
	defer pool.Shutdown()

	h := NewBatchHandler(cfg, pool, discard)
	done := make(chan []models.SweepTiming, 1)
	h.onDone = func(_ string, timings []models.SweepTiming) { done <- timings }

	batch := models.BatchRequest{Sweeps: []models.SweepRequest{
		sweepRequest(cfg, "a"),
		{SampleID: "flat", Voltages: []float64{0, 0.1, 0.2}, Currents: []float64{0, 0, 0}},
		{SampleID: "mismatch", Voltages: []float64{0, 0.1, 0}, Currents: []float64{0, 0}},
	}}
	rec := post(t, h, batch)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var ack models.BatchAccepted
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.True(t, ack.Success)
	assert.NotEmpty(t, ack.BatchID)
	assert.Equal(t, 3, ack.Sweeps)

	var timings []models.SweepTiming
	select {
	case timings = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("batch did not complete")
	}

	require.Len(t, timings, 3)
	assert.True(t, timings[0].Success)
	assert.InDelta(t, 60.0, timings[0].TafelSlope, 1e-6)
	assert.Equal(t, "no_cycle_found", timings[1].Kind)
	assert.Equal(t, "length_mismatch", timings[2].Kind)

	f, err := os.Open(cfg.Server.TimingFile)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, TimingHeader, recs[0])
	assert.Equal(t, ack.BatchID, recs[1][1])
	assert.Equal(t, "3", recs[1][2])
	assert.Equal(t, "33.3", recs[1][8])
}

func TestBatchHandlerValidation(t *testing.T) {
	cfg := testConfig(t)
	pool := worker.New(worker.Options{Workers: 1, Processor: processing.NewTafelProcessor(discard, nil).Process, Logger: discard})
	defer pool.Shutdown()
	h := NewBatchHandler(cfg, pool, discard)

	rec := post(t, h, models.BatchRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "validation"))
}

func TestTimingStats(t *testing.T) {
	timings := []models.SweepTiming{
		{ProcessingTime: 10 * time.Millisecond, Success: true, TafelSlope: 60},
		{ProcessingTime: 30 * time.Millisecond, Success: true, TafelSlope: 80},
		{ProcessingTime: 20 * time.Millisecond},
	}
	s := timingStats(timings, 30*time.Millisecond, 2)
	assert.Equal(t, 20*time.Millisecond, s.Avg)
	assert.Equal(t, 10*time.Millisecond, s.Min)
	assert.Equal(t, 30*time.Millisecond, s.Max)
	assert.InDelta(t, 66.67, s.SuccessRate, 0.01)
	assert.Equal(t, 70.0, s.AvgTafelSlope)
	assert.InDelta(t, 100.0, s.SweepsPerSec, 1e-9)
	assert.InDelta(t, 1.0, s.Efficiency, 1e-9)

	empty := timingStats(nil, 0, 2)
	assert.Zero(t, empty.Avg)

	var buf bytes.Buffer
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, writeTimingRecord(&buf, true, now, "b1", s))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2024-01-02T03:04:05Z,b1,3,2,30.00,20.00,10.00,30.00,66.7,70.000,100.00,1.000", lines[1])
}
