package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tafel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1.0, cfg.Analysis.MinSpan)
	assert.Equal(t, 16, cfg.Input.HeaderRows)
	assert.Equal(t, 0.196, cfg.Electrode.Area)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Output.Charts)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
analysis:
  min_span: 0.5
  min_log_j: -0.5
  min_overpotential: 0.32
  close_cycle: true
  workers: 4
electrode:
  reference_offset: 0.190
  ph: 13
input:
  header_rows: 0
server:
  port: "9090"
  shutdown_timeout: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Analysis.MinSpan)
	assert.Equal(t, 4, cfg.Analysis.Workers)
	assert.Equal(t, 0, cfg.Input.HeaderRows)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	// untouched keys keep their defaults
	assert.Equal(t, 0.196, cfg.Electrode.Area)
	assert.Equal(t, 1.23, cfg.Electrode.ReversiblePotential)

	p := cfg.Params()
	assert.Equal(t, 0.5, p.MinSpan)
	assert.Equal(t, -0.5, p.Quadrant.MinLogJ)
	assert.Equal(t, 0.32, p.Quadrant.MinOverpotential)
	assert.True(t, p.CloseCycle)
	assert.Equal(t, 0.190, p.Electrode.ReferenceOffset)
	assert.Equal(t, 13.0, p.Electrode.PH)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "analysis:\n  min_span: 0.5\n")
	t.Setenv("TAFEL_ANALYSIS_MIN_SPAN", "1.5")
	t.Setenv("TAFEL_ELECTRODE_AREA", "0.07")
	t.Setenv("TAFEL_SERVER_WEBHOOK_URL", "http://plot:3001/webhook")
	t.Setenv("TAFEL_SERVER_CORS_ORIGINS", "http://localhost:3000,http://webplot:3001")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1.5, cfg.Analysis.MinSpan)
	assert.Equal(t, 0.07, cfg.Electrode.Area)
	assert.Equal(t, "http://plot:3001/webhook", cfg.Server.WebhookURL)
	assert.Equal(t, []string{"http://localhost:3000", "http://webplot:3001"}, cfg.Server.CORSOrigins)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "negative span", body: "analysis:\n  min_span: -1\n"},
		{name: "zero area", body: "electrode:\n  area: 0\n"},
		{name: "bad log level", body: "logging:\n  level: loud\n"},
		{name: "same columns", body: "input:\n  voltage_column: 1\n  current_column: 1\n"},
		{name: "bad webhook", body: "server:\n  webhook_url: not a url\n"},
		{name: "malformed yaml", body: "analysis: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
