package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestSetupLoggerFanout(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "tafel.log")

	logger, cleanup, err := SetupLogger(LoggingConfig{Level: "info", File: path}, &stderr)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("sweep analyzed", "sample", "NiFe-1")
	require.NoError(t, cleanup())

	assert.Contains(t, stderr.String(), "sample=NiFe-1")
	assert.NotContains(t, stderr.String(), "hidden")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sample":"NiFe-1"`)
}

func TestSetupLoggerStderrOnly(t *testing.T) {
	var stderr bytes.Buffer
	logger, cleanup, err := SetupLogger(LoggingConfig{Level: "debug"}, &stderr)
	require.NoError(t, err)
	logger.Debug("visible")
	assert.NoError(t, cleanup())
	assert.Contains(t, stderr.String(), "visible")
}
