package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/kacperjurak/tafelcore"
)

// EnvPrefix prefixes every environment override, e.g. TAFEL_ANALYSIS_MIN_SPAN.
const EnvPrefix = "TAFEL"

// Config holds all configuration settings for Tafel analysis
type Config struct {
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	Electrode ElectrodeConfig `yaml:"electrode" envconfig:"ELECTRODE"`
	Input     InputConfig     `yaml:"input" envconfig:"INPUT"`
	Output    OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Quiet     bool            `yaml:"quiet" envconfig:"QUIET"`
}

// AnalysisConfig holds the segment search and reporting thresholds
type AnalysisConfig struct {
	MinSpan          float64 `yaml:"min_span" envconfig:"MIN_SPAN" validate:"gte=0"`
	MinLogJ          float64 `yaml:"min_log_j" envconfig:"MIN_LOG_J"`
	MinOverpotential float64 `yaml:"min_overpotential" envconfig:"MIN_OVERPOTENTIAL"`
	OnsetThreshold   float64 `yaml:"onset_threshold" envconfig:"ONSET_THRESHOLD" validate:"gte=0"`
	ReferenceLogJ    float64 `yaml:"reference_log_j" envconfig:"REFERENCE_LOG_J"`
	CloseCycle       bool    `yaml:"close_cycle" envconfig:"CLOSE_CYCLE"`
	Workers          int     `yaml:"workers" envconfig:"WORKERS" validate:"gte=1"`
	MaxPoints        int     `yaml:"max_points" envconfig:"MAX_POINTS" validate:"gte=0"`
}

// ElectrodeConfig describes the reference electrode and working electrode
type ElectrodeConfig struct {
	ReferenceOffset     float64 `yaml:"reference_offset" envconfig:"REFERENCE_OFFSET"`
	PH                  float64 `yaml:"ph" envconfig:"PH" validate:"gte=0,lte=14"`
	Area                float64 `yaml:"area" envconfig:"AREA" validate:"gt=0"`
	ReversiblePotential float64 `yaml:"reversible_potential" envconfig:"REVERSIBLE_POTENTIAL"`
}

// InputConfig describes the potentiostat export layout
type InputConfig struct {
	HeaderRows    int    `yaml:"header_rows" envconfig:"HEADER_ROWS" validate:"gte=0"`
	VoltageColumn int    `yaml:"voltage_column" envconfig:"VOLTAGE_COLUMN" validate:"gte=0"`
	CurrentColumn int    `yaml:"current_column" envconfig:"CURRENT_COLUMN" validate:"gte=0,nefield=VoltageColumn"`
	Sheet         string `yaml:"sheet" envconfig:"SHEET"`
}

// OutputConfig controls report files and charts
type OutputConfig struct {
	Dir         string  `yaml:"dir" envconfig:"DIR"`
	Charts      bool    `yaml:"charts" envconfig:"CHARTS"`
	ChartSize   float64 `yaml:"chart_size" envconfig:"CHART_SIZE" validate:"gt=0"`
	OverlayFile string  `yaml:"overlay_file" envconfig:"OVERLAY_FILE"`
	Workbook    string  `yaml:"workbook" envconfig:"WORKBOOK"`
}

// LoggingConfig controls log level and the optional JSON log file
type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	File  string `yaml:"file" envconfig:"FILE"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port            string        `yaml:"port" envconfig:"PORT" validate:"required,numeric"`
	WorkerCount     int           `yaml:"worker_count" envconfig:"WORKER_COUNT" validate:"gte=1"`
	WebhookURL      string        `yaml:"webhook_url" envconfig:"WEBHOOK_URL" validate:"omitempty,url"`
	TimingFile      string        `yaml:"timing_file" envconfig:"TIMING_FILE"`
	EnableMetrics   bool          `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	EnableProfiling bool          `yaml:"enable_profiling" envconfig:"ENABLE_PROFILING"`
	ProfilingPort   string        `yaml:"profiling_port" envconfig:"PROFILING_PORT" validate:"omitempty,numeric"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	// CORSOrigins lists browser origins allowed to call the API; empty disables CORS.
	CORSOrigins []string `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
	// RateLimit caps API requests per second across all clients; 0 disables it.
	RateLimit float64 `yaml:"rate_limit" envconfig:"RATE_LIMIT" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst" envconfig:"RATE_BURST" validate:"gte=0"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	e := tafelcore.DefaultElectrode()
	return &Config{
		Analysis: AnalysisConfig{
			MinSpan:        tafelcore.DefaultMinSpan,
			OnsetThreshold: 1.0,
			ReferenceLogJ:  tafelcore.DefaultReferenceLogJ,
			Workers:        1,
			MaxPoints:      2000,
		},
		Electrode: ElectrodeConfig{
			ReferenceOffset:     e.ReferenceOffset,
			PH:                  e.PH,
			Area:                e.Area,
			ReversiblePotential: e.ReversiblePotential,
		},
		Input: InputConfig{
			HeaderRows:    16,
			VoltageColumn: 0,
			CurrentColumn: 1,
		},
		Output: OutputConfig{
			Charts:      true,
			ChartSize:   4,
			OverlayFile: "tafel_all.png",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: *DefaultServerConfig(),
	}
}

// DefaultServerConfig returns server configuration with sensible defaults
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:            "8080",
		WorkerCount:     5,
		TimingFile:      "batch_timing_results.csv",
		EnableMetrics:   true,
		EnableProfiling: false,
		ProfilingPort:   "6060",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RateBurst:       20,
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and TAFEL_* environment variables, in that order, then validates it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("config validation failed: %s: %s", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// ElectrodeParams returns the electrode description used by the analyzer.
func (c *Config) ElectrodeParams() tafelcore.Electrode {
	return tafelcore.Electrode{
		ReferenceOffset:     c.Electrode.ReferenceOffset,
		PH:                  c.Electrode.PH,
		Area:                c.Electrode.Area,
		ReversiblePotential: c.Electrode.ReversiblePotential,
	}
}

// Params converts the configuration into analyzer parameters.
func (c *Config) Params() tafelcore.Params {
	return tafelcore.Params{
		Electrode: c.ElectrodeParams(),
		Quadrant: tafelcore.Quadrant{
			MinLogJ:          c.Analysis.MinLogJ,
			MinOverpotential: c.Analysis.MinOverpotential,
		},
		MinSpan:        c.Analysis.MinSpan,
		OnsetThreshold: c.Analysis.OnsetThreshold,
		ReferenceLogJ:  c.Analysis.ReferenceLogJ,
		CloseCycle:     c.Analysis.CloseCycle,
		Workers:        c.Analysis.Workers,
		MaxPoints:      c.Analysis.MaxPoints,
	}
}
