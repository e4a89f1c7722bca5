// =============================================================================
// Fiscal XML Reader - Configuration Module
// =============================================================================
//
// This module loads the application configuration from a single YAML file.
// Every key is optional and a missing file is not an error: the defaults
// below describe a run over ./input writing a workbook into ./output.
//
// PRECEDENCE:
//   1. Command-line flags (applied by the cmd package after Load)
//   2. The YAML file
//   3. Defaults
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // hosts without a zoneinfo database

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/fiscal-xml-reader/internal/batch"
	"github.com/ginjaninja78/fiscal-xml-reader/internal/types"
)

// Defaults.
const (
	DefaultInputDir     = "./input"
	DefaultOutputDir    = "./output"
	DefaultLogLevel     = "info"
	DefaultOutputFormat = "{uuid}.xlsx"
	DefaultTimezone     = "America/Fortaleza"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned recursively for .xml documents.
	InputDir string `yaml:"input_dir"`

	// OutputDir receives the workbook and the text logs.
	OutputDir string `yaml:"output_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogFile is an optional extra log destination. Empty logs to stderr only.
	LogFile string `yaml:"log_file"`

	// LogLevel: "debug", "info", "warn" or "error".
	LogLevel string `yaml:"log_level"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputFormat is the workbook file name pattern.
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - YYYYMMDD_HHMMSS
	//   {date}      - YYYYMMDD
	//   {time}      - HHMMSS
	//   {run}       - The run ID (a UUID shared by every file of one run)
	// The ".xlsx" extension is added when missing.
	OutputFormat string `yaml:"output_format"`

	// Timezone is the IANA zone timestamps are shown in.
	Timezone string `yaml:"timezone"`

	// WriteErrorLog enables the plain-text exception log next to the
	// workbook. A pointer so an explicit false survives defaulting.
	WriteErrorLog *bool `yaml:"write_error_log"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the worker pool width, clamped to 4..64.
	MaxConcurrency int `yaml:"max_concurrency"`

	// Hint is the preferred document variant, or "auto".
	Hint string `yaml:"hint"`

	// Resolved values, filled by Validate.
	location *time.Location
	variant  types.Variant
}

// Default returns a configuration with every default applied.
func Default() *MainConfig {
	cfg := &MainConfig{}
	applyDefaults(cfg)
	return cfg
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Load reads the configuration file.
//
// PARAMETERS:
//   - configPath: The path to the YAML file. A file that does not exist
//     yields the defaults.
//
// RETURNS:
//   - A validated *MainConfig.
//   - An error if the file cannot be read, parsed or validated.
func Load(configPath string) (*MainConfig, error) {
	var cfg MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets default values for any unset option.
func applyDefaults(cfg *MainConfig) {
	if cfg.InputDir == "" {
		cfg.InputDir = DefaultInputDir
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = DefaultOutputFormat
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.Hint == "" {
		cfg.Hint = types.HintAuto
	}
	if cfg.WriteErrorLog == nil {
		enabled := true
		cfg.WriteErrorLog = &enabled
	}
	cfg.MaxConcurrency = batch.ClampWorkers(cfg.MaxConcurrency)
}

// Validate checks the values and resolves the timezone and hint. It is safe
// to call again after flags have overridden fields.
func (c *MainConfig) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", c.Timezone, err)
	}
	c.location = loc

	v, err := types.ParseVariant(c.Hint)
	if err != nil {
		return fmt.Errorf("invalid hint: %w", err)
	}
	c.variant = v

	c.MaxConcurrency = batch.ClampWorkers(c.MaxConcurrency)
	return nil
}

// Location is the resolved display timezone. Valid after Validate.
func (c *MainConfig) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Variant is the resolved hint. Valid after Validate.
func (c *MainConfig) Variant() types.Variant { return c.variant }

// ErrorLogEnabled reports whether the plain-text exception log is written.
func (c *MainConfig) ErrorLogEnabled() bool {
	return c.WriteErrorLog == nil || *c.WriteErrorLog
}
