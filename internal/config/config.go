// Package config loads and validates the crashguard configuration from
// file, environment and CLI flags.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Product  string         `mapstructure:"product" yaml:"product"`
	Crashes  CrashesConfig  `mapstructure:"crashes" yaml:"crashes"`
	Crashpad CrashpadConfig `mapstructure:"crashpad" yaml:"crashpad"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// CrashesConfig configures crash disposition.
type CrashesConfig struct {
	// KnownSignatures are substrings of fatal-error format strings that
	// terminate the process quietly instead of producing a report.
	KnownSignatures []string `mapstructure:"known_signatures" yaml:"known_signatures"`
}

// CrashpadConfig configures the report backend.
type CrashpadConfig struct {
	// Enabled turns crash reporting on. When false the process runs
	// without protection.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Database is the directory for the report database and spool.
	Database string `mapstructure:"database" yaml:"database"`

	// HandlerPath is the handler executable; empty runs without an
	// out-of-process handler.
	HandlerPath string `mapstructure:"handler_path" yaml:"handler_path"`

	// URL receives uploaded reports; empty keeps reports local.
	URL string `mapstructure:"url" yaml:"url"`

	// UploadsEnabled toggles uploading of persisted reports.
	UploadsEnabled bool `mapstructure:"uploads_enabled" yaml:"uploads_enabled"`

	// ExtraArguments are appended to the handler command line.
	ExtraArguments []string `mapstructure:"extra_arguments" yaml:"extra_arguments"`

	// StartTimeout bounds the wait for handler readiness.
	StartTimeout time.Duration `mapstructure:"start_timeout" yaml:"start_timeout"`

	// MaxReports bounds the retained report history; non-positive keeps
	// everything.
	MaxReports int `mapstructure:"max_reports" yaml:"max_reports"`
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}

	if c.Crashpad.Enabled && c.Crashpad.Database == "" {
		return fmt.Errorf("crashpad.database: required when crash reporting is enabled")
	}
	if c.Crashpad.UploadsEnabled && c.Crashpad.URL == "" {
		return fmt.Errorf("crashpad.url: required when uploads are enabled")
	}
	if c.Crashpad.StartTimeout < 0 {
		return fmt.Errorf("crashpad.start_timeout: must not be negative")
	}
	return nil
}
