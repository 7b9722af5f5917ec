package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Product: "obs-server",
		Crashes: CrashesConfig{
			// Fatal errors we cannot do anything about; terminating quietly
			// beats flooding the backend with unactionable reports.
			KnownSignatures: []string{
				"Failed to recreate D3D11",
			},
		},
		Crashpad: CrashpadConfig{
			Enabled:      true,
			Database:     ".crashguard/reports",
			StartTimeout: 5 * time.Second,
			MaxReports:   50,
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("product", "obs-server")
	v.SetDefault("crashes.known_signatures", []string{"Failed to recreate D3D11"})
	v.SetDefault("crashpad.enabled", true)
	v.SetDefault("crashpad.database", ".crashguard/reports")
	v.SetDefault("crashpad.handler_path", "")
	v.SetDefault("crashpad.url", "")
	v.SetDefault("crashpad.uploads_enabled", false)
	v.SetDefault("crashpad.extra_arguments", []string{})
	v.SetDefault("crashpad.start_timeout", "5s")
	v.SetDefault("crashpad.max_reports", 50)
}
