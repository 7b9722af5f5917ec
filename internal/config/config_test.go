package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoader_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "obs-server", cfg.Product)
	assert.True(t, cfg.Crashpad.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Crashpad.StartTimeout)
	assert.Contains(t, cfg.Crashes.KnownSignatures, "Failed to recreate D3D11")
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crashguard.yaml")
	content := `
log:
  level: debug
product: slobs
crashes:
  known_signatures:
    - "Failed to recreate D3D11"
    - "out of device memory"
crashpad:
  database: /tmp/reports
  uploads_enabled: true
  url: https://crash.example.com/api/reports
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader().WithConfigFile(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "slobs", cfg.Product)
	assert.Len(t, cfg.Crashes.KnownSignatures, 2)
	assert.True(t, cfg.Crashpad.UploadsEnabled)
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("CRASHGUARD_LOG_LEVEL", "error")
	chdir(t, t.TempDir())

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"enabled without database", func(c *Config) { c.Crashpad.Database = "" }, "crashpad.database"},
		{"uploads without url", func(c *Config) { c.Crashpad.UploadsEnabled = true }, "crashpad.url"},
		{"negative timeout", func(c *Config) { c.Crashpad.StartTimeout = -time.Second }, "crashpad.start_timeout"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "conf", "crashguard.yaml")
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "known_signatures")

	// Refuses to clobber.
	assert.Error(t, WriteDefault(path))
}
