package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mlgate/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesWorkflowConstants(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.85, cfg.Gate.RMSEThreshold)
	assert.Equal(t, 0.2, cfg.Training.TestSize)
	assert.Equal(t, int64(42), cfg.Training.Seed)
	assert.Equal(t, 1.0, cfg.Training.Alpha)
	assert.Equal(t, "quality", cfg.Data.Target)
	assert.Equal(t, ';', cfg.Data.DelimiterRune())
	assert.Equal(t, 60*time.Second, cfg.Data.FetchTimeout)
	assert.Equal(t, "CI-CD-Workshop4", cfg.Tracking.ExperimentName)
	assert.True(t, strings.HasPrefix(cfg.Tracking.URI, "file://"))
	assert.True(t, strings.HasSuffix(cfg.Tracking.URI, "/mlruns"))
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mlgate.yaml")
	content := `
data:
  cache_path: cache/wine.csv
training:
  seed: 7
gate:
  rmse_threshold: 0.9
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("MLGATE_TRACKING_EXPERIMENT", "override-exp")
	t.Setenv("MLGATE_DATA_FETCH_TIMEOUT", "5s")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "cache/wine.csv", cfg.Data.CachePath)
	assert.Equal(t, int64(7), cfg.Training.Seed)
	assert.Equal(t, 0.9, cfg.Gate.RMSEThreshold)
	assert.Equal(t, "override-exp", cfg.Tracking.ExperimentName)
	assert.Equal(t, 5*time.Second, cfg.Data.FetchTimeout)
	assert.Equal(t, 0.2, cfg.Training.TestSize)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestValidateRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative url", func(c *Config) { c.Data.URL = "winequality.csv" }},
		{"empty target", func(c *Config) { c.Data.Target = "" }},
		{"long delimiter", func(c *Config) { c.Data.Delimiter = ";;" }},
		{"zero timeout", func(c *Config) { c.Data.FetchTimeout = 0 }},
		{"test size one", func(c *Config) { c.Training.TestSize = 1 }},
		{"negative alpha", func(c *Config) { c.Training.Alpha = -1 }},
		{"zero threshold", func(c *Config) { c.Gate.RMSEThreshold = 0 }},
		{"no pointer", func(c *Config) { c.Tracking.PointerFile = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
