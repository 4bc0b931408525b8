package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 50.0, cfg.Consolidate.DropThreshold, 0.001)
	assert.InDelta(t, 80.0, cfg.Consolidate.AutoApplyThreshold, 0.001)
	assert.Equal(t, 10, cfg.Validation.ValidatorTimeoutSecs)
	assert.Equal(t, 10*time.Second, cfg.Validation.ValidatorTimeout())
	assert.InDelta(t, 0.5, cfg.Validation.DefaultAuthorityWeight, 0.001)
	assert.InDelta(t, 70.0, cfg.Validation.ValidatedThreshold, 0.001)
	assert.Equal(t, "https://api.opencorporates.com/v0.4", cfg.Registry.BaseURL)
	assert.InDelta(t, 2.0, cfg.Registry.RequestsPerSec, 0.001)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.HaikuModel)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: profiles.db
log:
  level: debug
  format: console
consolidate:
  drop_threshold: 40
  auto_apply_threshold: 90
validation:
  validator_timeout_secs: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "profiles.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.InDelta(t, 40.0, cfg.Consolidate.DropThreshold, 0.001)
	assert.InDelta(t, 90.0, cfg.Consolidate.AutoApplyThreshold, 0.001)
	assert.Equal(t, 5*time.Second, cfg.Validation.ValidatorTimeout())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "bogus", Format: "json"})
	assert.Error(t, err)
}
