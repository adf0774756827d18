package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpark/parkedge/pkg/models"
)

type testConfig struct {
	Name     string          `json:"name"`
	Interval models.Duration `json:"interval"`

	validated bool
}

func (c *testConfig) Validate() error {
	c.validated = true

	if c.Name == "" {
		c.Name = "default"
	}

	return nil
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfigFile(t, `{"name": "edge-01", "interval": "5s"}`)

	var cfg testConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.NoError(t, err)

	assert.Equal(t, "edge-01", cfg.Name)
	assert.Equal(t, models.Duration(5*time.Second), cfg.Interval)
	assert.True(t, cfg.validated)
}

func TestLoadAndValidateAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `{}`)

	var cfg testConfig

	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg))
	assert.Equal(t, "default", cfg.Name)
}

func TestLoadAndValidateMissingFile(t *testing.T) {
	var cfg testConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), "/nonexistent/config.json", &cfg)
	assert.Error(t, err)
}

func TestLoadAndValidateMalformedJSON(t *testing.T) {
	path := writeConfigFile(t, `{not json`)

	var cfg testConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	assert.Error(t, err)
}

func TestLoadAndValidateEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `{"name": "from-file", "interval": "5s"}`)

	t.Setenv("SMARTPARK_NAME", "from-env")
	t.Setenv("SMARTPARK_INTERVAL", "45s")

	var cfg testConfig

	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, models.Duration(45*time.Second), cfg.Interval)
}

func TestEnvLoaderNested(t *testing.T) {
	type inner struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}

	type outer struct {
		Server  inner   `json:"server"`
		Ratio   float64 `json:"ratio"`
		Enabled bool    `json:"enabled"`
	}

	t.Setenv("SMARTPARK_SERVER_HOST", "collector")
	t.Setenv("SMARTPARK_SERVER_PORT", "8000")
	t.Setenv("SMARTPARK_RATIO", "0.6")
	t.Setenv("SMARTPARK_ENABLED", "true")

	var cfg outer

	require.NoError(t, NewEnvLoader(EnvPrefix).Load(context.Background(), "", &cfg))

	assert.Equal(t, "collector", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.InDelta(t, 0.6, cfg.Ratio, 1e-9)
	assert.True(t, cfg.Enabled)
}

func TestEnvLoaderRejectsBadValues(t *testing.T) {
	type cfg struct {
		Port int `json:"port"`
	}

	t.Setenv("SMARTPARK_PORT", "not-a-number")

	var c cfg

	assert.Error(t, NewEnvLoader(EnvPrefix).Load(context.Background(), "", &c))
}

func TestValidateConfigSkipsNonValidators(t *testing.T) {
	type plain struct{ Name string }

	assert.NoError(t, ValidateConfig(&plain{}))
}
