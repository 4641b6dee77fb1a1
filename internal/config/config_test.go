package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, "sonar-deep-research", cfg.Perplexity.DeepModel)
	assert.Equal(t, 180, cfg.Research.StandardTimeoutSecs)
	assert.Equal(t, 300, cfg.Research.DeepTimeoutSecs)
	assert.Equal(t, 2, cfg.Research.RetryBackoffSecs)
	assert.Equal(t, 48000, cfg.Research.MaxReportChars)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORTRESEARCH_SERVER_PORT", "9090")
	t.Setenv("PORTRESEARCH_STORE_DRIVER", "sqlite")
	t.Setenv("PORTRESEARCH_PERPLEXITY_KEY", "pk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "pk-test", cfg.Perplexity.Key)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "not-a-level"}))
}
