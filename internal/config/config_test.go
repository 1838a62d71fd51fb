package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.FreeModel)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.ProModel)
	assert.Equal(t, 1440, cfg.Render.ViewportWidth)
	assert.Equal(t, 900, cfg.Render.ViewportHeight)
	assert.Equal(t, 30, cfg.Render.TimeoutSecs)
	assert.Equal(t, 70, cfg.Render.ScreenshotQuality)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SITEAUDIT_STORE_DRIVER", "postgres")
	t.Setenv("SITEAUDIT_LOG_LEVEL", "debug")
	t.Setenv("SITEAUDIT_SERVER_PORT", "9090")
	t.Setenv("SITEAUDIT_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "not-a-level"})
	require.Error(t, err)
}
