package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daracheol/lingotutor/pkg/config"
	"github.com/daracheol/lingotutor/pkg/logger"
)

func loadDefaults(t *testing.T) AppConfig {
	t.Helper()
	var cfg AppConfig
	require.NoError(t, config.GetConfigFromEnvVars(&cfg))
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := loadDefaults(t)

	assert.Equal(t, "lingotutor", cfg.ServiceName)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 20, cfg.Memory.HistoryLimit)
	assert.Equal(t, 10, cfg.Memory.FileLimit)
	assert.Equal(t, 10, cfg.Memory.ContextTurns)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.True(t, cfg.Health.Enabled)
	assert.Equal(t, 8080, cfg.Health.Port)
	assert.False(t, cfg.Storage.ArchiveEnabled)
	assert.Equal(t, "local", cfg.Storage.Backend)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("MEMORY_HISTORY_LIMIT", "40")
	t.Setenv("MEMORY_RECENCY_WINDOW", "15m")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg := loadDefaults(t)

	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, 40, cfg.Memory.HistoryLimit)
	assert.Equal(t, "15m0s", cfg.Memory.RecencyWindow.String())
	assert.True(t, cfg.Telegram.Enabled())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.LLM.Provider = "watson"
	cfg.Logging.Level = "loud"
	cfg.Memory.ContextTurns = 50 // exceeds history limit

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm provider")
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "context_turns")
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := loadDefaults(t)
	assert.NoError(t, cfg.Validate())
}

func TestGetLogLevel(t *testing.T) {
	cfg := loadDefaults(t)
	assert.Equal(t, logger.InfoLevel, cfg.GetLogLevel())

	cfg.Logging.Level = "debug"
	assert.Equal(t, logger.DebugLevel, cfg.GetLogLevel())
}

func TestIsProduction(t *testing.T) {
	cfg := loadDefaults(t)
	assert.False(t, cfg.IsProduction())

	cfg.Environment = "Production"
	assert.True(t, cfg.IsProduction())
}
