// Package config defines the application configuration loaded from the
// environment and an optional YAML file.
package config

import (
	"fmt"
	"strings"

	"github.com/daracheol/lingotutor/pkg/logger"
	"github.com/hashicorp/go-multierror"
)

// AppConfig holds all application configuration.
type AppConfig struct {
	// Service configuration
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"lingotutor"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	// LLM provider selection
	LLM LLMConfig `yaml:"llm"`

	// Provider credentials and models
	Gemini    GeminiConfig    `yaml:"gemini"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`

	// Messaging platform
	Telegram TelegramConfig `yaml:"telegram"`

	// Per-user memory bounds and context assembly policy
	Memory MemoryConfig `yaml:"memory"`

	// Ambient concerns
	Logging    LoggingConfig    `yaml:"logging"`
	Health     HealthConfig     `yaml:"health"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Storage    StorageConfig    `yaml:"storage"`
}

// Validate validates the configuration and returns an error if invalid.
func (c *AppConfig) Validate() error {
	var result error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		result = multierror.Append(result, fmt.Errorf(
			"log_level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		result = multierror.Append(result, fmt.Errorf(
			"log_format must be either 'json' or 'text', got %q", c.Logging.Format))
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "gemini", "claude", "openai":
	default:
		result = multierror.Append(result, fmt.Errorf(
			"llm provider must be one of [gemini, claude, openai], got %q", c.LLM.Provider))
	}

	if c.LLM.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("llm timeout must be greater than 0"))
	}
	if c.LLM.RetryBackoff <= 0 {
		result = multierror.Append(result, fmt.Errorf("llm retry_backoff must be greater than 0"))
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf(
			"health port must be between 1 and 65535, got %d", c.Health.Port))
	}

	if c.Memory.HistoryLimit <= 0 {
		result = multierror.Append(result, fmt.Errorf("memory history_limit must be greater than 0"))
	}
	if c.Memory.FileLimit <= 0 {
		result = multierror.Append(result, fmt.Errorf("memory file_limit must be greater than 0"))
	}
	if c.Memory.ContextTurns <= 0 {
		result = multierror.Append(result, fmt.Errorf("memory context_turns must be greater than 0"))
	}
	if c.Memory.ContextTurns > c.Memory.HistoryLimit {
		result = multierror.Append(result, fmt.Errorf(
			"memory context_turns (%d) cannot exceed history_limit (%d)",
			c.Memory.ContextTurns, c.Memory.HistoryLimit))
	}

	if c.Storage.Backend != "local" && c.Storage.Backend != "s3" {
		result = multierror.Append(result, fmt.Errorf(
			"storage backend must be 'local' or 's3', got %q", c.Storage.Backend))
	}

	return result
}

// GetLogLevel returns the parsed logger level.
func (c *AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(strings.ToLower(c.Logging.Level))
}

// IsProduction reports whether the service runs in production.
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// LogConfig logs the current configuration without sensitive data.
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.StringField("llm_provider", c.LLM.Provider),
		logger.StringField("log_level", c.Logging.Level),
		logger.StringField("log_format", c.Logging.Format),
		logger.IntField("history_limit", c.Memory.HistoryLimit),
		logger.IntField("file_limit", c.Memory.FileLimit),
		logger.BoolField("telegram_configured", c.Telegram.Enabled()),
		logger.BoolField("metrics_enabled", c.Monitoring.MetricsEnabled),
		logger.BoolField("archive_enabled", c.Storage.ArchiveEnabled),
		logger.StringField("storage_backend", c.Storage.Backend),
	)
}
