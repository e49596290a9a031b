package config

import "time"

// LLMConfig selects and tunes the generative model provider.
type LLMConfig struct {
	Provider     string        `env:"LLM_PROVIDER" yaml:"provider" default:"gemini"` // "gemini", "claude", or "openai"
	Timeout      time.Duration `env:"LLM_TIMEOUT" yaml:"timeout" default:"30s"`
	MaxRetries   int           `env:"LLM_MAX_RETRIES" yaml:"max_retries" default:"1"`
	RetryBackoff time.Duration `env:"LLM_RETRY_BACKOFF" yaml:"retry_backoff" default:"2s"`
}
