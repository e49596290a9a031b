package config

// AnthropicConfig holds Anthropic Claude-specific configuration.
type AnthropicConfig struct {
	APIKey string `env:"ANTHROPIC_API_KEY" yaml:"-"`
	Model  string `env:"CLAUDE_MODEL" yaml:"model" default:"claude-3-5-sonnet-20241022"`
}
