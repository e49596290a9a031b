package config

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey string `env:"OPENAI_API_KEY" yaml:"-"`
	Model  string `env:"OPENAI_MODEL" yaml:"model" default:"gpt-4o"`
}
