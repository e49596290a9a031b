package config

// GeminiConfig holds Google Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string `env:"GEMINI_API_KEY" yaml:"-"`
	Model  string `env:"GEMINI_MODEL" yaml:"model" default:"gemini-2.0-flash"`
}
