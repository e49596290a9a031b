package config

import "time"

// MemoryConfig bounds per-user memory and tunes context assembly.
type MemoryConfig struct {
	// HistoryLimit caps the number of retained conversation turns per user.
	HistoryLimit int `env:"MEMORY_HISTORY_LIMIT" yaml:"history_limit" default:"20"`

	// FileLimit caps the number of retained file-analysis records per user.
	FileLimit int `env:"MEMORY_FILE_LIMIT" yaml:"file_limit" default:"10"`

	// ContextTurns is the number of most recent turns included in each prompt.
	ContextTurns int `env:"MEMORY_CONTEXT_TURNS" yaml:"context_turns" default:"10"`

	// RecencyWindow is how recently a file must have been analyzed for it
	// to be injected into prompts without an explicit reference.
	RecencyWindow time.Duration `env:"MEMORY_RECENCY_WINDOW" yaml:"recency_window" default:"30m"`
}
