// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// LLMConfig holds settings for the language model backend used by the
// classifier and extractor primary paths.
type LLMConfig struct {
	// BaseURL is the Ollama server address (default "http://localhost:11434").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Model is the model identifier passed on chat calls.
	Model string `json:"model" yaml:"model"`

	// Timeout is the HTTP request timeout (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// APIToken is an optional bearer token for authenticated deployments.
	APIToken string `json:"api_token,omitempty" yaml:"api_token,omitempty"`
}

// ContextConfig holds settings for the dialogue context store.
type ContextConfig struct {
	// DBPath is the SQLite database file for the durable repository.
	DBPath string `json:"db_path" yaml:"db_path"`

	// CacheTTLMinutes bounds how long an idle context stays cached (default 30).
	CacheTTLMinutes int `json:"cache_ttl_minutes" yaml:"cache_ttl_minutes"`

	// CleanupIntervalMinutes is the eviction pass period (default 5).
	CleanupIntervalMinutes int `json:"cleanup_interval_minutes" yaml:"cleanup_interval_minutes"`

	// MaxCacheSize caps the number of cached contexts (default 1000).
	MaxCacheSize int `json:"max_cache_size" yaml:"max_cache_size"`

	// MaxHistorySize caps the conversation history per user (default 10).
	MaxHistorySize int `json:"max_history_size" yaml:"max_history_size"`

	// ContextWindowHours bounds how far back RecentEntities looks (default 24).
	ContextWindowHours int `json:"context_window_hours" yaml:"context_window_hours"`
}

// CacheTTL returns the cache TTL as a duration, applying the default.
func (c ContextConfig) CacheTTL() time.Duration {
	if c.CacheTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// CleanupInterval returns the eviction period, applying the default.
func (c ContextConfig) CleanupInterval() time.Duration {
	if c.CleanupIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// CacheCap returns the cache size cap, applying the default.
func (c ContextConfig) CacheCap() int {
	if c.MaxCacheSize <= 0 {
		return 1000
	}
	return c.MaxCacheSize
}

// HistoryCap returns the per-user history cap, applying the default.
func (c ContextConfig) HistoryCap() int {
	if c.MaxHistorySize <= 0 {
		return 10
	}
	return c.MaxHistorySize
}

// ContextWindow returns the recent-entity window, applying the default.
func (c ContextConfig) ContextWindow() time.Duration {
	if c.ContextWindowHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.ContextWindowHours) * time.Hour
}

// Config groups all engine configuration.
type Config struct {
	LLM     LLMConfig     `json:"llm" yaml:"llm"`
	Context ContextConfig `json:"context" yaml:"context"`

	// VocabularyPath optionally points at a vocabulary YAML file; when
	// empty the built-in vocabulary is used.
	VocabularyPath string `json:"vocabulary_path,omitempty" yaml:"vocabulary_path,omitempty"`
}

// DefaultConfig returns the recognized default configuration.
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2",
			Timeout: 60 * time.Second,
		},
		Context: ContextConfig{
			DBPath:                 "db/scholar-assistant.db",
			CacheTTLMinutes:        30,
			CleanupIntervalMinutes: 5,
			MaxCacheSize:           1000,
			MaxHistorySize:         10,
			ContextWindowHours:     24,
		},
	}
}
