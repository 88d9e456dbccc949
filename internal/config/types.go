package config

import "time"

// Config is the root configuration for mmassist.
type Config struct {
	OpenAI     OpenAIConfig     `yaml:"openai,omitempty"`
	Mattermost MattermostConfig `yaml:"mattermost,omitempty"`
	Bridge     BridgeConfig     `yaml:"bridge,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Journal    JournalConfig    `yaml:"journal,omitempty"`
}

// OpenAIConfig configures the Assistants API client and run polling.
type OpenAIConfig struct {
	APIKey         string `yaml:"apiKey,omitempty"`
	BaseURL        string `yaml:"baseUrl,omitempty"`
	AssistantID    string `yaml:"assistantId,omitempty"`
	PollIntervalMs int    `yaml:"pollIntervalMs,omitempty"`
	MaxWaitSeconds int    `yaml:"maxWaitSeconds,omitempty"` // 0 disables the limit
}

// PollInterval returns the run polling interval.
func (c OpenAIConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// MaxWait returns how long a run may be polled before it is abandoned.
func (c OpenAIConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitSeconds) * time.Second
}

// MattermostConfig configures the chat transport.
type MattermostConfig struct {
	URL                   string `yaml:"url,omitempty"`
	Token                 string `yaml:"token,omitempty"`
	RequestTimeoutSeconds int    `yaml:"requestTimeoutSeconds,omitempty"`
	ReconnectMinMs        int    `yaml:"reconnectMinMs,omitempty"`
	ReconnectMaxMs        int    `yaml:"reconnectMaxMs,omitempty"`
}

// RequestTimeout returns the REST request timeout.
func (c MattermostConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ReconnectBackoff returns the first and the largest reconnect delay.
func (c MattermostConfig) ReconnectBackoff() (minDelay, maxDelay time.Duration) {
	return time.Duration(c.ReconnectMinMs) * time.Millisecond, time.Duration(c.ReconnectMaxMs) * time.Millisecond
}

// BridgeConfig tunes event dispatch and the in-memory caches.
type BridgeConfig struct {
	MaxConcurrent      int `yaml:"maxConcurrent,omitempty"`
	TypingIntervalMs   int `yaml:"typingIntervalMs,omitempty"`
	IdentityTTLSeconds int `yaml:"identityTtlSeconds,omitempty"`
	IdentityCacheSize  int `yaml:"identityCacheSize,omitempty"`
	SessionCacheSize   int `yaml:"sessionCacheSize,omitempty"`
}

// TypingInterval returns how often the typing indicator is refreshed.
func (c BridgeConfig) TypingInterval() time.Duration {
	return time.Duration(c.TypingIntervalMs) * time.Millisecond
}

// IdentityTTL returns how long a resolved user name is reused.
func (c BridgeConfig) IdentityTTL() time.Duration {
	return time.Duration(c.IdentityTTLSeconds) * time.Second
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// JournalConfig configures the SQLite run journal.
type JournalConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"` // defaults to true
	Path    string `yaml:"path,omitempty"`    // defaults to <data dir>/journal.db
}

// IsEnabled reports whether runs should be journaled.
func (c JournalConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
