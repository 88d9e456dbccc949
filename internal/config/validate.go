package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for malformed values. Returns nil if valid.
// Missing credentials are not reported here; see ValidateRequired.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// OpenAI validation
	if cfg.OpenAI.BaseURL != "" && !isHTTPURL(cfg.OpenAI.BaseURL) {
		issues = append(issues, ValidationIssue{
			Path:    "openai.baseUrl",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", cfg.OpenAI.BaseURL),
		})
	}
	if cfg.OpenAI.PollIntervalMs < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "openai.pollIntervalMs",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.OpenAI.PollIntervalMs),
		})
	}
	if cfg.OpenAI.MaxWaitSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "openai.maxWaitSeconds",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.OpenAI.MaxWaitSeconds),
		})
	}

	// Mattermost validation
	if cfg.Mattermost.URL != "" && !isHTTPURL(cfg.Mattermost.URL) {
		issues = append(issues, ValidationIssue{
			Path:    "mattermost.url",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", cfg.Mattermost.URL),
		})
	}
	if cfg.Mattermost.ReconnectMaxMs < cfg.Mattermost.ReconnectMinMs {
		issues = append(issues, ValidationIssue{
			Path: "mattermost.reconnectMaxMs",
			Message: fmt.Sprintf("must be at least reconnectMinMs (%d), got %d",
				cfg.Mattermost.ReconnectMinMs, cfg.Mattermost.ReconnectMaxMs),
		})
	}

	// Bridge validation
	positive := []struct {
		path  string
		value int
	}{
		{"bridge.maxConcurrent", cfg.Bridge.MaxConcurrent},
		{"bridge.typingIntervalMs", cfg.Bridge.TypingIntervalMs},
		{"bridge.identityTtlSeconds", cfg.Bridge.IdentityTTLSeconds},
		{"bridge.identityCacheSize", cfg.Bridge.IdentityCacheSize},
		{"bridge.sessionCacheSize", cfg.Bridge.SessionCacheSize},
	}
	for _, p := range positive {
		if p.value < 0 {
			issues = append(issues, ValidationIssue{
				Path:    p.path,
				Message: fmt.Sprintf("must be positive, got %d", p.value),
			})
		}
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}

// ValidateRequired reports the settings the bridge cannot start without.
func ValidateRequired(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	required := []struct {
		path, env, value string
	}{
		{"openai.assistantId", "OPENAI_ASSISTANT_ID", cfg.OpenAI.AssistantID},
		{"openai.apiKey", "OPENAI_API_KEY", cfg.OpenAI.APIKey},
		{"mattermost.url", "MATTERMOST_URL", cfg.Mattermost.URL},
		{"mattermost.token", "MATTERMOST_TOKEN", cfg.Mattermost.Token},
	}
	for _, r := range required {
		if r.value == "" {
			issues = append(issues, ValidationIssue{
				Path:    r.path,
				Message: fmt.Sprintf("required (set %s)", r.env),
			})
		}
	}
	return issues
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
