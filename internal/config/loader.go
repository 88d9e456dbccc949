package config

import (
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default tuning values.
const (
	DefaultPollIntervalMs        = 1000
	DefaultMaxWaitSeconds        = 300
	DefaultRequestTimeoutSeconds = 30
	DefaultReconnectMinMs        = 1000
	DefaultReconnectMaxMs        = 60000
	DefaultMaxConcurrent         = 8
	DefaultTypingIntervalMs      = 2000
	DefaultIdentityTTLSeconds    = 300
	DefaultIdentityCacheSize     = 4096
	DefaultSessionCacheSize      = 10000
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so keys and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.OpenAI.APIKey = expandEnvVars(cfg.OpenAI.APIKey)
	cfg.OpenAI.AssistantID = expandEnvVars(cfg.OpenAI.AssistantID)
	cfg.Mattermost.Token = expandEnvVars(cfg.Mattermost.Token)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	expandSensitiveFields(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.OpenAI.PollIntervalMs == 0 {
		cfg.OpenAI.PollIntervalMs = DefaultPollIntervalMs
	}
	if cfg.OpenAI.MaxWaitSeconds == 0 {
		cfg.OpenAI.MaxWaitSeconds = DefaultMaxWaitSeconds
	}
	if cfg.Mattermost.RequestTimeoutSeconds == 0 {
		cfg.Mattermost.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
	if cfg.Mattermost.ReconnectMinMs == 0 {
		cfg.Mattermost.ReconnectMinMs = DefaultReconnectMinMs
	}
	if cfg.Mattermost.ReconnectMaxMs == 0 {
		cfg.Mattermost.ReconnectMaxMs = DefaultReconnectMaxMs
	}
	if cfg.Bridge.MaxConcurrent == 0 {
		cfg.Bridge.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.Bridge.TypingIntervalMs == 0 {
		cfg.Bridge.TypingIntervalMs = DefaultTypingIntervalMs
	}
	if cfg.Bridge.IdentityTTLSeconds == 0 {
		cfg.Bridge.IdentityTTLSeconds = DefaultIdentityTTLSeconds
	}
	if cfg.Bridge.IdentityCacheSize == 0 {
		cfg.Bridge.IdentityCacheSize = DefaultIdentityCacheSize
	}
	if cfg.Bridge.SessionCacheSize == 0 {
		cfg.Bridge.SessionCacheSize = DefaultSessionCacheSize
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}
}

// applyEnvOverrides reads the OPENAI_*, MATTERMOST_* and MMASSIST_*
// environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_BASE"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("OPENAI_ASSISTANT_ID"); v != "" {
		cfg.OpenAI.AssistantID = v
	}
	if v := os.Getenv("MATTERMOST_URL"); v != "" {
		cfg.Mattermost.URL = v
	}
	if v := os.Getenv("MATTERMOST_TOKEN"); v != "" {
		cfg.Mattermost.Token = v
	}
	if v := os.Getenv("MMASSIST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
