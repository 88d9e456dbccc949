package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/soyeahso/mmassist/internal/assistant"
	"github.com/soyeahso/mmassist/internal/config"
	"github.com/soyeahso/mmassist/internal/hooks"
	"github.com/soyeahso/mmassist/internal/logging"
	"github.com/soyeahso/mmassist/internal/store"
)

// loadConfig loads and validates the config file, logging every issue.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// requireSettings fails when any of the named settings is missing.
func requireSettings(cfg *config.Config, only ...string) error {
	var missing int
	for _, issue := range config.ValidateRequired(cfg) {
		if len(only) > 0 && !slices.Contains(only, issue.Path) {
			continue
		}
		log.Error().Str("path", issue.Path).Msg(issue.Message)
		missing++
	}
	if missing > 0 {
		return &config.ConfigError{Message: fmt.Sprintf("%d required setting(s) missing", missing)}
	}
	return nil
}

// setupLogger replaces the bootstrap logger with one built from config.
func setupLogger(cfg config.LoggingConfig) (io.Closer, error) {
	l, closer, err := logging.NewWithOptions(logging.Options{
		Level: cfg.Level,
		Style: cfg.ConsoleStyle,
		File:  cfg.File,
	})
	if err != nil {
		return nil, err
	}
	log = l
	return closer, nil
}

// openJournal opens the run journal and subscribes it to run hooks. It
// returns nil when the journal is disabled.
func openJournal(cfg config.JournalConfig, hookMgr *hooks.Manager) (*store.DB, error) {
	if !cfg.IsEnabled() {
		log.Debug().Msg("run journal disabled")
		return nil, nil
	}
	path := cfg.Path
	if path == "" {
		path = paths.Journal
	}
	db, err := store.Open(path, log)
	if err != nil {
		return nil, fmt.Errorf("opening run journal: %w", err)
	}
	store.NewJournal(db).Subscribe(hookMgr)
	return db, nil
}

// newOrchestrator builds the OpenAI platform and the run orchestrator on it.
func newOrchestrator(cfg config.OpenAIConfig, hookMgr *hooks.Manager) (*assistant.OpenAIPlatform, *assistant.AssistantCache, *assistant.Orchestrator) {
	platform := assistant.NewOpenAIPlatform(assistant.OpenAIConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
	})
	assistants := assistant.NewAssistantCache(platform, cfg.AssistantID, log)
	orch := assistant.NewOrchestrator(assistant.OrchestratorConfig{
		PollInterval: cfg.PollInterval(),
		MaxWait:      cfg.MaxWait(),
	}, platform, assistants, hookMgr, log)
	return platform, assistants, orch
}
