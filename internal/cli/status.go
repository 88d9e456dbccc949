package cli

import (
	"fmt"
	"os"

	"github.com/soyeahso/mmassist/internal/config"
	"github.com/soyeahso/mmassist/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show mmassist configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("mmassist %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:     %s\n", paths.Config)
			fmt.Printf("Data:       %s\n", paths.Data)
			fmt.Printf("Logs:       %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:     error loading: %v\n", err)
				return nil
			}
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Println("Config:     not found (using defaults and environment)")
			}

			fmt.Printf("OpenAI:     assistant=%s key=%s base=%s\n",
				orUnset(cfg.OpenAI.AssistantID), mask(cfg.OpenAI.APIKey), orDefault(cfg.OpenAI.BaseURL))
			fmt.Printf("Polling:    every %s, give up after %s\n", cfg.OpenAI.PollInterval(), cfg.OpenAI.MaxWait())
			fmt.Printf("Mattermost: url=%s token=%s\n", orUnset(cfg.Mattermost.URL), mask(cfg.Mattermost.Token))
			fmt.Printf("Bridge:     concurrency=%d typing=%s identityTtl=%s\n",
				cfg.Bridge.MaxConcurrent, cfg.Bridge.TypingInterval(), cfg.Bridge.IdentityTTL())

			journal := "disabled"
			if cfg.Journal.IsEnabled() {
				journal = cfg.Journal.Path
				if journal == "" {
					journal = paths.Journal
				}
			}
			fmt.Printf("Journal:    %s\n", journal)

			issues := append(config.Validate(&cfg), config.ValidateRequired(&cfg)...)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s\n", issue)
				}
			}

			return nil
		},
	}

	return cmd
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}

// mask hides all but the last four characters of a secret.
func mask(s string) string {
	switch {
	case s == "":
		return "(unset)"
	case len(s) <= 4:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}
