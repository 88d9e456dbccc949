package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/soyeahso/mmassist/internal/domain"
	"github.com/soyeahso/mmassist/internal/hooks"
	"github.com/soyeahso/mmassist/internal/identity"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var (
		sessionID string
		user      string
		system    string
	)

	cmd := &cobra.Command{
		Use:   "ask <message...>",
		Short: "Send one message to the assistant and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := requireSettings(&cfg, "openai.assistantId", "openai.apiKey"); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			hookMgr := hooks.NewManager(log)
			db, err := openJournal(cfg.Journal, hookMgr)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			platform, _, orch := newOrchestrator(cfg.OpenAI, hookMgr)

			if sessionID == "" {
				sessionID, err = platform.CreateSession(ctx)
				if err != nil {
					return fmt.Errorf("creating session: %w", err)
				}
				log.Debug().Str("sessionId", sessionID).Msg("created session")
			}

			var msgs []domain.ChatMessage
			if system != "" {
				msgs = append(msgs, domain.ChatMessage{Role: domain.RoleSystem, Content: system})
			}
			msgs = append(msgs, domain.ChatMessage{
				Role:    domain.RoleUser,
				Name:    identity.Sanitize(user),
				Content: strings.Join(args, " "),
			})

			resp := orch.Run(ctx, sessionID, msgs)
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", sessionID)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "continue an existing session instead of creating one")
	cmd.Flags().StringVar(&user, "user", "cli", "name the message is attributed to")
	cmd.Flags().StringVar(&system, "instructions", "", "per-run instructions overriding the assistant's")
	return cmd
}
