package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/soyeahso/mmassist/internal/bridge"
	"github.com/soyeahso/mmassist/internal/channel/mattermost"
	"github.com/soyeahso/mmassist/internal/hooks"
	"github.com/soyeahso/mmassist/internal/identity"
	"github.com/soyeahso/mmassist/internal/liveness"
	"github.com/soyeahso/mmassist/internal/session"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd() *cobra.Command {
	var maxConcurrent int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to Mattermost and answer mentions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if maxConcurrent > 0 {
				cfg.Bridge.MaxConcurrent = maxConcurrent
			}
			if err := requireSettings(&cfg); err != nil {
				return err
			}

			closer, err := setupLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer closer.Close()

			// Block until SIGINT/SIGTERM
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

			platform, assistants, orch := newOrchestrator(cfg.OpenAI, hookMgr)
			if _, err := assistants.Get(ctx); err != nil {
				log.Warn().Err(err).Msg("assistant not reachable yet, will retry on first mention")
			}

			mm := mattermost.New(cfg.Mattermost, log)
			me, err := mm.Me(ctx)
			if err != nil {
				return err
			}

			resolver, err := identity.NewResolver(mm, identity.Config{
				TTL:       cfg.Bridge.IdentityTTL(),
				CacheSize: cfg.Bridge.IdentityCacheSize,
			}, log)
			if err != nil {
				return err
			}
			sessions, err := session.NewStore(platform, cfg.Bridge.SessionCacheSize, log)
			if err != nil {
				return err
			}

			b := bridge.New(bridge.Config{MaxConcurrent: cfg.Bridge.MaxConcurrent}, bridge.Deps{
				Poster:   mm,
				Identity: resolver,
				Sessions: sessions,
				Runner:   orch,
				Liveness: liveness.New(mm, cfg.Bridge.TypingInterval(), log),
				Hooks:    hookMgr,
			}, log)

			if err := mm.Start(ctx); err != nil {
				return err
			}
			log.Info().
				Str("userId", me.ID).
				Str("username", me.Username).
				Int("maxConcurrent", cfg.Bridge.MaxConcurrent).
				Msg("connected, waiting for mentions")

			hookMgr.Emit(ctx, hooks.EventBridgeStart, map[string]any{
				"userId":   me.ID,
				"username": me.Username,
			})

			b.Serve(ctx, mm.Events(), me.ID)

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			hookMgr.Emit(shutdownCtx, hooks.EventBridgeStop, map[string]any{"userId": me.ID})
			if err := mm.Stop(shutdownCtx); err != nil {
				return fmt.Errorf("stopping mattermost client: %w", err)
			}
			log.Info().Msg("bridge stopped")
			return nil
		},
	}

	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "override how many mentions are answered at once")
	return cmd
}
