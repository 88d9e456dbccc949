package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/soyeahso/mmassist/internal/config"
	"github.com/soyeahso/mmassist/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent assistant runs from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			path := cfg.Journal.Path
			if path == "" {
				path = paths.Journal
			}
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no run journal at %s", path)
			}

			db, err := store.Open(path, log)
			if err != nil {
				return err
			}
			defer db.Close()
			journal := store.NewJournal(db)

			ctx := context.Background()
			runs, err := journal.Recent(ctx, limit)
			if err != nil {
				return err
			}
			counts, err := journal.CountByState(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tSESSION\tRUN\tSTATE\tSTATUS\tPOLLS\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					r.CreatedAt.Local().Format(time.DateTime),
					r.SessionID, r.RunID, r.State, r.Status, r.Polls,
					(time.Duration(r.DurationMs) * time.Millisecond).String())
			}
			if err := w.Flush(); err != nil {
				return err
			}

			states := make([]string, 0, len(counts))
			for s := range counts {
				states = append(states, s)
			}
			sort.Strings(states)
			fmt.Fprintln(out)
			for _, s := range states {
				fmt.Fprintf(out, "%s: %d\n", s, counts[s])
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}
