package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/subhatanay/expenseapp/internal/logger"
)

func newSyncCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [user...]",
		Short: "Run one ingestion pass for the given users (default: all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, log, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			users := args
			if len(users) == 0 {
				users = a.Syncer.Users()
			}
			if len(users) == 0 {
				return fmt.Errorf("no users with sources configured")
			}

			ctx := logger.WithContext(cmd.Context(), log)
			results, errs := a.Syncer.SyncAll(ctx, users, a.Config.Sync.Concurrency)

			sort.Strings(users)
			out := cmd.OutOrStdout()
			for _, u := range users {
				if err, ok := errs[u]; ok {
					fmt.Fprintf(out, "%s: failed: %v\n", u, err)
					continue
				}
				r := results[u]
				fmt.Fprintf(out, "%s: staged %d (%d debit, %d credit), duplicates %d, skipped %d\n",
					u, r.Staged, r.Debits, r.Credits, r.Duplicates, r.Skipped)
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d of %d users failed", len(errs), len(users))
			}
			return nil
		},
	}
}
