package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/subhatanay/expenseapp/internal/logger"
)

func newMigrateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending BigQuery schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, log, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Repository == nil {
				return fmt.Errorf("migrate needs gcp.project_id (or GCP_PROJECT_ID)")
			}

			appliedBy := os.Getenv("USER")
			if appliedBy == "" {
				appliedBy = "unknown"
			}

			n, err := a.Repository.Migrate(logger.WithContext(cmd.Context(), log), appliedBy)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", n)
			return nil
		},
	}
}
