package commands

import (
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/subhatanay/expenseapp/internal/logger"
	"github.com/subhatanay/expenseapp/internal/notionsync"
)

func newExportCommand(root *rootOptions) *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export ledger data to external tools",
	}
	exportCmd.AddCommand(newExportNotionCommand(root))
	return exportCmd
}

func newExportNotionCommand(root *rootOptions) *cobra.Command {
	var (
		userID, contextName, from, to string
		dryRun                        bool
	)

	cmd := &cobra.Command{
		Use:   "notion",
		Short: "Mirror a context's transactions into a Notion database",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDate, err := civil.ParseDate(from)
			if err != nil {
				return fmt.Errorf("invalid --from, expected YYYY-MM-DD: %w", err)
			}
			toDate, err := civil.ParseDate(to)
			if err != nil {
				return fmt.Errorf("invalid --to, expected YYYY-MM-DD: %w", err)
			}
			if toDate.Before(fromDate) {
				return fmt.Errorf("--to must not be before --from")
			}

			a, log, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Config.Notion.Token == "" || a.Config.Notion.DatabaseID == "" {
				return fmt.Errorf("notion.token and notion.database_id are required")
			}

			res, err := notionsync.ExportContext(logger.WithContext(cmd.Context(), log),
				a.Store, a.Store, notionsync.NewClient(a.Config.Notion.Token),
				notionsync.ExportRequest{
					UserID:     userID,
					Context:    contextName,
					From:       fromDate,
					To:         toDate,
					DatabaseID: a.Config.Notion.DatabaseID,
					DryRun:     dryRun,
				})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&contextName, "context", "", "context name (required)")
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview changes without writing to Notion")
	for _, f := range []string{"user", "context", "from", "to"} {
		_ = cmd.MarkFlagRequired(f)
	}

	return cmd
}
