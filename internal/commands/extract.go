package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/subhatanay/expenseapp/internal/extract"
)

func newExtractCommand(root *rootOptions) *cobra.Command {
	var templates []string

	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract a transaction from an alert body (file or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return err
			}
			patterns, err := reg.Templates(templates...)
			if err != nil {
				return err
			}

			var body []byte
			if len(args) == 1 {
				body, err = os.ReadFile(args[0])
			} else {
				body, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("reading body: %w", err)
			}

			res, err := extract.NewExtractor().Extract(string(body), patterns)
			if errors.Is(err, extract.ErrNotMatched) {
				fmt.Fprintln(cmd.OutOrStdout(), "no template matched")
				return err
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"template":      res.TemplateType,
				"date_fallback": res.DateFallback,
				"transaction":   res.Transaction,
			})
		},
	}

	cmd.Flags().StringSliceVar(&templates, "templates", nil, "template types to try, in order (default: all)")

	return cmd
}
