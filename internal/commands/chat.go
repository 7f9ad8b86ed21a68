package commands

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/subhatanay/expenseapp/internal/dialog"
	"github.com/subhatanay/expenseapp/internal/logger"
)

func newChatCommand(root *rootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "chat [message...]",
		Short: "Talk to the dialog engine; reads lines from stdin without a message",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, log, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := logger.WithUser(logger.WithContext(cmd.Context(), log), userID)
			if len(args) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), a.Engine.Handle(ctx, userID, strings.Join(args, " ")))
				return nil
			}
			return chatLoop(ctx, cmd, a.Engine, userID)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id to chat as (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func chatLoop(ctx context.Context, cmd *cobra.Command, engine *dialog.Engine, userID string) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		fmt.Fprintln(out, engine.Handle(ctx, userID, line))
	}
	return scanner.Err()
}
