package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the parameters of each prompt as the server finishes it",
	Long: `Follow the execution feed of the ComfyUI server named in the config and,
each time a prompt finishes, fetch it from the history and print its
parameters. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newClient(cfg.Server)
	logger.Info("watching for completed prompts", "server", cfg.Server.BaseURL(), "client id", c.ClientID())

	err := c.WatchCompleted(ctx, func(promptID string) {
		item, err := c.GetPromptHistoryItem(ctx, promptID)
		if err != nil {
			logger.Error("failed to fetch prompt", "prompt id", promptID, "error", err)
			return
		}
		if err := render(cmd.OutOrStdout(), format, selectPath, historyRecord(item)); err != nil {
			logger.Error("failed to write result", "prompt id", promptID, "error", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
