package main

import (
	"context"

	"github.com/richinsley/comfyparams/client"
	"github.com/richinsley/comfyparams/config"
	"github.com/spf13/cobra"
)

var historyFlags struct {
	limit int
}

var historyCmd = &cobra.Command{
	Use:   "history [prompt-id]",
	Short: "Extract parameters from a ComfyUI server's prompt history",
	Long: `Fetch the prompt history of the ComfyUI server named in the config and
print the parameters of every executed prompt, oldest first. With a prompt
id only that prompt is reported.`,
	Example: `  # Every prompt the server remembers
  comfyparams history

  # The last five prompts
  comfyparams history --limit 5

  # One prompt, seed only
  comfyparams history 4f1c2a7e-0f43-4c53-9d0b-5bcbad3b1a88 --select '$.gen_params.seed'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyFlags.limit, "limit", "n", 0, "Only report the most recent N prompts")
}

func newClient(s config.Server) *client.ComfyClient {
	return client.NewComfyClient(s.Address, s.Port, s.Protocol)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c := newClient(cfg.Server)

	if len(args) == 1 {
		item, err := c.GetPromptHistoryItem(ctx, args[0])
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), format, selectPath, historyRecord(item))
	}

	items, err := c.GetPromptHistoryByIndex(ctx)
	if err != nil {
		return err
	}
	if historyFlags.limit > 0 && len(items) > historyFlags.limit {
		items = items[len(items)-historyFlags.limit:]
	}

	records := make([]interface{}, 0, len(items))
	for i := range items {
		records = append(records, historyRecord(&items[i]))
	}
	return render(cmd.OutOrStdout(), format, selectPath, records)
}

func historyRecord(item *client.PromptHistoryItem) map[string]interface{} {
	ev := cfg.NewEvaluator(registry, logger.With("prompt id", item.PromptID))
	return record("prompt_id", item.PromptID, ev.Parse(item.Prompt))
}
