package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/richinsley/comfyparams/extract"
	"github.com/richinsley/comfyparams/graphapi"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var parseFlags struct {
	progress bool
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>...",
	Short: "Extract parameters from workflow JSON or PNG files",
	Long: `Parse one or more ComfyUI API-format workflows and print the extracted
parameters. Files ending in .png are read from their "prompt" metadata
chunk, anything else is read as JSON.

A single file prints its result; several files print a list of results,
each tagged with its file name, in argument order.`,
	Example: `  # Parameters of a saved image
  comfyparams parse ComfyUI_00042_.png

  # Only the seeds of a batch, as YAML
  comfyparams parse out/*.png --format yaml --select '$[*].gen_params.seed'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&parseFlags.progress, "progress", true, "Show a progress bar when parsing several files")
}

func runParse(cmd *cobra.Command, args []string) error {
	var bar *progressbar.ProgressBar
	if parseFlags.progress && len(args) > 1 {
		bar = progressbar.Default(int64(len(args)), "parsing")
		defer bar.Finish()
	}

	results, err := parseFiles(cmd.Context(), args, cfg.Workers, func(path string) *extract.Evaluator {
		return cfg.NewEvaluator(registry, logger.With("file", path))
	}, bar)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return render(cmd.OutOrStdout(), format, selectPath, record("", "", results[0]))
	}
	records := make([]interface{}, len(results))
	for i, res := range results {
		records[i] = record("file", args[i], res)
	}
	return render(cmd.OutOrStdout(), format, selectPath, records)
}

// parseFiles parses paths concurrently, at most workers at a time, each with its own
// evaluator. Results are returned in the order of paths.
func parseFiles(ctx context.Context, paths []string, workers int, newEvaluator func(path string) *extract.Evaluator, bar *progressbar.ProgressBar) ([]*extract.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]*extract.Result, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			wf, err := loadWorkflow(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = newEvaluator(path).Parse(wf)
			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// loadWorkflow reads a workflow from a PNG's metadata or from a JSON file.
func loadWorkflow(path string) (*graphapi.Workflow, error) {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return graphapi.NewWorkflowFromPNGFile(path)
	}
	wf, err := graphapi.NewWorkflowFromJsonFile(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("loaded workflow", "file", path, "nodes", len(wf.Order))
	return wf, nil
}
