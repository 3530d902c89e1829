package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/richinsley/comfyparams/config"
	"github.com/richinsley/comfyparams/extract"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	// Global flags.
	configPath string
	logLevel   string
	format     string
	selectPath string
)

// state shared by the subcommands once the root pre-run has loaded the config
var (
	cfg      *config.Config
	registry *extract.Registry
	logger   *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "comfyparams",
	Short: "Extract generation parameters from ComfyUI workflows",
	Long: `comfyparams reads ComfyUI API-format workflows and reports the parameters
that produced an image: seed, steps, cfg, sampler, prompts, size, clip skip
and the LoRAs applied.

Workflows are read from JSON files, from the "prompt" metadata of PNG files
written by ComfyUI, or from a running server's prompt history.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the config")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "json", "Output format (json, yaml)")
	rootCmd.PersistentFlags().StringVarP(&selectPath, "select", "s", "", "JSONPath expression applied to the output, e.g. $.gen_params.seed")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(typesCmd)
	rootCmd.Version = version
}

// setup loads the config, installs the logger and prepares the processor registry.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	level, err := cfg.Level()
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if format != "json" && format != "yaml" {
		return fmt.Errorf("unsupported output format %q", format)
	}

	registry = extract.DefaultRegistry()
	return cfg.Apply(registry)
}
