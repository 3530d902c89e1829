package main

import (
	"github.com/spf13/cobra"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the node types with a registered processor",
	Long: `List every node type the extractor can evaluate: the built-in processors
plus the aliases declared in the config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return render(cmd.OutOrStdout(), format, selectPath, registry.Types())
	},
}
