// comfyparams extracts generation parameters from ComfyUI workflows.
//
// Usage:
//
//	comfyparams parse workflow.json image.png ... [--format yaml] [--select <jsonpath>]
//	comfyparams history [--limit N]
//	comfyparams watch
//	comfyparams types
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
