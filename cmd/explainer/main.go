// explainer generates plain-language explanations for drinking-water
// violations and stores them alongside the violation records.
//
// Usage:
//
//	explainer run [--dry-run] [--limit=N] [--regenerate] [--include-historical]
//	explainer serve [--limit=N] [--include-historical]
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "explainer",
	Short: "Generate resident-facing explanations for water quality violations",
	Long: `Explainer selects health-based drinking-water violations that lack a current
explanation, scores their severity, and asks a text-generation service for a
plain-language explanation. When the service fails, a templated explanation
is stored instead.

Configuration is read from the environment; a .env file in the working
directory is loaded first when present.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
