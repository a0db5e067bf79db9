// Package main implements the vetdiag CLI for offline ETL runs and one-off predictions.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vetdiag",
	Short: "Veterinary diagnosis tooling",
	Long: `vetdiag works with treatment logs and the exported diagnosis model without
running the HTTP server.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(etlCmd)
	rootCmd.AddCommand(predictCmd)
}
