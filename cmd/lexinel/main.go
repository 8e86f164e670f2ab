// Package main is the entry point for the lexinel binary. It provides a CLI
// for running compliance requests through the pipeline, sweeping transaction
// datasets with the sentinel scanner, and serving the metrics endpoint.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// A local .env is optional; variables already in the environment win.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for lexinel.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lexinel",
		Short: "AML compliance request pipeline",
		Long: `Lexinel runs compliance requests through a staged screening pipeline:
prompt guarding, policy retrieval, risk scoring, deterministic rule checks,
SAR drafting and alert dispatch.

Example:
  lexinel run --message "client wants to split a 12k deposit" --amount 12000`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newQueueCmd())

	return rootCmd
}
