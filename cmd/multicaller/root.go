package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "multicaller",
	Short: "Batches queued contract calls into Multicall3 aggregate3 transactions",
	Long: `multicaller keeps a queue of contract calls, estimates their gas, packs the
largest prefix that fits one transaction into a Multicall3 aggregate3 call,
and submits it at a fee capped by the configured ceiling.

Each mined batch is reported to the log sink and, when configured, published
to an AMQP fanout exchange.`,
	Version:      version,
	SilenceUsage: true,
	Example: `  # Run a batch cycle every interval until interrupted
  multicaller run --config config.yaml

  # Run a single cycle and exit
  multicaller once`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run batch cycles on the configured interval",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), configPath, false)
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single batch cycle and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), configPath, true)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "multicaller %s (commit: %s, built: %s)\n", version, commit, buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.AddCommand(runCmd, onceCmd, versionCmd)
}
