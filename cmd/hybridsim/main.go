package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hybridsim",
		Short: "Hybrid stock-and-flow / agent-based diffusion simulator",
		Long: `hybridsim couples a delay-differential stock-and-flow model with an
agent-based diffusion process on a small-world contact network.

Each simulated day the continuous model is advanced, a driver is read off
its stocks, agents on the network decide whether to transition, and the
resulting daily counts feed back into the continuous model.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, or trace (overrides config)")
	rootCmd.PersistentFlags().String("store", "", "Run store backend: sqlite or memory (overrides config)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newValidateCmd(),
		newRunsCmd(),
		newExportCmd(),
		// Archive commands
		newBackupCmd(),
		newRestoreCmd(),
	)
	return rootCmd
}
