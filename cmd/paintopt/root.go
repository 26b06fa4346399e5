package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paintopt",
		Short: "paintopt - inverse design of paint formulations",
		Long: `paintopt searches for paint recipes whose predicted properties meet
your targets while staying chemically valid and within project constraints.

It validates recipes against formulation rules (mass balance, PVC bands,
usage limits, pH stability, solvent compatibility), runs a genetic search
over a material catalogue, and serves the same operations over HTTP and
JSON-RPC.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("dir", "", "Directory to search for "+configFileHint+" (default: current directory)")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newOptimizeCommand())
	cmd.AddCommand(newCatalogCommand())
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newRPCCommand())
	cmd.AddCommand(newCacheCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.ExecuteContext(context.Background())
}
