package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/paintlab/paintopt/internal/cache"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the prediction cache",
		Long: `Manage the prediction cache.

When cache.enabled is set in .paintopt.yaml, predictor responses are stored on
disk keyed by model id and feature vector so repeated evaluations of the same
recipe skip the predictor.`,
	}

	cmd.AddCommand(newCacheClearCommand())

	return cmd
}

func newCacheClearCommand() *cobra.Command {
	var cacheDir string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the prediction cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("cache-dir") {
				cfg, err := loadProjectConfig(cmd)
				if err != nil {
					return err
				}
				cacheDir = cfg.Cache.Dir
			}

			absDir, err := filepath.Abs(cacheDir)
			if err != nil {
				return fmt.Errorf("resolving cache directory: %w", err)
			}

			n, err := cache.New(absDir).Clear()
			if err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared: %s (%d entries)\n", absDir, n) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Cache directory to clear (default: cache.dir from config)")

	return cmd
}
