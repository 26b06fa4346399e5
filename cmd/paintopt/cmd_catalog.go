package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paintlab/paintopt/internal/models"
)

func newCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the material catalogue",
	}
	cmd.AddCommand(newCatalogListCommand())
	return cmd
}

func newCatalogListCommand() *cobra.Command {
	var (
		category string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the materials the optimizer can use",
		Long: `List the materials in the configured catalogue (catalog.path in
.paintopt.yaml, or the built-in demonstration catalogue).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProjectConfig(cmd)
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			filter := models.MaterialCategory(strings.ToLower(category))
			switch filter {
			case "", models.CategoryBinder, models.CategoryPigment, models.CategoryFiller,
				models.CategorySolvent, models.CategoryAdditive, models.CategoryOther:
			default:
				return fmt.Errorf("unknown category %q", category)
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(cat)
			}
			n := printCatalog(out, cat, filter)
			fmt.Fprintf(out, "\n%d material(s)\n", n) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Only list one category (binder, pigment, filler, solvent, additive)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json")

	return cmd
}
