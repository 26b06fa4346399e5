package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paintlab/paintopt/internal/models"
	"github.com/paintlab/paintopt/internal/validation"
)

func newValidateCommand() *cobra.Command {
	var (
		targetType string
		asRequest  bool
		format     string
	)

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a recipe or an optimization request",
		Long: `Validate a recipe file (YAML or JSON) against the schema and the
formulation rules: mass balance, PVC band for the target type, material
usage limits, pH stability and solvent compatibility.

With --request the file is checked as an optimization request instead.

Exit codes: 0 valid, 1 the recipe has validation errors, 2 the file could not
be read or does not match the schema.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unsupported format %q (want table or json)", format)
			}
			if asRequest {
				return validateRequestFile(cmd.OutOrStdout(), args[0])
			}
			return validateRecipeFile(cmd, args[0], targetType, format)
		},
	}

	cmd.Flags().StringVarP(&targetType, "target-type", "t", "", "Product type whose PVC band applies (e.g. high_gloss, matte)")
	cmd.Flags().BoolVar(&asRequest, "request", false, "Validate the file as an optimization request")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, json")

	return cmd
}

func schemaError(path string, errs []string) error {
	return fmt.Errorf("%s does not match the schema:\n  %s", path, strings.Join(errs, "\n  "))
}

func validateRecipeFile(cmd *cobra.Command, path, targetType, format string) error {
	cfg, err := loadProjectConfig(cmd)
	if err != nil {
		return err
	}
	backend, err := newBackend(cfg, slog.Default())
	if err != nil {
		return err
	}

	errs, err := validation.ValidateRecipeFile(path)
	if err != nil {
		return fmt.Errorf("reading recipe file: %w", err)
	}
	if len(errs) > 0 {
		return schemaError(path, errs)
	}
	recipe, err := models.LoadRecipe(path)
	if err != nil {
		return fmt.Errorf("loading recipe: %w", err)
	}

	rep := backend.Inspect(*recipe, targetType)
	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	} else {
		printValidation(out, recipe.Name, rep)
	}

	if !rep.IsValid {
		return &CandidateInvalidError{
			Message: fmt.Sprintf("recipe has %d validation error(s)", len(rep.Errors)),
		}
	}
	return nil
}

func validateRequestFile(w io.Writer, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("request file not found: %s", path)
	}
	errs, err := validation.ValidateRequestFile(path)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return schemaError(path, errs)
	}

	req, err := models.LoadOptimizationRequest(path)
	if err != nil {
		return fmt.Errorf("loading request: %w", err)
	}

	fmt.Fprintf(w, "✓ %s is a valid optimization request (%d objective(s))\n", path, len(req.Objectives)) //nolint:errcheck
	for _, o := range req.Objectives {
		line := fmt.Sprintf("  - %s: %s %g (weight %g)", o.Name, o.Direction, o.Target, o.Weight)
		if o.Tolerance > 0 {
			line += fmt.Sprintf(", tolerance %g", o.Tolerance)
		}
		fmt.Fprintln(w, line) //nolint:errcheck
	}
	return nil
}
