package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/paintlab/paintopt/internal/models"
	"github.com/paintlab/paintopt/internal/optimizer"
	"github.com/paintlab/paintopt/internal/validation"
)

type optimizeOptions struct {
	population  int
	generations int
	elite       int
	topK        int
	workers     int
	seed        int64
	targetType  string
	outputPath  string
	format      string
	details     int
	progress    bool
}

func newOptimizeCommand() *cobra.Command {
	opts := &optimizeOptions{}

	cmd := &cobra.Command{
		Use:   "optimize <request.yaml>",
		Short: "Search for recipes that meet the request's objectives",
		Long: `Run the genetic search described by an optimization request file.

The request names the target properties (objectives), optional business
constraints and product type. GA parameters come from .paintopt.yaml, then
the request file, then these flags, with later sources winning.

Press Ctrl-C to stop early; the best recipes found so far are still reported.

Exit codes: 0 the best recipe is chemically valid, 1 it has validation errors
or no candidate was produced, 2 configuration or runtime error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(cmd, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.population, "population", 0, "Population size")
	f.IntVar(&opts.generations, "generations", 0, "Number of generations")
	f.IntVar(&opts.elite, "elite", 0, "Individuals copied unchanged into the next generation")
	f.IntVar(&opts.topK, "top-k", 0, "Number of ranked candidates to report")
	f.IntVar(&opts.workers, "workers", 0, "Concurrent fitness evaluations")
	f.Int64Var(&opts.seed, "seed", 0, "Random seed")
	f.StringVarP(&opts.targetType, "target-type", "t", "", "Product type whose PVC band applies")
	f.StringVarP(&opts.outputPath, "output", "o", "", "Write the full result as JSON to this file")
	f.StringVar(&opts.format, "format", "table", "Output format: table, json")
	f.IntVar(&opts.details, "details", 3, "Number of candidates to print in detail")
	f.BoolVar(&opts.progress, "progress", false, "Print per-generation progress even when stderr is not a terminal")

	return cmd
}

// applyFlags copies explicitly set flags onto the request and optimizer
// config.
func applyFlags(cmd *cobra.Command, opts *optimizeOptions, req *models.OptimizationRequest, cfg *optimizer.Config) {
	f := cmd.Flags()
	if f.Changed("population") {
		req.PopulationSize = opts.population
	}
	if f.Changed("generations") {
		req.Generations = opts.generations
	}
	if f.Changed("elite") {
		req.EliteSize = opts.elite
	}
	if f.Changed("top-k") {
		req.TopK = opts.topK
	}
	if f.Changed("seed") {
		seed := opts.seed
		req.Seed = &seed
	}
	if f.Changed("target-type") {
		req.TargetType = opts.targetType
	}
	if f.Changed("workers") {
		cfg.Workers = opts.workers
	}
}

func runOptimize(cmd *cobra.Command, path string, opts *optimizeOptions) error {
	if opts.format != "table" && opts.format != "json" {
		return fmt.Errorf("unsupported format %q (want table or json)", opts.format)
	}

	cfg, err := loadProjectConfig(cmd)
	if err != nil {
		return err
	}

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

	applyFlags(cmd, opts, req, &cfg.Optimizer)

	logger := slog.Default()
	backend, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}

	opt := backend.NewOptimizer()
	stderr := cmd.ErrOrStderr()
	tty := isTerminal(stderr)
	if tty || opts.progress {
		opt.OnProgress(progressListener(stderr, tty))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := opt.Run(ctx, *req)
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	if opts.outputPath != "" {
		if err := saveResult(result, opts.outputPath); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
		fmt.Fprintf(stderr, "Results saved to: %s\n", opts.outputPath) //nolint:errcheck
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printResult(out, result, opts.details)
	}

	best := result.Best()
	switch {
	case best == nil:
		return &CandidateInvalidError{Message: "no candidate recipes were produced"}
	case !best.Validation.IsValid:
		return &CandidateInvalidError{
			Message: fmt.Sprintf("best recipe has %d validation error(s)", len(best.Validation.Errors)),
		}
	}
	return nil
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// progressListener prints optimizer events. On a terminal the generation
// line is rewritten in place.
func progressListener(w io.Writer, tty bool) optimizer.ProgressListener {
	return func(ev optimizer.ProgressEvent) {
		switch ev.EventType {
		case optimizer.EventRunStart:
			fmt.Fprintf(w, "Optimizing %s (%d generations)...\n", ev.RunID, ev.TotalGenerations) //nolint:errcheck
		case optimizer.EventGenerationComplete:
			line := printer.Sprintf("generation %d/%d  best %.4f  mean %.4f", ev.Generation+1, ev.TotalGenerations, ev.Best, ev.Mean)
			if ev.PredictorFailures > 0 {
				line += fmt.Sprintf("  predictor failures %d", ev.PredictorFailures)
			}
			if tty {
				fmt.Fprintf(w, "\r\033[K%s", line) //nolint:errcheck
			} else {
				fmt.Fprintln(w, line) //nolint:errcheck
			}
		case optimizer.EventRunComplete, optimizer.EventRunCancelled:
			if tty {
				fmt.Fprintln(w) //nolint:errcheck
			}
			status := "completed"
			if ev.EventType == optimizer.EventRunCancelled {
				status = "cancelled"
			}
			d := time.Duration(ev.DurationMs) * time.Millisecond
			fmt.Fprintf(w, "Run %s after %d generation(s) in %s\n", status, ev.Generation, formatDuration(d)) //nolint:errcheck
		}
	}
}

func saveResult(result *models.OptimizationResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
