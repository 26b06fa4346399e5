// Package optimizer searches for paint recipes that meet target properties
// with a genetic algorithm. Fitness combines the property predictor's
// target loss, the chemical validity penalty and business-rule penalties;
// lower is better.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/paintlab/paintopt/internal/catalog"
	"github.com/paintlab/paintopt/internal/chemistry"
	"github.com/paintlab/paintopt/internal/metrics"
	"github.com/paintlab/paintopt/internal/models"
	"github.com/paintlab/paintopt/internal/predictor"
)

// Optimizer runs recipe searches. One Optimizer may serve concurrent Run
// calls; each run owns its population and random source.
type Optimizer struct {
	predictor predictor.Predictor
	catalog   *catalog.Catalog
	validator *chemistry.Validator
	cfg       Config
	logger    *slog.Logger

	// Progress tracking
	progressMu sync.Mutex
	listeners  []ProgressListener
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithConfig replaces the default GA parameters.
func WithConfig(cfg Config) Option {
	return func(o *Optimizer) { o.cfg = cfg }
}

// WithValidator sets the chemical validity engine.
func WithValidator(v *chemistry.Validator) Option {
	return func(o *Optimizer) { o.validator = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Optimizer) { o.logger = l }
}

// New creates an optimizer that draws materials from cat and scores
// candidates with p.
func New(p predictor.Predictor, cat *catalog.Catalog, opts ...Option) *Optimizer {
	o := &Optimizer{
		predictor: p,
		catalog:   cat,
		cfg:       DefaultConfig(),
		listeners: []ProgressListener{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.validator == nil {
		o.validator = chemistry.Default()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Config returns the default parameters of this optimizer.
func (o *Optimizer) Config() Config {
	return o.cfg
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventRunStart           EventType = "run_start"
	EventGenerationComplete EventType = "generation_complete"
	EventRunComplete        EventType = "run_complete"
	EventRunCancelled       EventType = "run_cancelled"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType         EventType `json:"type"`
	RunID             string    `json:"run_id"`
	Generation        int       `json:"generation"`
	TotalGenerations  int       `json:"total_generations"`
	Best              float64   `json:"best"`
	Mean              float64   `json:"mean,omitempty"`
	Worst             float64   `json:"worst,omitempty"`
	PredictorFailures int       `json:"predictor_failures,omitempty"`
	DurationMs        int64     `json:"duration_ms"`
}

// OnProgress registers a progress listener
func (o *Optimizer) OnProgress(listener ProgressListener) {
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	o.listeners = append(o.listeners, listener)
}

func (o *Optimizer) notifyProgress(event ProgressEvent) {
	o.progressMu.Lock()
	listeners := make([]ProgressListener, len(o.listeners))
	copy(listeners, o.listeners)
	o.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// resolve applies the request's overrides to the optimizer defaults. An
// explicit elite_size is taken as given and checked later; the default one
// shrinks to fit a smaller population.
func (o *Optimizer) resolve(req models.OptimizationRequest) Config {
	cfg := o.cfg
	if req.PopulationSize > 0 {
		cfg.PopulationSize = req.PopulationSize
	}
	if req.Generations > 0 {
		cfg.Generations = req.Generations
	}
	if req.EliteSize > 0 {
		cfg.EliteSize = req.EliteSize
	} else if cfg.EliteSize >= cfg.PopulationSize {
		// an inherited elite must leave room for offspring
		cfg.EliteSize = max(cfg.PopulationSize-1, 0)
	}
	if req.TopK > 0 {
		cfg.TopK = req.TopK
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	return cfg
}

// checkRequest reports structural input errors and returns the usable
// catalogue.
func (o *Optimizer) checkRequest(req models.OptimizationRequest, cfg Config) (*catalog.Catalog, error) {
	if len(req.Objectives) == 0 {
		return nil, ErrNoObjectives
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if o.catalog == nil {
		return nil, fmt.Errorf("%w: no catalogue loaded", ErrNoMaterials)
	}
	cat := o.catalog.Without(req.Constraints)
	if len(cat.Binders) == 0 {
		return nil, fmt.Errorf("%w: no binders available", ErrNoMaterials)
	}
	for _, rc := range req.Constraints.RequiredCategories {
		if len(cat.Pool(rc)) == 0 {
			return nil, fmt.Errorf("%w: required category %s has no materials", ErrNoMaterials, rc)
		}
	}
	return cat, nil
}

// Run evolves a population toward the request's objectives and returns the
// best distinct candidates. Structural input errors are returned before any
// generation runs. If ctx is cancelled the run stops at the next generation
// boundary and returns the candidates of the last fully evaluated
// generation with Cancelled set; this is not an error.
func (o *Optimizer) Run(ctx context.Context, req models.OptimizationRequest) (*models.OptimizationResult, error) {
	cfg := o.resolve(req)
	cat, err := o.checkRequest(req, cfg)
	if err != nil {
		runsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()
	rng := rand.New(rand.NewSource(cfg.Seed))
	pool := cat.All()

	log := o.logger.With("run_id", runID)
	log.Info("optimization started",
		"objectives", len(req.Objectives),
		"population", cfg.PopulationSize,
		"generations", cfg.Generations,
		"materials", len(pool),
		"seed", cfg.Seed)

	o.notifyProgress(ProgressEvent{
		EventType:        EventRunStart,
		RunID:            runID,
		TotalGenerations: cfg.Generations,
	})

	result := &models.OptimizationResult{
		RunID:      runID,
		Scope:      req.Constraints.ScopeOrDefault(),
		TargetType: req.TargetType,
		Objectives: req.Objectives,
		History:    []models.GenerationSummary{},
		StartedAt:  start.UTC(),
	}

	population := InitializePopulation(rng, cat, cfg.PopulationSize, cfg.MinComponents, cfg.MaxComponents)
	var last []Evaluation

	for gen := 0; gen < cfg.Generations; gen++ {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}

		scored, err := o.evaluatePopulation(ctx, population, req, cfg.Workers)
		if err != nil {
			// a partially evaluated generation is discarded
			result.Cancelled = true
			break
		}
		sort.SliceStable(scored, func(i, j int) bool { return scored[i].Fitness < scored[j].Fitness })
		last = scored

		summary := summarize(gen, scored)
		result.History = append(result.History, summary)
		result.Generations = gen + 1
		result.Evaluations += len(scored)

		generationsTotal.Inc()
		bestFitness.Set(summary.Best)
		recordEvaluations(scored)

		log.Debug("generation evaluated",
			"generation", gen,
			"best", summary.Best,
			"mean", summary.Mean,
			"predictor_failures", summary.PredictorFailures)
		if summary.PredictorFailures == len(scored) {
			log.Warn("predictor failed for every individual in generation",
				"generation", gen,
				"error", firstPredictorError(scored))
		}

		o.notifyProgress(ProgressEvent{
			EventType:         EventGenerationComplete,
			RunID:             runID,
			Generation:        gen,
			TotalGenerations:  cfg.Generations,
			Best:              summary.Best,
			Mean:              summary.Mean,
			Worst:             summary.Worst,
			PredictorFailures: summary.PredictorFailures,
			DurationMs:        time.Since(start).Milliseconds(),
		})

		if gen == cfg.Generations-1 {
			break
		}
		population = o.breed(rng, scored, pool, cfg)
	}

	result.Candidates = rank(last, cfg.TopK)
	elapsed := time.Since(start)
	result.DurationMs = elapsed.Milliseconds()
	runDuration.Observe(elapsed.Seconds())

	event := EventRunComplete
	outcome := "completed"
	if result.Cancelled {
		event = EventRunCancelled
		outcome = "cancelled"
		log.Info("optimization cancelled", "generations_completed", result.Generations)
	}
	runsTotal.WithLabelValues(outcome).Inc()

	var best float64
	if b := result.Best(); b != nil {
		best = b.Fitness
	}
	log.Info("optimization finished",
		"generations", result.Generations,
		"evaluations", result.Evaluations,
		"candidates", len(result.Candidates),
		"best", best,
		"duration", elapsed)

	o.notifyProgress(ProgressEvent{
		EventType:        event,
		RunID:            runID,
		Generation:       result.Generations,
		TotalGenerations: cfg.Generations,
		Best:             best,
		DurationMs:       result.DurationMs,
	})

	return result, nil
}

// evaluatePopulation scores every individual concurrently. Each worker
// writes only its own slot, and recipes are read-only here. The only error
// is the context's.
func (o *Optimizer) evaluatePopulation(ctx context.Context, population []models.Recipe, req models.OptimizationRequest, workers int) ([]Evaluation, error) {
	scored := make([]Evaluation, len(population))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range population {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scored[i] = o.Evaluate(gctx, population[i], req.Objectives, req.Constraints, req.TargetType)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scored, nil
}

// breed builds the next generation: the elite unchanged, then children of
// tournament-selected parents. scored must be sorted by fitness.
func (o *Optimizer) breed(rng *rand.Rand, scored []Evaluation, pool []models.RecipeComponent, cfg Config) []models.Recipe {
	next := make([]models.Recipe, 0, cfg.PopulationSize)
	for i := 0; i < cfg.EliteSize && i < len(scored); i++ {
		next = append(next, scored[i].Recipe.Clone())
	}

	mp := cfg.mutation()
	for len(next) < cfg.PopulationSize {
		p1 := scored[Select(rng, scored, cfg.TournamentSize)].Recipe
		p2 := scored[Select(rng, scored, cfg.TournamentSize)].Recipe
		child := Crossover(p1, p2, cfg.MaxComponents)
		next = append(next, Mutate(rng, child, pool, mp))
	}
	return next
}

func summarize(gen int, scored []Evaluation) models.GenerationSummary {
	fitness := make([]float64, len(scored))
	failures := 0
	for i, ev := range scored {
		fitness[i] = ev.Fitness
		if ev.PredictorErr != nil {
			failures++
		}
	}
	s := metrics.Summarize(fitness)
	return models.GenerationSummary{
		Generation:        gen,
		Best:              s.Best,
		Mean:              s.Mean,
		Worst:             s.Worst,
		StdDev:            s.StdDev,
		PredictorFailures: failures,
	}
}

func firstPredictorError(scored []Evaluation) error {
	for _, ev := range scored {
		if ev.PredictorErr != nil {
			return ev.PredictorErr
		}
	}
	return nil
}

// rank returns up to k candidates with distinct signatures, in ascending
// fitness order. scored must be sorted by fitness.
func rank(scored []Evaluation, k int) []models.RankedRecipe {
	out := make([]models.RankedRecipe, 0, k)
	seen := make(map[string]bool, len(scored))
	for _, ev := range scored {
		if len(out) >= k {
			break
		}
		sig := Signature(ev.Recipe)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, models.RankedRecipe{
			Rank:                len(out) + 1,
			Recipe:              ev.Recipe.Clone(),
			PredictedProperties: copyPredictions(ev.Predictions),
			Fitness:             ev.Fitness,
			TargetLoss:          ev.TargetLoss,
			ChemicalPenalty:     ev.ChemicalPenalty,
			ProjectPenalty:      ev.ProjectPenalty,
			Validation:          ev.Validation,
			Signature:           sig,
		})
	}
	return out
}

func copyPredictions(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// IsStructural reports whether err is a structural input error, which
// callers surface as a bad request.
func IsStructural(err error) bool {
	return errors.Is(err, ErrNoMaterials) || errors.Is(err, ErrNoObjectives) || errors.Is(err, ErrInvalidParams)
}
