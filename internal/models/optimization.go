package models

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/paintlab/paintopt/internal/metrics"
)

// OptimizationRequest is the boundary input of an optimization run. Zero
// values for the numeric knobs mean "use the configured default".
type OptimizationRequest struct {
	Objectives     ObjectiveList `yaml:"objectives" json:"objectives" validate:"required,min=1,dive"`
	Constraints    ConstraintSet `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	TargetType     string        `yaml:"target_type,omitempty" json:"target_type,omitempty"`
	PopulationSize int           `yaml:"population_size,omitempty" json:"population_size,omitempty" validate:"gte=0,lte=10000"`
	Generations    int           `yaml:"generations,omitempty" json:"generations,omitempty" validate:"gte=0,lte=10000"`
	EliteSize      int           `yaml:"elite_size,omitempty" json:"elite_size,omitempty" validate:"gte=0"`
	TopK           int           `yaml:"top_k,omitempty" json:"top_k,omitempty" validate:"gte=0,lte=100"`
	Seed           *int64        `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// Validate checks the request's objectives.
func (r *OptimizationRequest) Validate() error {
	if len(r.Objectives) == 0 {
		return fmt.Errorf("at least one objective is required")
	}
	seen := make(map[string]bool, len(r.Objectives))
	for _, o := range r.Objectives {
		if err := o.Validate(); err != nil {
			return err
		}
		if seen[o.Name] {
			return fmt.Errorf("objective %q is listed more than once", o.Name)
		}
		seen[o.Name] = true
	}
	return nil
}

// LoadOptimizationRequest loads a request from a YAML (or JSON) file.
func LoadOptimizationRequest(path string) (*OptimizationRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var req OptimizationRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parsing request: %w", err)
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// RankedRecipe is one candidate returned by the optimizer.
type RankedRecipe struct {
	Rank                int                `json:"rank"`
	Recipe              Recipe             `json:"recipe"`
	PredictedProperties map[string]float64 `json:"predicted_properties"`
	Fitness             float64            `json:"fitness"`
	TargetLoss          float64            `json:"target_loss"`
	ChemicalPenalty     float64            `json:"chemical_penalty"`
	ProjectPenalty      float64            `json:"project_penalty"`
	Validation          ValidationResult   `json:"validation"`
	Signature           string             `json:"signature"`
}

// GenerationSummary describes the fitness distribution of one generation.
type GenerationSummary struct {
	Generation        int     `json:"generation"`
	Best              float64 `json:"best"`
	Mean              float64 `json:"mean"`
	Worst             float64 `json:"worst"`
	StdDev            float64 `json:"std_dev"`
	PredictorFailures int     `json:"predictor_failures"`
}

// OptimizationResult is the boundary output of an optimization run.
type OptimizationResult struct {
	RunID       string              `json:"run_id"`
	Scope       Scope               `json:"scope"`
	TargetType  string              `json:"target_type,omitempty"`
	Objectives  []Objective         `json:"objectives"`
	Candidates  []RankedRecipe      `json:"candidates"`
	History     []GenerationSummary `json:"history"`
	Generations int                 `json:"generations_completed"`
	Evaluations int                 `json:"evaluations"`
	Cancelled   bool                `json:"cancelled,omitempty"`
	DurationMs  int64               `json:"duration_ms"`
	StartedAt   time.Time           `json:"started_at"`
}

// Best returns the top candidate, or nil when there is none.
func (r *OptimizationResult) Best() *RankedRecipe {
	if r == nil || len(r.Candidates) == 0 {
		return nil
	}
	return &r.Candidates[0]
}

// Improvement is the relative drop in best fitness from the first recorded
// generation to the last.
func (r *OptimizationResult) Improvement() float64 {
	if r == nil || len(r.History) < 2 {
		return 0
	}
	return metrics.Improvement(r.History[0].Best, r.History[len(r.History)-1].Best)
}
