package optimizer

import (
	"errors"
	"fmt"
)

// Structural input errors. Run returns them before generation 0.
var (
	ErrNoMaterials   = errors.New("no materials available")
	ErrNoObjectives  = errors.New("no objectives given")
	ErrInvalidParams = errors.New("invalid optimizer parameters")
)

// Config holds the genetic-algorithm parameters.
type Config struct {
	PopulationSize         int     `yaml:"population_size,omitempty" json:"population_size,omitempty"`
	Generations            int     `yaml:"generations,omitempty" json:"generations,omitempty"`
	EliteSize              int     `yaml:"elite_size,omitempty" json:"elite_size,omitempty"`
	TournamentSize         int     `yaml:"tournament_size,omitempty" json:"tournament_size,omitempty"`
	MutationRate           float64 `yaml:"mutation_rate,omitempty" json:"mutation_rate,omitempty"`
	StructuralMutationRate float64 `yaml:"structural_mutation_rate,omitempty" json:"structural_mutation_rate,omitempty"`
	MinComponents          int     `yaml:"min_components,omitempty" json:"min_components,omitempty"`
	MaxComponents          int     `yaml:"max_components,omitempty" json:"max_components,omitempty"`
	TopK                   int     `yaml:"top_k,omitempty" json:"top_k,omitempty"`
	// Workers bounds concurrent fitness evaluations within a generation.
	Workers int   `yaml:"workers,omitempty" json:"workers,omitempty"`
	Seed    int64 `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// DefaultConfig returns the standard parameters.
func DefaultConfig() Config {
	return Config{
		PopulationSize:         50,
		Generations:            30,
		EliteSize:              5,
		TournamentSize:         3,
		MutationRate:           0.1,
		StructuralMutationRate: 0.05,
		MinComponents:          2,
		MaxComponents:          6,
		TopK:                   5,
		Workers:                4,
		Seed:                   42,
	}
}

// Validate checks that the parameters describe a runnable search.
func (c Config) Validate() error {
	var errs []error
	if c.PopulationSize < 2 {
		errs = append(errs, fmt.Errorf("population_size must be at least 2, got %d", c.PopulationSize))
	}
	if c.Generations < 1 {
		errs = append(errs, fmt.Errorf("generations must be at least 1, got %d", c.Generations))
	}
	if c.EliteSize < 0 || c.EliteSize >= c.PopulationSize {
		errs = append(errs, fmt.Errorf("elite_size must be in [0, population_size), got %d", c.EliteSize))
	}
	if c.TournamentSize < 1 {
		errs = append(errs, fmt.Errorf("tournament_size must be at least 1, got %d", c.TournamentSize))
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		errs = append(errs, fmt.Errorf("mutation_rate must be in [0, 1], got %g", c.MutationRate))
	}
	if c.StructuralMutationRate < 0 || c.StructuralMutationRate > 1 {
		errs = append(errs, fmt.Errorf("structural_mutation_rate must be in [0, 1], got %g", c.StructuralMutationRate))
	}
	if c.MinComponents < 1 || c.MaxComponents < c.MinComponents {
		errs = append(errs, fmt.Errorf("component bounds [%d, %d] are invalid", c.MinComponents, c.MaxComponents))
	}
	if c.TopK < 1 {
		errs = append(errs, fmt.Errorf("top_k must be at least 1, got %d", c.TopK))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidParams, errors.Join(errs...))
	}
	return nil
}

// mutation returns the mutation parameters of c.
func (c Config) mutation() MutationParams {
	return MutationParams{
		AmountRate:     c.MutationRate,
		StructuralRate: c.StructuralMutationRate,
		MinComponents:  c.MinComponents,
		MaxComponents:  c.MaxComponents,
	}
}
