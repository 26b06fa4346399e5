// Package service bundles the collaborators that the CLI, the JSON-RPC
// server and the HTTP API share when they validate or optimize recipes.
package service

import (
	"log/slog"

	"github.com/paintlab/paintopt/internal/catalog"
	"github.com/paintlab/paintopt/internal/chemistry"
	"github.com/paintlab/paintopt/internal/features"
	"github.com/paintlab/paintopt/internal/models"
	"github.com/paintlab/paintopt/internal/optimizer"
	"github.com/paintlab/paintopt/internal/predictor"
)

// Backend holds what the front ends need to validate and optimize recipes.
type Backend struct {
	Predictor predictor.Predictor
	Catalog   *catalog.Catalog
	Validator *chemistry.Validator
	Optimizer optimizer.Config
	Logger    *slog.Logger
}

// WithDefaults fills missing pieces with the linear predictor and the
// built-in catalogue, validator and optimizer parameters.
func (b Backend) WithDefaults() Backend {
	if b.Predictor == nil {
		b.Predictor = predictor.NewLinearPredictor(predictor.DefaultLinearModels())
	}
	if b.Catalog == nil {
		b.Catalog = catalog.Default()
	}
	if b.Validator == nil {
		b.Validator = chemistry.Default()
	}
	if b.Optimizer == (optimizer.Config{}) {
		b.Optimizer = optimizer.DefaultConfig()
	}
	if b.Logger == nil {
		b.Logger = slog.Default()
	}
	return b
}

// NewOptimizer returns a fresh optimizer for one run, so progress
// listeners registered on it never see another run's events.
func (b Backend) NewOptimizer() *optimizer.Optimizer {
	return optimizer.New(b.Predictor, b.Catalog,
		optimizer.WithConfig(b.Optimizer),
		optimizer.WithValidator(b.Validator),
		optimizer.WithLogger(b.Logger))
}

// RecipeReport is the validation result of a recipe plus the measured
// values behind it.
type RecipeReport struct {
	models.ValidationResult
	PVC          float64 `json:"pvc"`
	PH           float64 `json:"ph"`
	WaterBased   bool    `json:"water_based"`
	PHSuggestion string  `json:"ph_suggestion,omitempty"`
	// SolidContent is the solids weight percentage, VOC the estimated g/L
	// and UnitCost the price per unit charged against max_cost.
	SolidContent float64 `json:"solid_content"`
	VOC          float64 `json:"voc"`
	UnitCost     float64 `json:"unit_cost"`
}

// Inspect validates r against targetType and reports the measured values
// the validator and the project constraints look at.
func (b Backend) Inspect(r models.Recipe, targetType string) RecipeReport {
	v := b.Validator
	if v == nil {
		v = chemistry.Default()
	}
	rep := RecipeReport{
		ValidationResult: v.Validate(r, targetType),
		PVC:              chemistry.CalculatePVC(r),
		PH:               chemistry.EstimatePH(r),
		WaterBased:       chemistry.IsWaterBased(r),
		SolidContent:     features.SolidContent(r),
		VOC:              features.VOC(r),
		UnitCost:         features.UnitCost(r),
	}
	if rep.WaterBased {
		if stable, suggestion := v.CheckPHStability(r); !stable {
			rep.PHSuggestion = suggestion
		}
	}
	return rep
}
