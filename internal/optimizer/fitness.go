package optimizer

import (
	"context"
	"math"
	"sort"

	"github.com/paintlab/paintopt/internal/chemistry"
	"github.com/paintlab/paintopt/internal/features"
	"github.com/paintlab/paintopt/internal/models"
)

// SentinelFitness is the "maximally bad" score given to an empty recipe and
// used as the target loss when nothing could be predicted.
const SentinelFitness = 9999.0

// Business-rule penalty weights.
const (
	costExcessWeight       = 10.0
	prohibitedPenalty      = 500.0
	solidShortfallWeight   = 5.0
	vocExcessWeight        = 0.1
	boundsExcursionWeight  = 10.0
	missingCategoryPenalty = 100.0
)

// Evaluation is the scored form of one recipe.
type Evaluation struct {
	// Recipe is the normalized recipe that was scored.
	Recipe          models.Recipe
	Fitness         float64
	TargetLoss      float64
	ChemicalPenalty float64
	ProjectPenalty  float64
	Predictions     map[string]float64
	Validation      models.ValidationResult
	// PredictorErr is set when the predictor failed for this recipe.
	PredictorErr error
}

// Evaluate scores r: fitness = target loss + chemical penalty + project
// penalty, lower is better. r is not modified. A predictor failure is
// recorded on the result and scored as the sentinel loss.
func (o *Optimizer) Evaluate(ctx context.Context, r models.Recipe, objectives []models.Objective, cs models.ConstraintSet, targetType string) Evaluation {
	if len(r.Components) == 0 {
		return Evaluation{
			Recipe:     r.Clone(),
			Fitness:    SentinelFitness,
			TargetLoss: SentinelFitness,
			Validation: o.validator.Validate(r, targetType),
		}
	}

	norm := chemistry.NormalizeRecipe(r)
	ev := Evaluation{Recipe: norm}

	ev.Validation = o.validator.Validate(norm, targetType)
	ev.ChemicalPenalty = ev.Validation.PenaltyScore

	feats := features.Compute(norm)
	preds, err := o.predictor.Predict(ctx, feats)
	if err != nil {
		ev.PredictorErr = err
		ev.TargetLoss = SentinelFitness
	} else {
		ev.Predictions = preds
		ev.TargetLoss = TargetLoss(objectives, preds)
	}

	ev.ProjectPenalty = ProjectPenalty(norm, feats, ev.Predictions, cs)
	ev.Fitness = ev.TargetLoss + ev.ChemicalPenalty + ev.ProjectPenalty
	return ev
}

// TargetLoss is the weighted mean squared error of the predicted objectives.
// Objectives missing from predictions are skipped. If none is predicted the
// loss is SentinelFitness.
func TargetLoss(objectives []models.Objective, predictions map[string]float64) float64 {
	var sum, weights, plain float64
	matched := 0
	for _, obj := range objectives {
		pred, ok := predictions[obj.Name]
		if !ok || math.IsNaN(pred) {
			continue
		}
		e := ObjectiveError(obj, pred)
		sum += obj.Weight * e
		weights += obj.Weight
		plain += e
		matched++
	}

	switch {
	case matched == 0:
		return SentinelFitness
	case weights <= 0:
		return plain / float64(matched)
	default:
		return sum / weights
	}
}

// ObjectiveError is the squared error of one prediction. Relative error is
// used unless the target is 0. Direction max only counts a shortfall and
// min only counts an excess. An error within the objective's tolerance is
// 0.
func ObjectiveError(obj models.Objective, predicted float64) float64 {
	diff := predicted - obj.Target
	switch obj.Direction {
	case models.DirectionMax:
		if diff > 0 {
			diff = 0
		}
	case models.DirectionMin:
		if diff < 0 {
			diff = 0
		}
	}

	rel := diff
	if obj.Target != 0 {
		rel = diff / obj.Target
	}
	if math.Abs(rel) <= obj.Tolerance {
		return 0
	}
	return rel * rel
}

// ProjectPenalty scores the business rules of cs against a normalized
// recipe, its features and its predictions (which may be nil). Every rule
// applies whenever it is set.
func ProjectPenalty(r models.Recipe, feats, predictions map[string]float64, cs models.ConstraintSet) float64 {
	penalty := 0.0

	if cs.MaxCost != nil {
		if cost := features.UnitCost(r); cost > *cs.MaxCost {
			penalty += (cost - *cs.MaxCost) * costExcessWeight
		}
	}

	for _, c := range r.Components {
		if cs.IsProhibited(c) {
			penalty += prohibitedPenalty
		}
	}

	if cs.MinSolidContent != nil {
		if sc := feats[features.SolidContentWeight]; sc < *cs.MinSolidContent {
			penalty += (*cs.MinSolidContent - sc) * solidShortfallWeight
		}
	}

	if cs.MaxVOC != nil {
		if voc := feats[features.VOCContent]; voc > *cs.MaxVOC {
			penalty += (voc - *cs.MaxVOC) * vocExcessWeight
		}
	}

	names := make([]string, 0, len(cs.ParameterBounds))
	for name := range cs.ParameterBounds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b := cs.ParameterBounds[name]
		v, ok := predictions[name]
		if !ok {
			v, ok = feats[name]
		}
		if !ok {
			continue
		}
		if b.Min != nil && v < *b.Min {
			penalty += boundsExcursionWeight * relativeExcursion(*b.Min-v, *b.Min)
		}
		if b.Max != nil && v > *b.Max {
			penalty += boundsExcursionWeight * relativeExcursion(v-*b.Max, *b.Max)
		}
	}

	for _, cat := range cs.RequiredCategories {
		if !hasCategory(r, cat) {
			penalty += missingCategoryPenalty
		}
	}

	return penalty
}

func relativeExcursion(excess, bound float64) float64 {
	if bound == 0 {
		return excess
	}
	return excess / math.Abs(bound)
}

func hasCategory(r models.Recipe, cat models.MaterialCategory) bool {
	for _, c := range r.Components {
		if c.Category == cat && c.Amount > 0 {
			return true
		}
	}
	return false
}
