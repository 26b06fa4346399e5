// Package features derives the mixture-level feature vector that the
// property predictor consumes.
package features

import (
	"github.com/paintlab/paintopt/internal/models"
)

// Feature names.
const (
	PVC                = "pvc"
	CPVCEstimated      = "cpvc_estimated"
	LambdaRatio        = "lambda_ratio"
	SolidContentWeight = "solid_content_weight"
	SolidContentVolume = "solid_content_volume"
	BinderPigmentRatio = "binder_pigment_ratio"
	PigmentBinderRatio = "pigment_binder_ratio"
	WeightedDensity    = "weighted_avg_density"
	WeightedTg         = "weighted_avg_tg"
	WeightedOHValue    = "weighted_avg_oh_value"
	VOCContent         = "voc_content"
	SolventRatio       = "solvent_ratio"
	AvgEvaporationRate = "avg_evaporation_rate"
	BinderRatio        = "binder_ratio"
	PigmentRatio       = "pigment_ratio"
	AdditiveRatio      = "additive_ratio"
	TheoreticalCost    = "theoretical_cost"
)

// Names lists every feature Compute produces, in a stable order.
var Names = []string{
	PVC, CPVCEstimated, LambdaRatio,
	SolidContentWeight, SolidContentVolume, BinderPigmentRatio, PigmentBinderRatio,
	WeightedDensity, WeightedTg, WeightedOHValue,
	VOCContent, SolventRatio, AvgEvaporationRate,
	BinderRatio, PigmentRatio, AdditiveRatio,
	TheoreticalCost,
}

// DefaultUnitPrice is charged per unit of a material with no declared price,
// both in the theoretical_cost feature and in UnitCost.
const DefaultUnitPrice = 10.0

// Neutral values for technical data the feature model needs but a data
// sheet may omit.
const (
	defaultOilAbsorption   = 20.0
	defaultGlassTransition = 25.0
	defaultEvaporationRate = 1.0

	// Stieg approximation of CPVC assumes an average pigment density.
	avgPigmentDensity = 2.5
	linseedOilFactor  = 93.5
)

type group int

const (
	groupBinder group = iota
	groupPigment
	groupSolvent
	groupAdditive
)

func groupOf(c models.MaterialCategory) group {
	switch c {
	case models.CategoryBinder:
		return groupBinder
	case models.CategoryPigment, models.CategoryFiller:
		return groupPigment
	case models.CategorySolvent:
		return groupSolvent
	default:
		return groupAdditive
	}
}

func orDefault(p *float64, def float64) float64 {
	if p == nil || *p == 0 {
		return def
	}
	return *p
}

// Compute returns the mixture features of r. Every name in Names is present;
// a recipe with no positive amount yields all zeros.
func Compute(r models.Recipe) map[string]float64 {
	out := make(map[string]float64, len(Names))
	for _, n := range Names {
		out[n] = 0
	}

	total := 0.0
	for _, c := range r.Components {
		if c.Amount > 0 {
			total += c.Amount
		}
	}
	if total <= 0 {
		return out
	}

	var (
		amounts      [4]float64
		solidVolumes [4]float64
		solidMass    float64
		totalVolume  float64
		density      float64
		tg, oh       float64
		evap         float64
		voc          float64
		cost         float64
		oilAbs       float64
	)

	for _, c := range r.Components {
		if c.Amount <= 0 {
			continue
		}
		g := groupOf(c.Category)
		ratio := c.Amount / total
		d := c.DensityOrDefault()
		solids := c.SolidContentOrDefault() / 100
		volume := c.Amount / d

		amounts[g] += c.Amount
		solidVolumes[g] += volume * solids
		solidMass += c.Amount * solids
		totalVolume += volume
		density += d * ratio
		cost += unitPrice(c) * ratio

		switch g {
		case groupBinder:
			tg += orDefault(c.GlassTransition, defaultGlassTransition) * c.Amount
			oh += orDefault(c.OHValue, 0) * c.Amount
		case groupPigment:
			oilAbs += orDefault(c.OilAbsorption, defaultOilAbsorption) * c.Amount
		case groupSolvent:
			evap += orDefault(c.EvaporationRate, defaultEvaporationRate) * c.Amount
			voc += orDefault(c.VOC, 0) * volume / 1000
		}
	}

	out[BinderRatio] = amounts[groupBinder] / total
	out[PigmentRatio] = amounts[groupPigment] / total
	out[SolventRatio] = amounts[groupSolvent] / total
	out[AdditiveRatio] = amounts[groupAdditive] / total

	if amounts[groupPigment] > 0 {
		out[BinderPigmentRatio] = amounts[groupBinder] / amounts[groupPigment]
	}
	if amounts[groupBinder] > 0 {
		out[PigmentBinderRatio] = amounts[groupPigment] / amounts[groupBinder]
	}

	out[SolidContentWeight] = solidMass / total * 100

	if vp, vb := solidVolumes[groupPigment], solidVolumes[groupBinder]; vp+vb > 0 {
		out[PVC] = vp / (vp + vb) * 100
	}

	if amounts[groupPigment] > 0 {
		avgOA := oilAbs / amounts[groupPigment]
		cpvc := 100 / (1 + avgOA*avgPigmentDensity/linseedOilFactor)
		out[CPVCEstimated] = cpvc
		if cpvc > 0 {
			out[LambdaRatio] = out[PVC] / cpvc
		}
	}

	if totalVolume > 0 {
		dry := solidVolumes[groupBinder] + solidVolumes[groupPigment] + solidVolumes[groupAdditive]
		out[SolidContentVolume] = dry / totalVolume * 100
		out[VOCContent] = voc / totalVolume * 1000
	}

	out[WeightedDensity] = density
	if amounts[groupBinder] > 0 {
		out[WeightedTg] = tg / amounts[groupBinder]
		out[WeightedOHValue] = oh / amounts[groupBinder]
	}
	if amounts[groupSolvent] > 0 {
		out[AvgEvaporationRate] = evap / amounts[groupSolvent]
	}
	out[TheoreticalCost] = cost

	return out
}

func unitPrice(c models.RecipeComponent) float64 {
	if c.UnitPrice > 0 {
		return c.UnitPrice
	}
	return DefaultUnitPrice
}

// UnitCost is the approximate cost of one unit of paint: the
// amount-weighted mean unit price over the positive amounts, with unpriced
// materials at DefaultUnitPrice. It equals the theoretical_cost feature.
func UnitCost(r models.Recipe) float64 {
	return Compute(r)[TheoreticalCost]
}

// SolidContent is the weight percentage of solids in r.
func SolidContent(r models.Recipe) float64 {
	return Compute(r)[SolidContentWeight]
}

// VOC is the estimated volatile organic content of r in g/L.
func VOC(r models.Recipe) float64 {
	return Compute(r)[VOCContent]
}
