package chemistry

import (
	"math"

	"github.com/paintlab/paintopt/internal/models"
)

// NormalizeRecipe returns a copy of r whose amounts are rescaled to sum to
// 100. If the signed total is not greater than zero the copy is returned
// unchanged, negative amounts included, so validation still reports them.
// Otherwise negative amounts are clamped to zero and the positive remainder
// is rescaled.
func NormalizeRecipe(r models.Recipe) models.Recipe {
	out := r.Clone()
	if out.TotalAmount() <= 0 {
		return out
	}

	positive := 0.0
	for i := range out.Components {
		out.Components[i].Amount = max(out.Components[i].Amount, 0)
		positive += out.Components[i].Amount
	}
	factor := 100.0 / positive
	for i := range out.Components {
		out.Components[i].Amount *= factor
	}
	return out
}

// dryVolume is the volume of the solid fraction of a component.
func dryVolume(c models.RecipeComponent) float64 {
	return c.Amount * c.SolidContentOrDefault() / 100 / c.DensityOrDefault()
}

// CalculatePVC returns the pigment volume concentration in percent. Pigments
// and fillers form the numerator, binders join them in the denominator.
// Components with a non-positive amount are ignored.
func CalculatePVC(r models.Recipe) float64 {
	var pigmentVol, binderVol float64
	for _, c := range r.Components {
		if c.Amount <= 0 {
			continue
		}
		switch c.Category {
		case models.CategoryPigment, models.CategoryFiller:
			pigmentVol += dryVolume(c)
		case models.CategoryBinder:
			binderVol += dryVolume(c)
		}
	}

	den := pigmentVol + binderVol
	if den <= 0 {
		return 0
	}
	return pigmentVol / den * 100
}

// HansenPoint is a position in Hansen solubility space.
type HansenPoint struct {
	D, P, H float64
}

// Distance returns Ra between two points.
func (a HansenPoint) Distance(b HansenPoint) float64 {
	dd := a.D - b.D
	dp := a.P - b.P
	dh := a.H - b.H
	return math.Sqrt(4*dd*dd + dp*dp + dh*dh)
}

// SolventBlend returns the amount-weighted Hansen point of the solvents
// that declare all three parameters. ok is false when there is nothing to
// average.
func SolventBlend(solvents []models.RecipeComponent) (HansenPoint, bool) {
	var sum HansenPoint
	total := 0.0
	for _, s := range solvents {
		if !s.HasHansen() || s.Amount <= 0 {
			continue
		}
		sum.D += s.Amount * *s.HansenD
		sum.P += s.Amount * *s.HansenP
		sum.H += s.Amount * *s.HansenH
		total += s.Amount
	}
	if total <= 0 {
		return HansenPoint{}, false
	}
	return HansenPoint{D: sum.D / total, P: sum.P / total, H: sum.H / total}, true
}

// CalculateHansenDistance returns Ra between a binder and the weighted
// blend of the given solvents. It is 0 when the binder has no Hansen
// parameters or no solvent contributes to the blend.
func CalculateHansenDistance(binder models.RecipeComponent, solvents []models.RecipeComponent) float64 {
	if !binder.HasHansen() {
		return 0
	}
	blend, ok := SolventBlend(solvents)
	if !ok {
		return 0
	}
	b := HansenPoint{D: *binder.HansenD, P: *binder.HansenP, H: *binder.HansenH}
	return b.Distance(blend)
}

// EstimatePH is a coarse linear approximation of the net pH of a
// water-based recipe. Components without a declared pH count as neutral.
func EstimatePH(r models.Recipe) float64 {
	net := 0.0
	for _, c := range r.Components {
		if c.Amount <= 0 {
			continue
		}
		net += c.Amount * (c.PHOrDefault() - 7)
	}
	return 7 + net/100
}

var waterNames = map[string]bool{
	"water":           true,
	"deionized water": true,
	"deionised water": true,
	"di water":        true,
	"su":              true,
	"deiyonize su":    true,
}

// IsWaterBased reports whether the recipe contains water as a named solvent.
func IsWaterBased(r models.Recipe) bool {
	for _, c := range r.Components {
		if c.Category != models.CategorySolvent && c.Function != "water" {
			continue
		}
		if c.Function == "water" || waterNames[normalizeName(c.Name)] {
			return true
		}
	}
	return false
}
