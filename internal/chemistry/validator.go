// Package chemistry scores recipes for physical and chemical plausibility.
// Every check is a pure function of the recipe and the configured limits;
// nothing here performs I/O or returns an error.
package chemistry

import (
	"fmt"
	"math"
	"strings"

	"github.com/paintlab/paintopt/internal/models"
)

// Penalty weights applied on top of the per-issue charges.
const (
	massImbalanceWeight = 0.5
	pvcOverWeight       = 2.0
	pvcUnderWeight      = 1.0
	usageExcessWeight   = 5.0
	phUnstablePenalty   = 10.0
	hansenExcessWeight  = 3.0

	errorPenalty   = 50.0
	warningPenalty = 5.0
)

// Validator runs the validity checks against a fixed set of limits. It is
// safe for concurrent use.
type Validator struct {
	limits Limits
}

// NewValidator returns a Validator using limits, with unset fields taken
// from DefaultLimits.
func NewValidator(limits Limits) *Validator {
	return &Validator{limits: limits.WithDefaults()}
}

// Default returns a Validator with the built-in limits.
func Default() *Validator {
	return NewValidator(Limits{})
}

// Limits returns the effective limits.
func (v *Validator) Limits() Limits {
	return v.limits
}

// report accumulates issues and the per-check penalty of one validation.
type report struct {
	errors   []models.ValidationIssue
	warnings []models.ValidationIssue
	penalty  float64
}

func (r *report) addError(code, msg, component string) {
	r.errors = append(r.errors, models.ValidationIssue{
		Code: code, Message: msg, Severity: models.SeverityError, Component: component,
	})
}

func (r *report) addWarning(code, msg, component string) {
	r.warnings = append(r.warnings, models.ValidationIssue{
		Code: code, Message: msg, Severity: models.SeverityWarning, Component: component,
	})
}

func (r *report) result() models.ValidationResult {
	errs := r.errors
	if errs == nil {
		errs = []models.ValidationIssue{}
	}
	warns := r.warnings
	if warns == nil {
		warns = []models.ValidationIssue{}
	}
	return models.ValidationResult{
		IsValid:      len(errs) == 0,
		Errors:       errs,
		Warnings:     warns,
		PenaltyScore: r.penalty + errorPenalty*float64(len(errs)) + warningPenalty*float64(len(warns)),
	}
}

// Validate runs every check in order: mass balance, negative amounts, PVC
// against the target product type, usage limits, pH stability of
// water-based systems, and Hansen compatibility of each binder with the
// solvent blend. targetType may be empty.
func (v *Validator) Validate(r models.Recipe, targetType string) models.ValidationResult {
	var rep report

	if len(r.Components) == 0 {
		rep.addError(models.CodeEmptyRecipe, "recipe has no components", "")
		return rep.result()
	}

	v.checkMassBalance(r, &rep)
	v.checkNegativeAmounts(r, &rep)
	if targetType != "" {
		v.checkPVC(r, targetType, &rep)
	}
	v.checkUsageLimits(r, &rep)
	v.checkPH(r, &rep)
	v.checkHansen(r, &rep)

	return rep.result()
}

// PenaltyScore returns only the penalty of Validate.
func (v *Validator) PenaltyScore(r models.Recipe, targetType string) float64 {
	return v.Validate(r, targetType).PenaltyScore
}

// CheckPHStability estimates the pH of the recipe and reports whether it
// lies within the configured band. When it does not, suggestion names the
// remedy.
func (v *Validator) CheckPHStability(r models.Recipe) (stable bool, suggestion string) {
	ph := EstimatePH(r)
	switch {
	case ph < v.limits.PHMin:
		return false, fmt.Sprintf("pH too low (~%.1f), raise it with ammonia or AMP", ph)
	case ph > v.limits.PHMax:
		return false, fmt.Sprintf("pH too high (~%.1f), lower it with a mild acid", ph)
	}
	return true, ""
}

func (v *Validator) checkMassBalance(r models.Recipe, rep *report) {
	total := r.TotalAmount()
	dev := math.Abs(total - 100)
	if dev > v.limits.MassTolerance {
		rep.addWarning(models.CodeMassImbalance,
			fmt.Sprintf("total amount is %.1f%%, expected 100%%", total), "")
		rep.penalty += dev * massImbalanceWeight
	}
}

func (v *Validator) checkNegativeAmounts(r models.Recipe, rep *report) {
	for _, c := range r.Components {
		if c.Amount < 0 {
			rep.addError(models.CodeNegativeAmount,
				fmt.Sprintf("%s has a negative amount (%.2f)", c.DisplayName(), c.Amount), c.DisplayName())
		}
	}
}

func (v *Validator) checkPVC(r models.Recipe, targetType string, rep *report) {
	band, ok := v.limits.pvcBand(targetType)
	if !ok {
		return
	}
	pvc := CalculatePVC(r)

	if band.Max != nil && pvc > *band.Max {
		rep.addError(models.CodePVCTooHigh,
			fmt.Sprintf("PVC %.1f%% is too high for %s, max %g%%", pvc, targetType, *band.Max), "")
		rep.penalty += (pvc - *band.Max) * pvcOverWeight
	}
	if band.Min != nil && pvc < *band.Min {
		rep.addWarning(models.CodePVCTooLow,
			fmt.Sprintf("PVC %.1f%% is too low for %s, min %g%%", pvc, targetType, *band.Min), "")
		rep.penalty += (*band.Min - pvc) * pvcUnderWeight
	}
}

func (v *Validator) checkUsageLimits(r models.Recipe, rep *report) {
	for _, c := range r.Components {
		ul, ok := v.limits.usageLimit(c)
		if !ok {
			continue
		}
		name := c.DisplayName()

		if ul.Max != nil && c.Amount > *ul.Max {
			msg := fmt.Sprintf("%s: %.2f%% exceeds max %g%%", name, c.Amount, *ul.Max)
			if ul.Risk != "" {
				msg += ", " + ul.Risk
			}
			rep.addWarning(models.CodeLimitExceeded, msg, name)
			rep.penalty += (c.Amount - *ul.Max) * usageExcessWeight
		}
		if ul.Min != nil && c.Amount > 0 && c.Amount < *ul.Min {
			rep.addWarning(models.CodeBelowMin,
				fmt.Sprintf("%s: %.2f%% is below min %g%%", name, c.Amount, *ul.Min), name)
		}
	}
}

func (v *Validator) checkPH(r models.Recipe, rep *report) {
	if !IsWaterBased(r) {
		return
	}
	if stable, suggestion := v.CheckPHStability(r); !stable {
		rep.addWarning(models.CodePHUnstable, suggestion, "")
		rep.penalty += phUnstablePenalty
	}
}

func (v *Validator) checkHansen(r models.Recipe, rep *report) {
	var binders, solvents []models.RecipeComponent
	for _, c := range r.Components {
		switch c.Category {
		case models.CategoryBinder:
			binders = append(binders, c)
		case models.CategorySolvent:
			solvents = append(solvents, c)
		}
	}
	if len(binders) == 0 || len(solvents) == 0 {
		return
	}

	for _, b := range binders {
		if !b.HasHansen() {
			continue
		}
		ro := v.limits.DefaultInteractionRadius
		if b.InteractionRadius != nil && *b.InteractionRadius > 0 {
			ro = *b.InteractionRadius
		}
		ra := CalculateHansenDistance(b, solvents)
		if ra > ro {
			rep.addWarning(models.CodeHansenIncompat,
				fmt.Sprintf("%s may precipitate in the solvent blend, Ra=%.1f > Ro=%.1f", b.DisplayName(), ra, ro),
				b.DisplayName())
			rep.penalty += (ra - ro) * hansenExcessWeight
		}
	}
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

var defaultValidator = Default()

// ValidateRecipe validates r with the built-in limits.
func ValidateRecipe(r models.Recipe, targetType string) models.ValidationResult {
	return defaultValidator.Validate(r, targetType)
}

// PenaltyScore returns the penalty of r under the built-in limits.
func PenaltyScore(r models.Recipe, targetType string) float64 {
	return defaultValidator.PenaltyScore(r, targetType)
}
