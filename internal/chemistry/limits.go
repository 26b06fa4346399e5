package chemistry

import (
	"strings"

	"github.com/paintlab/paintopt/internal/models"
)

// UsageLimit bounds the percentage of one kind of material in a recipe.
type UsageLimit struct {
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	// Risk is appended to the warning when Max is exceeded.
	Risk string `yaml:"risk,omitempty" json:"risk,omitempty"`
}

// Limits holds every tunable threshold of the validity checks. Zero values
// are replaced by the defaults in DefaultLimits when a Validator is built.
type Limits struct {
	// PVC bands keyed by target product type (high_gloss, matte, ...).
	PVC map[string]models.Bounds `yaml:"pvc_limits,omitempty" json:"pvc_limits,omitempty"`
	// Usage limits keyed by additive function or category.
	Usage map[string]UsageLimit `yaml:"material_limits,omitempty" json:"material_limits,omitempty"`

	PHMin                    float64 `yaml:"ph_min,omitempty" json:"ph_min,omitempty"`
	PHMax                    float64 `yaml:"ph_max,omitempty" json:"ph_max,omitempty"`
	MassTolerance            float64 `yaml:"mass_tolerance,omitempty" json:"mass_tolerance,omitempty"`
	DefaultInteractionRadius float64 `yaml:"default_interaction_radius,omitempty" json:"default_interaction_radius,omitempty"`
}

// DefaultLimits returns the built-in thresholds.
func DefaultLimits() Limits {
	return Limits{
		PVC: map[string]models.Bounds{
			"high_gloss": {Max: models.Float(25)},
			"semi_gloss": {Max: models.Float(35)},
			"satin":      {Max: models.Float(45)},
			"matte":      {Min: models.Float(40), Max: models.Float(85)},
		},
		Usage: map[string]UsageLimit{
			"defoamer":      {Max: models.Float(0.5), Risk: "risk of cratering"},
			"thickener":     {Max: models.Float(2.0), Risk: "risk of poor flow"},
			"dispersant":    {Max: models.Float(1.0), Risk: "reduces water resistance"},
			"drier":         {Max: models.Float(0.2), Risk: "risk of early skinning"},
			"wetting_agent": {Max: models.Float(0.5), Risk: "risk of foaming"},
			"biocide":       {Max: models.Float(0.3), Risk: "toxicity limit"},
		},
		PHMin:                    8.0,
		PHMax:                    9.5,
		MassTolerance:            5.0,
		DefaultInteractionRadius: 8.0,
	}
}

// WithDefaults fills unset fields from DefaultLimits. Map entries given by
// the caller replace the default entry of the same key; other default
// entries are kept.
func (l Limits) WithDefaults() Limits {
	def := DefaultLimits()
	out := l

	out.PVC = make(map[string]models.Bounds, len(def.PVC)+len(l.PVC))
	for k, v := range def.PVC {
		out.PVC[k] = v
	}
	for k, v := range l.PVC {
		out.PVC[normalizeType(k)] = v
	}

	out.Usage = make(map[string]UsageLimit, len(def.Usage)+len(l.Usage))
	for k, v := range def.Usage {
		out.Usage[k] = v
	}
	for k, v := range l.Usage {
		out.Usage[normalizeType(k)] = v
	}

	if out.PHMin == 0 {
		out.PHMin = def.PHMin
	}
	if out.PHMax == 0 {
		out.PHMax = def.PHMax
	}
	if out.MassTolerance == 0 {
		out.MassTolerance = def.MassTolerance
	}
	if out.DefaultInteractionRadius == 0 {
		out.DefaultInteractionRadius = def.DefaultInteractionRadius
	}
	return out
}

// pvcBand returns the PVC band for a product type. Unknown types have none.
func (l Limits) pvcBand(targetType string) (models.Bounds, bool) {
	b, ok := l.PVC[normalizeType(targetType)]
	return b, ok
}

// usageLimit resolves the limit for a component: its own min/max if either
// is set, otherwise the table entry for its additive function, then for its
// category.
func (l Limits) usageLimit(c models.RecipeComponent) (UsageLimit, bool) {
	if c.MinLimit != nil || c.MaxLimit != nil {
		return UsageLimit{Min: c.MinLimit, Max: c.MaxLimit, Risk: "usage limit exceeded"}, true
	}
	if c.Function != "" {
		if ul, ok := l.Usage[normalizeType(c.Function)]; ok {
			return ul, true
		}
	}
	ul, ok := l.Usage[string(c.Category)]
	return ul, ok
}

func normalizeType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}
