package models

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaterialCategory is the coarse chemical role of a raw material.
type MaterialCategory string

const (
	CategoryBinder   MaterialCategory = "binder"
	CategoryPigment  MaterialCategory = "pigment"
	CategoryFiller   MaterialCategory = "filler"
	CategorySolvent  MaterialCategory = "solvent"
	CategoryAdditive MaterialCategory = "additive"
	CategoryOther    MaterialCategory = "other"
)

// Neutral values used when a technical data sheet leaves a property blank.
const (
	DefaultDensity      = 1.0
	DefaultSolidContent = 100.0
	DefaultPH           = 7.0
)

// classifierRule maps raw category keywords onto a category. Rules are
// checked in order, so more specific keywords come first.
type classifierRule struct {
	category MaterialCategory
	keywords []string
}

var classifierRules = []classifierRule{
	{CategoryFiller, []string{"filler", "extender", "calcium carbonate", "talc", "kaolin", "barite", "dolgu"}},
	{CategoryPigment, []string{"pigment", "titanium", "tio2", "iron oxide", "carbon black", "phthalo"}},
	{CategoryBinder, []string{"binder", "resin", "polymer", "alkyd", "acrylic", "epoxy", "polyurethane", "emulsion", "latex"}},
	{CategorySolvent, []string{"solvent", "thinner", "water", "coalescent", "xylene", "butyl acetate", "glycol"}},
}

// additiveFunctions are the additive roles the usage-limit table knows about.
var additiveFunctions = []string{
	"defoamer", "thickener", "dispersant", "drier", "wetting_agent", "biocide", "rheology", "leveling",
}

// ClassifyCategory maps a free-text category (and optionally the material
// name) onto a MaterialCategory plus, for additives, the additive function
// such as "defoamer". It runs once when materials enter the system; nothing
// downstream inspects raw category strings.
func ClassifyCategory(raw, name string) (MaterialCategory, string) {
	key := normalizeKey(raw)

	switch MaterialCategory(key) {
	case CategoryBinder, CategoryPigment, CategoryFiller, CategorySolvent, CategoryOther:
		return MaterialCategory(key), ""
	case CategoryAdditive:
		return CategoryAdditive, additiveFunction(normalizeKey(name))
	}

	if fn := additiveFunction(key); fn != "" {
		return CategoryAdditive, fn
	}

	for _, rule := range classifierRules {
		for _, kw := range rule.keywords {
			if strings.Contains(key, strings.ReplaceAll(kw, " ", "_")) {
				return rule.category, ""
			}
		}
	}

	if key == "" {
		if fn := additiveFunction(normalizeKey(name)); fn != "" {
			return CategoryAdditive, fn
		}
		return CategoryOther, ""
	}
	return CategoryAdditive, ""
}

func additiveFunction(key string) string {
	for _, fn := range additiveFunctions {
		if strings.Contains(key, fn) {
			return fn
		}
	}
	// "wetting agent" is commonly written with a space or hyphen
	if strings.Contains(key, "wetting") {
		return "wetting_agent"
	}
	return ""
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

// RecipeComponent is one raw material in a recipe. Optional technical-data
// fields are pointers; the accessor methods apply the documented neutral
// defaults.
type RecipeComponent struct {
	Code     string           `yaml:"code" json:"code"`
	Name     string           `yaml:"name" json:"name"`
	Category MaterialCategory `yaml:"category" json:"category"`
	// Function is the additive role (defoamer, thickener, ...). Empty for
	// non-additives.
	Function  string  `yaml:"function,omitempty" json:"function,omitempty"`
	Amount    float64 `yaml:"amount" json:"amount"`
	UnitPrice float64 `yaml:"unit_price,omitempty" json:"unit_price,omitempty"`

	Density           *float64 `yaml:"density,omitempty" json:"density,omitempty"`
	SolidContent      *float64 `yaml:"solid_content,omitempty" json:"solid_content,omitempty"`
	PH                *float64 `yaml:"ph,omitempty" json:"ph,omitempty"`
	OHValue           *float64 `yaml:"oh_value,omitempty" json:"oh_value,omitempty"`
	HansenD           *float64 `yaml:"hansen_d,omitempty" json:"hansen_d,omitempty"`
	HansenP           *float64 `yaml:"hansen_p,omitempty" json:"hansen_p,omitempty"`
	HansenH           *float64 `yaml:"hansen_h,omitempty" json:"hansen_h,omitempty"`
	InteractionRadius *float64 `yaml:"interaction_radius,omitempty" json:"interaction_radius,omitempty"`
	MinLimit          *float64 `yaml:"min_limit,omitempty" json:"min_limit,omitempty"`
	MaxLimit          *float64 `yaml:"max_limit,omitempty" json:"max_limit,omitempty"`
	VOC               *float64 `yaml:"voc_g_l,omitempty" json:"voc_g_l,omitempty"`
	OilAbsorption     *float64 `yaml:"oil_absorption,omitempty" json:"oil_absorption,omitempty"`
	GlassTransition   *float64 `yaml:"glass_transition,omitempty" json:"glass_transition,omitempty"`
	EvaporationRate   *float64 `yaml:"evaporation_rate,omitempty" json:"evaporation_rate,omitempty"`
}

// DensityOrDefault returns the declared density, or 1.0 when it is missing
// or not positive.
func (c RecipeComponent) DensityOrDefault() float64 {
	if c.Density == nil || *c.Density <= 0 {
		return DefaultDensity
	}
	return *c.Density
}

// SolidContentOrDefault returns the declared solids percentage, or 100.
func (c RecipeComponent) SolidContentOrDefault() float64 {
	if c.SolidContent == nil || *c.SolidContent < 0 {
		return DefaultSolidContent
	}
	return *c.SolidContent
}

// PHOrDefault returns the declared pH, or neutral 7.
func (c RecipeComponent) PHOrDefault() float64 {
	if c.PH == nil {
		return DefaultPH
	}
	return *c.PH
}

// HasHansen reports whether all three Hansen parameters are declared.
func (c RecipeComponent) HasHansen() bool {
	return c.HansenD != nil && c.HansenP != nil && c.HansenH != nil
}

// DisplayName returns the name, falling back to the code.
func (c RecipeComponent) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Code
}

// Clone returns a deep copy, including the optional fields.
func (c RecipeComponent) Clone() RecipeComponent {
	out := c
	out.Density = clonePtr(c.Density)
	out.SolidContent = clonePtr(c.SolidContent)
	out.PH = clonePtr(c.PH)
	out.OHValue = clonePtr(c.OHValue)
	out.HansenD = clonePtr(c.HansenD)
	out.HansenP = clonePtr(c.HansenP)
	out.HansenH = clonePtr(c.HansenH)
	out.InteractionRadius = clonePtr(c.InteractionRadius)
	out.MinLimit = clonePtr(c.MinLimit)
	out.MaxLimit = clonePtr(c.MaxLimit)
	out.VOC = clonePtr(c.VOC)
	out.OilAbsorption = clonePtr(c.OilAbsorption)
	out.GlassTransition = clonePtr(c.GlassTransition)
	out.EvaporationRate = clonePtr(c.EvaporationRate)
	return out
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Float returns a pointer to v. Handy for optional fields in literals.
func Float(v float64) *float64 {
	return &v
}

// Recipe is an ordered list of components whose amounts are percentages.
// The amounts are expected to sum to about 100 but nothing enforces it at
// construction time.
type Recipe struct {
	Name       string            `yaml:"name,omitempty" json:"name,omitempty"`
	Components []RecipeComponent `yaml:"components" json:"components"`
}

// Len returns the number of components.
func (r Recipe) Len() int {
	return len(r.Components)
}

// TotalAmount sums the component amounts, negatives included.
func (r Recipe) TotalAmount() float64 {
	total := 0.0
	for _, c := range r.Components {
		total += c.Amount
	}
	return total
}

// Clone returns a deep copy that shares no memory with r.
func (r Recipe) Clone() Recipe {
	out := Recipe{Name: r.Name}
	if r.Components != nil {
		out.Components = make([]RecipeComponent, len(r.Components))
		for i, c := range r.Components {
			out.Components[i] = c.Clone()
		}
	}
	return out
}

// Classify rewrites every component category through ClassifyCategory so a
// hand-written recipe can say "resin" or "defoamer".
func (r *Recipe) Classify() {
	for i := range r.Components {
		c := &r.Components[i]
		cat, fn := ClassifyCategory(string(c.Category), c.Name)
		c.Category = cat
		if c.Function == "" {
			c.Function = fn
		}
	}
}

// LoadRecipe loads a recipe from a YAML (or JSON) file and classifies its
// components.
func LoadRecipe(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRecipe(data)
}

// ParseRecipe decodes YAML or JSON recipe bytes.
func ParseRecipe(data []byte) (*Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing recipe: %w", err)
	}
	r.Classify()
	return &r, nil
}
