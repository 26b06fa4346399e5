package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// Direction says how a predicted property is compared with its target.
type Direction string

const (
	DirectionMax    Direction = "max"
	DirectionMin    Direction = "min"
	DirectionTarget Direction = "target"
)

// Objective is one target property of an optimization run.
type Objective struct {
	Name      string    `yaml:"name" json:"target_name" mapstructure:"name"`
	Target    float64   `yaml:"target" json:"target_value" mapstructure:"target"`
	Weight    float64   `yaml:"weight" json:"weight" mapstructure:"weight"`
	Direction Direction `yaml:"direction" json:"direction" mapstructure:"direction"`
	// Tolerance is a relative error below which the objective counts as met.
	Tolerance float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty" mapstructure:"tolerance"`
}

// Validate checks the objective fields.
func (o Objective) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("objective name is required")
	}
	switch o.Direction {
	case DirectionMax, DirectionMin, DirectionTarget:
	default:
		return fmt.Errorf("objective %q: direction must be max, min or target, got %q", o.Name, o.Direction)
	}
	if o.Weight < 0 {
		return fmt.Errorf("objective %q: weight must not be negative", o.Name)
	}
	if o.Tolerance < 0 {
		return fmt.Errorf("objective %q: tolerance must not be negative", o.Name)
	}
	return nil
}

// ObjectiveList decodes either a list of objectives or a map keyed by
// property name whose values are a bare number (short form) or an object
// with target/weight/direction/tolerance (long form).
type ObjectiveList []Objective

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *ObjectiveList) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseObjectives(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *ObjectiveList) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseObjectives(raw)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// objectiveSpec is the long form of an objective. "value" is accepted as
// an alias of "target".
type objectiveSpec struct {
	Name       string   `mapstructure:"name"`
	TargetName string   `mapstructure:"target_name"`
	Target     *float64 `mapstructure:"target"`
	Value      *float64 `mapstructure:"value"`
	TargetVal  *float64 `mapstructure:"target_value"`
	Weight     *float64 `mapstructure:"weight"`
	Direction  string   `mapstructure:"direction"`
	Tolerance  float64  `mapstructure:"tolerance"`
}

// ParseObjectives converts loosely-typed objective input into objectives
// with defaults applied (weight 1, direction target). Map input is sorted
// by property name so runs are reproducible.
func ParseObjectives(raw any) (ObjectiveList, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)

		out := make(ObjectiveList, 0, len(v))
		for _, name := range names {
			obj, err := parseObjective(name, v[name])
			if err != nil {
				return nil, err
			}
			out = append(out, obj)
		}
		return out, nil
	case []any:
		out := make(ObjectiveList, 0, len(v))
		for i, item := range v {
			obj, err := parseObjective("", item)
			if err != nil {
				return nil, fmt.Errorf("objective %d: %w", i, err)
			}
			out = append(out, obj)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("objectives must be a map or a list, got %T", raw)
	}
}

func parseObjective(name string, raw any) (Objective, error) {
	obj := Objective{Name: name, Weight: 1, Direction: DirectionTarget}

	if _, isMap := raw.(map[string]any); !isMap {
		var target float64
		if err := weakDecode(raw, &target); err != nil {
			return Objective{}, fmt.Errorf("objective %q: %w", name, err)
		}
		obj.Target = target
		return obj, obj.Validate()
	}

	var spec objectiveSpec
	if err := weakDecode(raw, &spec); err != nil {
		return Objective{}, fmt.Errorf("objective %q: %w", name, err)
	}

	switch {
	case spec.Name != "":
		obj.Name = spec.Name
	case spec.TargetName != "":
		obj.Name = spec.TargetName
	}
	switch {
	case spec.Target != nil:
		obj.Target = *spec.Target
	case spec.Value != nil:
		obj.Target = *spec.Value
	case spec.TargetVal != nil:
		obj.Target = *spec.TargetVal
	default:
		return Objective{}, fmt.Errorf("objective %q: target is required", obj.Name)
	}
	if spec.Weight != nil {
		obj.Weight = *spec.Weight
	}
	if spec.Direction != "" {
		obj.Direction = Direction(strings.ToLower(spec.Direction))
	}
	obj.Tolerance = spec.Tolerance

	return obj, obj.Validate()
}

func weakDecode(input, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// Scope says whether constraints come from global defaults or a project.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProject Scope = "project"
)

// Bounds is an inclusive range; either side may be open.
type Bounds struct {
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// ConstraintSet holds the business rules of an optimization run.
type ConstraintSet struct {
	Scope           Scope             `yaml:"scope,omitempty" json:"scope,omitempty"`
	ParameterBounds map[string]Bounds `yaml:"parameter_bounds,omitempty" json:"parameter_bounds,omitempty"`
	// MaxCost is the ceiling on the approximate unit cost of the recipe.
	MaxCost               *float64 `yaml:"max_cost,omitempty" json:"max_cost,omitempty"`
	ProhibitedMaterialIDs []string `yaml:"prohibited_material_ids,omitempty" json:"prohibited_material_ids,omitempty"`
	MinSolidContent       *float64 `yaml:"min_solid_content,omitempty" json:"min_solid_content,omitempty"`
	// MaxVOC is in g/L of wet paint.
	MaxVOC             *float64           `yaml:"max_voc,omitempty" json:"max_voc,omitempty"`
	RequiredCategories []MaterialCategory `yaml:"required_categories,omitempty" json:"required_categories,omitempty"`
}

// ScopeOrDefault returns the scope, defaulting to global.
func (c ConstraintSet) ScopeOrDefault() Scope {
	if c.Scope == "" {
		return ScopeGlobal
	}
	return c.Scope
}

// IsProhibited reports whether the component's name or code is on the
// prohibited list. Matching ignores case.
func (c ConstraintSet) IsProhibited(comp RecipeComponent) bool {
	name := strings.ToLower(strings.TrimSpace(comp.Name))
	code := strings.ToLower(strings.TrimSpace(comp.Code))
	for _, id := range c.ProhibitedMaterialIDs {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		if id == name || id == code {
			return true
		}
	}
	return false
}
