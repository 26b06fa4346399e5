package predictor

import (
	"context"
	"sort"
)

// Linear is one property model: intercept plus a weighted sum of features.
type Linear struct {
	Intercept float64            `yaml:"intercept" json:"intercept"`
	Weights   map[string]float64 `yaml:"weights" json:"weights"`
	// Min and Max clamp the prediction when set.
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// LinearPredictor is an offline predictor built from per-property linear
// coefficients. It needs no service and is deterministic.
type LinearPredictor struct {
	models map[string]Linear
}

// NewLinearPredictor returns a predictor for the given property models.
func NewLinearPredictor(models map[string]Linear) *LinearPredictor {
	cp := make(map[string]Linear, len(models))
	for k, v := range models {
		cp[k] = v
	}
	return &LinearPredictor{models: cp}
}

// DefaultLinearModels returns a small coefficient set that maps the mixture
// features onto common paint properties. It is a rough stand-in for a
// trained model and is only meant for demos and tests.
func DefaultLinearModels() map[string]Linear {
	return map[string]Linear{
		"total_cost": {
			Weights: map[string]float64{"theoretical_cost": 1},
		},
		"gloss": {
			Intercept: 95,
			Weights:   map[string]float64{"pvc": -1.6, "binder_ratio": 10},
			Min:       floatPtr(0),
			Max:       floatPtr(100),
		},
		"opacity": {
			Intercept: 70,
			Weights:   map[string]float64{"pigment_ratio": 60, "solid_content_volume": 0.1},
			Min:       floatPtr(0),
			Max:       floatPtr(100),
		},
		"hardness": {
			Intercept: 20,
			Weights:   map[string]float64{"weighted_avg_tg": 0.8, "pvc": 0.3},
			Min:       floatPtr(0),
		},
		"viscosity": {
			Intercept: 60,
			Weights:   map[string]float64{"solid_content_weight": 1.2, "solvent_ratio": -40},
			Min:       floatPtr(0),
		},
	}
}

func floatPtr(v float64) *float64 {
	return &v
}

// Targets returns the predicted property names in order.
func (p *LinearPredictor) Targets() []string {
	names := make([]string, 0, len(p.models))
	for n := range p.models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Predict implements Predictor. Features not named in a model are ignored,
// and weights for absent features contribute nothing.
func (p *LinearPredictor) Predict(ctx context.Context, features map[string]float64) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{ModelID: "linear", Err: err}
	}
	if len(p.models) == 0 || len(features) == 0 {
		return nil, &Error{ModelID: "linear", Err: ErrNoPredictions}
	}

	out := make(map[string]float64, len(p.models))
	for name, m := range p.models {
		// fixed summation order keeps results bit-identical across calls
		terms := make([]string, 0, len(m.Weights))
		for f := range m.Weights {
			terms = append(terms, f)
		}
		sort.Strings(terms)

		v := m.Intercept
		for _, f := range terms {
			v += m.Weights[f] * features[f]
		}
		if m.Min != nil && v < *m.Min {
			v = *m.Min
		}
		if m.Max != nil && v > *m.Max {
			v = *m.Max
		}
		out[name] = v
	}
	return out, nil
}
