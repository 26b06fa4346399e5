// Package predictor is the boundary to the forward property model: given the
// mixture features of a recipe it returns predicted performance properties.
package predictor

//go:generate go tool mockgen -source predictor.go -destination mock_predictor.go -package predictor

import (
	"context"
	"errors"
	"fmt"
)

// Predictor maps recipe features to predicted property values. A
// successful call returns at least one prediction; a call that yields
// nothing returns ErrNoPredictions. Implementations must be safe for
// concurrent use.
type Predictor interface {
	Predict(ctx context.Context, features map[string]float64) (map[string]float64, error)
}

// HealthChecker is implemented by predictors that sit in front of a remote
// service.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// CheckHealth runs p's health check when it has one. Local predictors are
// always healthy.
func CheckHealth(ctx context.Context, p Predictor) error {
	if hc, ok := p.(HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}

// Sentinel failures. Use errors.Is against these.
var (
	ErrUnavailable   = errors.New("predictor unavailable")
	ErrNoPredictions = errors.New("predictor returned no predictions")
	ErrBadResponse   = errors.New("malformed predictor response")
)

// Error describes a failed prediction.
type Error struct {
	ModelID string
	Err     error
}

func (e *Error) Error() string {
	if e.ModelID == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("model %s: %v", e.ModelID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Func adapts a plain function to the Predictor interface.
type Func func(ctx context.Context, features map[string]float64) (map[string]float64, error)

// Predict calls f.
func (f Func) Predict(ctx context.Context, features map[string]float64) (map[string]float64, error) {
	return f(ctx, features)
}
