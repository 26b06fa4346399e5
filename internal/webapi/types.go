package webapi

import (
	"encoding/json"
	"time"

	"github.com/paintlab/paintopt/internal/models"
)

// RunSummary is the compact view of one optimization run.
type RunSummary struct {
	ID          string    `json:"id"`
	Scope       string    `json:"scope"`
	TargetType  string    `json:"targetType,omitempty"`
	Objectives  []string  `json:"objectives"`
	BestFitness float64   `json:"bestFitness"`
	Improvement float64   `json:"improvement"`
	Candidates  int       `json:"candidates"`
	Generations int       `json:"generations"`
	Evaluations int       `json:"evaluations"`
	Cancelled   bool      `json:"cancelled"`
	Duration    float64   `json:"duration"`
	Timestamp   time.Time `json:"timestamp"`
}

// SummaryResponse aggregates metrics across all stored runs.
type SummaryResponse struct {
	TotalRuns         int     `json:"totalRuns"`
	CancelledRuns     int     `json:"cancelledRuns"`
	TotalEvaluations  int     `json:"totalEvaluations"`
	BestRunID         string  `json:"bestRunId,omitempty"`
	BestFitness       float64 `json:"bestFitness"`
	AvgBestFitness    float64 `json:"avgBestFitness"`
	MedianBestFitness float64 `json:"medianBestFitness"`
	AvgImprovement    float64 `json:"avgImprovement"`
	AvgDuration       float64 `json:"avgDuration"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Predictor string `json:"predictor,omitempty"`
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    int      `json:"code"`
	Details []string `json:"details,omitempty"`
}

// ValidateRequest is the body of POST /api/validate.
type ValidateRequest struct {
	Recipe     json.RawMessage `json:"recipe" validate:"required"`
	TargetType string          `json:"target_type,omitempty"`
}

func resultToSummary(r *models.OptimizationResult) RunSummary {
	objectives := make([]string, 0, len(r.Objectives))
	for _, o := range r.Objectives {
		objectives = append(objectives, o.Name)
	}
	s := RunSummary{
		ID:          r.RunID,
		Scope:       string(r.Scope),
		TargetType:  r.TargetType,
		Objectives:  objectives,
		Candidates:  len(r.Candidates),
		Generations: r.Generations,
		Evaluations: r.Evaluations,
		Cancelled:   r.Cancelled,
		Duration:    float64(r.DurationMs) / 1000.0,
		Improvement: r.Improvement(),
		Timestamp:   r.StartedAt,
	}
	if best := r.Best(); best != nil {
		s.BestFitness = best.Fitness
	}
	return s
}
