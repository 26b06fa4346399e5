package optimizer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evaluation outcomes used as metric labels.
const (
	outcomeOK             = "ok"
	outcomePredictorError = "predictor_error"
	outcomeEmpty          = "empty_recipe"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paintopt",
		Subsystem: "optimizer",
		Name:      "runs_total",
		Help:      "Optimization runs by outcome (completed, cancelled, rejected)",
	}, []string{"outcome"})

	generationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "paintopt",
		Subsystem: "optimizer",
		Name:      "generations_total",
		Help:      "Generations evaluated across all runs",
	})

	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paintopt",
		Subsystem: "optimizer",
		Name:      "evaluations_total",
		Help:      "Fitness evaluations by outcome",
	}, []string{"outcome"})

	bestFitness = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "paintopt",
		Subsystem: "optimizer",
		Name:      "best_fitness",
		Help:      "Best fitness of the most recently evaluated generation",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "paintopt",
		Subsystem: "optimizer",
		Name:      "run_duration_seconds",
		Help:      "Wall time of optimization runs",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
	})
)

func recordEvaluations(scored []Evaluation) {
	for _, ev := range scored {
		switch {
		case len(ev.Recipe.Components) == 0:
			evaluationsTotal.WithLabelValues(outcomeEmpty).Inc()
		case ev.PredictorErr != nil:
			evaluationsTotal.WithLabelValues(outcomePredictorError).Inc()
		default:
			evaluationsTotal.WithLabelValues(outcomeOK).Inc()
		}
	}
}
