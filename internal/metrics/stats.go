package metrics

import (
	"math"
	"sort"
)

// Mean computes the arithmetic mean of a float64 slice.
// Returns 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance computes the population variance of a float64 slice.
// Returns 0 for empty input.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return sumSq / float64(len(values))
}

// StdDev computes the population standard deviation.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Median returns the middle value, averaging the two middle values of an
// even-length slice. The input is not modified.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Summary describes a population's fitness values. Lower is better.
type Summary struct {
	Count  int
	Best   float64
	Worst  float64
	Mean   float64
	Median float64
	StdDev float64
}

// Summarize computes a Summary. An empty slice yields the zero Summary.
func Summarize(fitness []float64) Summary {
	if len(fitness) == 0 {
		return Summary{}
	}
	best, worst := fitness[0], fitness[0]
	for _, f := range fitness[1:] {
		best = math.Min(best, f)
		worst = math.Max(worst, f)
	}
	return Summary{
		Count:  len(fitness),
		Best:   best,
		Worst:  worst,
		Mean:   Mean(fitness),
		Median: Median(fitness),
		StdDev: StdDev(fitness),
	}
}

// Improvement is the relative drop from before to after, e.g. 0.25 when the
// best fitness fell by a quarter. It is 0 when before is not positive.
func Improvement(before, after float64) float64 {
	if before <= 0 {
		return 0
	}
	return (before - after) / before
}
