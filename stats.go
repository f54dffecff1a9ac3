package main

import (
	"math"
	"sort"
)

type Stats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P95    float64 `json:"p95"`
	Stdev  float64 `json:"stdev"`
}

// Percentile interpolates linearly between the two nearest order statistics.
// The input must be non-empty.
func Percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	k := float64(len(sorted)-1) * p / 100
	lower := int(math.Floor(k))
	upper := min(lower+1, len(sorted)-1)
	if lower == upper {
		return sorted[lower]
	}
	fraction := k - float64(lower)
	return sorted[lower]*(1-fraction) + sorted[upper]*fraction
}

// Summarize computes per-series statistics. Stdev is the population statistic
// and zero for a single-element series. An empty series yields nil.
func Summarize(values []float64) *Stats {
	if len(values) == 0 {
		return nil
	}
	mean, minValue, maxValue := 0.0, values[0], values[0]
	for _, v := range values {
		mean += v
		minValue = math.Min(minValue, v)
		maxValue = math.Max(maxValue, v)
	}
	mean /= float64(len(values))
	stdev := 0.0
	if len(values) > 1 {
		variance := 0.0
		for _, v := range values {
			variance += (v - mean) * (v - mean)
		}
		stdev = math.Sqrt(variance / float64(len(values)))
	}
	return &Stats{
		Mean:   mean,
		Median: Percentile(values, 50),
		Min:    minValue,
		Max:    maxValue,
		P95:    Percentile(values, 95),
		Stdev:  stdev,
	}
}

// RankingKey maps a median to an ascending sort key: lowest key first = best
// for both directions.
func RankingKey(direction string, value float64) float64 {
	if direction == "higher" {
		return -value
	}
	return value
}

// Ranked returns the backends eligible for ranking (status ok with a defined
// median primary metric) in best-first order. The sort is stable so equal
// medians keep declaration order.
func Ranked(results []BackendResult, metric MetricSpec) []*BackendResult {
	ranked := make([]*BackendResult, 0, len(results))
	for i := range results {
		entry := &results[i]
		if entry.Status == StatusOK && entry.Summary.PrimaryMetric != nil {
			ranked = append(ranked, entry)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		left := RankingKey(metric.Direction, ranked[i].Summary.PrimaryMetric.Median)
		right := RankingKey(metric.Direction, ranked[j].Summary.PrimaryMetric.Median)
		return left < right
	})
	return ranked
}

// RankResults attaches relative-to-best ratios to the ranked backends and
// returns the best median. Ratios are omitted when the best median is not
// positive or nothing ranked.
func RankResults(results []BackendResult, metric MetricSpec) *float64 {
	ranked := Ranked(results, metric)
	if len(ranked) == 0 {
		return nil
	}
	best := ranked[0].Summary.PrimaryMetric.Median
	if best > 0 {
		for _, entry := range ranked {
			median := entry.Summary.PrimaryMetric.Median
			var ratio float64
			if metric.Direction == "higher" {
				ratio = median / best
			} else if median != 0 {
				ratio = best / median
			}
			entry.Summary.MedianVsBest = &ratio
		}
	}
	return &best
}
