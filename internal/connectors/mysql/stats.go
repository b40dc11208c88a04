package mysql

import (
	"math"
	"sort"
)

func durationStats(durations []float64) (float64, float64, float64) {
	if len(durations) == 0 {
		return 0, 0, 0
	}

	sorted := append([]float64(nil), durations...)
	sort.Float64s(sorted)

	total := 0.0
	for _, d := range sorted {
		total += d
	}
	avg := total / float64(len(sorted))
	p50 := percentile(sorted, 50)
	p95 := percentile(sorted, 95)

	return round2(avg), p50, p95
}

// percentile uses nearest-rank on an ascending slice.
func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil((float64(p)/100.0)*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
