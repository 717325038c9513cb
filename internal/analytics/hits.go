package analytics

import "sort"

const hitPercentile = 0.75

// HitThreshold returns the 75th-percentile value of rates, taken at sorted
// index floor(n*0.75). It returns 0 for an empty set.
func HitThreshold(rates []float64) float64 {
	if len(rates) == 0 {
		return 0
	}
	sorted := make([]float64, len(rates))
	copy(sorted, rates)
	sort.Float64s(sorted)
	return sorted[int(float64(len(sorted))*hitPercentile)]
}

// IsHit reports whether rate qualifies against threshold. Zero rates never
// qualify, so an all-zero window has no hits.
func IsHit(rate, threshold float64) bool {
	return rate >= threshold && rate > 0
}

// DetectHits returns one flag per input rate.
func DetectHits(rates []float64) []bool {
	threshold := HitThreshold(rates)
	flags := make([]bool, len(rates))
	for i, rate := range rates {
		flags[i] = IsHit(rate, threshold)
	}
	return flags
}
