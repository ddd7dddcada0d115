package indices

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile (0-100) of values by linear
// interpolation between the two closest ranks, h = (n-1)p/100. This is the
// definition used by numpy's default percentile, which the CBV reference
// bands were calibrated against. The input is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	return percentileSorted(sortedCopy(values), p)
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

func percentileSorted(sorted []float64, p float64) float64 {
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	h := float64(len(sorted)-1) * p / 100
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[i]
	}

	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}
