package clean

import (
	"math"
	"sort"
)

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

func sortedCopy(vals []float64) []float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return cp
}

func median(vals []float64) float64 { return quantile(sortedCopy(vals), 0.5) }

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	// Welford keeps the running mean stable for long columns.
	var m float64
	for i, x := range vals {
		m += (x - m) / float64(i+1)
	}
	return m
}

// mode returns the most frequent value. Ties go to the smallest value.
func mode(vals []string) (string, bool) {
	if len(vals) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(vals))
	for _, v := range vals {
		counts[v]++
	}
	best, bestN := "", 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best, true
}
