// Package numutil provides the small numeric kernel shared by the valuation
// engines: clamping, finiteness guards, percentile math and the random
// samplers used by the Monte Carlo layer.
package numutil

import "math"

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Clamp bounds v into [lo, hi]. If lo > hi the bounds are swapped.
func Clamp(v, lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Mean returns the arithmetic mean, 0 for an empty slice.
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

// StdDevPopulation returns the population standard deviation (divide by n,
// not n-1). 0 for an empty slice.
func StdDevPopulation(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	mean := Mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n))
}

// Percentile returns the p-th percentile (p in [0,1]) of an ascending-sorted
// slice using linear interpolation between closest ranks:
//
//	k = floor(p*(n-1)); f = p*(n-1) - k
//	result = v[k] + f*(v[k+1]-v[k])
//
// The slice must already be sorted; callers own the sort.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	p = Clamp(p, 0, 1)
	rank := p * float64(n-1)
	k := int(math.Floor(rank))
	f := rank - float64(k)
	if k >= n-1 {
		return sorted[n-1]
	}
	return sorted[k] + f*(sorted[k+1]-sorted[k])
}
