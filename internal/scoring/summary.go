package scoring

import (
	"math"
	"sort"

	"wallet-risk-lab/internal/domain"
)

// Summarize computes batch statistics. An empty batch yields a zero summary
// with every category present.
func Summarize(scores []domain.Score) domain.Summary {
	sum := domain.Summary{Distribution: make(map[domain.RiskCategory]int, len(domain.RiskCategories))}
	for _, c := range domain.RiskCategories {
		sum.Distribution[c] = 0
	}

	n := len(scores)
	if n == 0 {
		return sum
	}

	values := make([]float64, n)
	for i, s := range scores {
		values[i] = float64(s.Score)
		sum.Distribution[Categorize(s.Score)]++
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum.TotalWallets = n
	sum.Mean = computeMean(values)
	sum.Median = computePercentile(sorted, 0.50)
	sum.StdDev = computeStddev(values, sum.Mean)
	sum.Min = int(sorted[0])
	sum.Max = int(sorted[n-1])
	return sum
}

// computeMean calculates the arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// computeStddev calculates population standard deviation (n denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
