package domain

import (
	"sort"

	"github.com/montanaflynn/stats"
)

// DefaultTrimFraction is the fraction of sorted values discarded from each
// end when computing the trimmed mean.
const DefaultTrimFraction = 0.10

// TrimmedMean computes the mean after discarding the lowest and highest
// floor(n*frac) values. When trimming would remove the entire group or leave
// an ambiguous remainder (2*floor(n*frac) >= n), it falls back to the
// untrimmed mean instead of averaging zero elements.
//
// Returns an error only for an empty input, matching stats.Mean.
func TrimmedMean(values []float64, frac float64) (float64, error) {
	n := len(values)
	if n == 0 {
		return 0, stats.EmptyInputErr
	}

	k := int(float64(n) * frac)
	if 2*k >= n {
		return stats.Mean(values)
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	return stats.Mean(sorted[k : n-k])
}
