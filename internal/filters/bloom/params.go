package bloom

import (
	"fmt"
	"math"
)

// CapacityFactor scales the bit array: m = n * CapacityFactor * k.
//
// The textbook optimum is 1/ln(2)^2 ≈ 1.44 bits per item per hash. 14.4 is ten
// times that, trading memory for a measured false positive rate far below the
// configured target.
const CapacityFactor = 14.4

// EstimateParameters derives the hash count k and bit count m for a target
// false positive rate p and an expected item count n.
//
//	k = ceil(-log2(p))
//	m = floor(n * CapacityFactor * k), at least 1
func EstimateParameters(p float64, n uint64) (uint16, uint, error) {
	// The negated comparison also rejects NaN.
	if !(p > 0 && p < 1) {
		return 0, 0, fmt.Errorf("%w: false positive rate %v not in (0, 1)", ErrInvalidArgument, p)
	}

	// For p in (0, 1), -log2(p) is in (0, 1075), so k always fits a uint16
	// and is at least 1.
	k := uint16(math.Ceil(-math.Log2(p)))

	m := math.Floor(float64(n) * CapacityFactor * float64(k))
	if m >= math.MaxInt {
		return 0, 0, fmt.Errorf("%w: %d items at rate %v needs %.0f bits", ErrInvalidArgument, n, p, m)
	}

	// n == 0 is allowed but would produce an empty bit array.
	if m < 1 {
		m = 1
	}

	return k, uint(m), nil
}

// ExpectedFalsePositiveRate returns the theoretical false positive rate of a
// filter with hashCount hash functions and bitCount bits after n distinct
// insertions: (1 - e^(-k*n/m))^k.
func ExpectedFalsePositiveRate(hashCount uint16, bitCount uint, n uint64) float64 {
	if bitCount == 0 {
		return 1
	}
	k := float64(hashCount)
	return math.Pow(1-math.Exp(-k*float64(n)/float64(bitCount)), k)
}
