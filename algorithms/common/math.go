package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Epsilon is the floor used to keep log, division and phase computations
// finite on silent input.
const Epsilon = 1e-10

// Fract returns x - floor(x), always in [0, 1).
func Fract(x float64) float64 {
	return x - math.Floor(x)
}

// WrapPhase maps an angle onto (-pi, pi].
func WrapPhase(phase float64) float64 {
	wrapped := phase - 2*math.Pi*math.Round(phase/(2*math.Pi))
	if wrapped <= -math.Pi {
		wrapped += 2 * math.Pi
	}
	return wrapped
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// SafeLog2 returns log2(x) with x clamped to Epsilon.
func SafeLog2(x float64) float64 {
	return math.Log2(math.Max(x, Epsilon))
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// MaxIndex returns the index of the largest value, or -1 for empty input.
func MaxIndex(data []float64) int {
	if len(data) == 0 {
		return -1
	}
	return floats.MaxIdx(data)
}

// Sum returns the sum of data using gonum
func Sum(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Sum(data)
}

// AllBelow reports whether every value's magnitude is below eps.
func AllBelow(data []float64, eps float64) bool {
	for _, v := range data {
		if math.Abs(v) >= eps {
			return false
		}
	}
	return true
}
