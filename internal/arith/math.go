package arith

import "math"

const (
	// RoundingError is the tolerance used for integrality checks and goal matching.
	RoundingError = 1e-10
	// MaxMagnitude bounds every value produced under full limits.
	MaxMagnitude = 1e15

	powerDelta = 1e-5
)

// WithinError reports whether test matches goal within RoundingError.
func WithinError(test, goal float64) bool {
	return math.Abs(test-goal) < RoundingError
}

// WithinLimit reports whether n is finite and inside ±MaxMagnitude.
func WithinLimit(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0) && math.Abs(n) <= MaxMagnitude
}

// IsInteger reports whether n is integral within RoundingError.
func IsInteger(n float64) bool {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return false
	}
	return math.Abs(n-math.Round(n)) <= RoundingError
}

// snap pulls values that are integral within rounding error onto the integer,
// so logarithm/root round-off does not break exact value joins.
func snap(n float64) float64 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return n
	}
	r := math.Round(n)
	if r != n && math.Abs(n-r) < RoundingError {
		return r
	}
	return n
}

// Pow computes base^exp with the game's rules: 0^0 is undefined, a negative
// base with an exponent whose reciprocal is an odd integer takes the real odd
// root, and results degenerately close to 0 or 1 are rejected unless the base
// is ±1 or the exponent is 0.
func Pow(base, exp float64) (float64, bool) {
	if base == 0 && exp == 0 {
		return 0, false
	}
	res := math.Pow(base, exp)
	if math.IsNaN(res) {
		if base >= 0 || exp == 0 {
			return 0, false
		}
		inv := 1 / exp
		if !IsInteger(inv) || math.Mod(math.Abs(math.Round(inv)), 2) != 1 {
			return 0, false
		}
		res = -math.Pow(-base, exp)
		if math.IsNaN(res) {
			return 0, false
		}
	}
	if math.Abs(base) != 1 && exp != 0 {
		if math.Abs(res-1) <= powerDelta || math.Abs(res) <= powerDelta {
			return 0, false
		}
	}
	return snap(res), true
}

// NthRoot computes the index-th root of radicand.
func NthRoot(index, radicand float64) (float64, bool) {
	if index == 0 {
		return 0, false
	}
	return Pow(radicand, 1/index)
}

// logBase solves base^x = res for x over positive reals.
func logBase(base, res float64) (float64, bool) {
	if base <= 0 || base == 1 || res <= 0 {
		return 0, false
	}
	return snap(math.Log(res) / math.Log(base)), true
}

func squareRoot(n float64) (float64, bool) {
	if n < 0 {
		return 0, false
	}
	return Pow(n, 0.5)
}

func squareRootInverse(n float64) (float64, bool) {
	if n < 0 {
		return 0, false
	}
	return Pow(n, 2)
}

func summation(n float64) (float64, bool) {
	if n < 0 || !IsInteger(n) {
		return 0, false
	}
	n = math.Round(n)
	return n / 2 * (n + 1), true
}

func summationInverse(n float64) (float64, bool) {
	if n < 0 || !IsInteger(n) {
		return 0, false
	}
	x := (-1 + math.Sqrt(1+8*math.Round(n))) / 2
	if !IsInteger(x) {
		return 0, false
	}
	return math.Round(x), true
}

// factorials holds 0! through 17!; 18! exceeds MaxMagnitude.
var factorials = [18]float64{
	1,
	1,
	2,
	6,
	24,
	120,
	720,
	5040,
	40320,
	362880,
	3628800,
	39916800,
	479001600,
	6227020800,
	87178291200,
	1307674368000,
	20922789888000,
	355687428096000,
}

func factorial(n float64) (float64, bool) {
	if n < 0 || !IsInteger(n) {
		return 0, false
	}
	i := int(math.Round(n))
	if i >= len(factorials) {
		return 0, false
	}
	return factorials[i], true
}

func factorialInverse(n float64) (float64, bool) {
	if n < 0 || !IsInteger(n) {
		return 0, false
	}
	n = math.Round(n)
	for i, f := range factorials {
		if f == n {
			return float64(i), true
		}
	}
	return 0, false
}
