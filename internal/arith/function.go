package arith

import (
	"fmt"
	"math"
)

// Func is a unary post-function applied to a node's value.
type Func uint8

const (
	SquareRoot Func = iota + 1
	Factorial
	Summation
)

// Funcs lists every function in enumeration order.
var Funcs = [...]Func{SquareRoot, Factorial, Summation}

// ApplyNoLimit evaluates f without the magnitude bound. A function that
// returns its own input is rejected.
func (f Func) ApplyNoLimit(n float64) (float64, bool) {
	var (
		res float64
		ok  bool
	)
	switch f {
	case SquareRoot:
		res, ok = squareRoot(n)
	case Factorial:
		res, ok = factorial(n)
	case Summation:
		res, ok = summation(n)
	default:
		panic(fmt.Sprintf("arith: unknown function %d", f))
	}
	if !ok || math.IsNaN(res) || res == n {
		return 0, false
	}
	return res, true
}

func (f Func) Apply(n float64) (float64, bool) {
	res, ok := f.ApplyNoLimit(n)
	if !ok || !WithinLimit(res) {
		return 0, false
	}
	return res, true
}

func (f Func) ApplyLimit(n float64, limit bool) (float64, bool) {
	if limit {
		return f.Apply(n)
	}
	return f.ApplyNoLimit(n)
}

// Inverse recovers the input x with f(x) = n.
func (f Func) Inverse(n float64) (float64, bool) {
	var (
		res float64
		ok  bool
	)
	switch f {
	case SquareRoot:
		res, ok = squareRootInverse(n)
	case Factorial:
		res, ok = factorialInverse(n)
	case Summation:
		res, ok = summationInverse(n)
	default:
		panic(fmt.Sprintf("arith: unknown function %d", f))
	}
	if !ok || !WithinLimit(res) || res == n {
		return 0, false
	}
	return res, true
}

// ApplyDir runs the forward evaluation, or the inverse when inverse is set.
func (f Func) ApplyDir(n float64, inverse bool) (float64, bool) {
	if inverse {
		return f.Inverse(n)
	}
	return f.Apply(n)
}

// Postfix reports whether the function is written after its operand.
func (f Func) Postfix() bool {
	return f == Factorial
}

// Symbol is the display notation of the function.
func (f Func) Symbol() string {
	switch f {
	case SquareRoot:
		return "²√"
	case Factorial:
		return "!"
	case Summation:
		return "Σ"
	}
	return "?"
}

func (f Func) String() string {
	switch f {
	case SquareRoot:
		return "square_root"
	case Factorial:
		return "factorial"
	case Summation:
		return "summation"
	}
	return fmt.Sprintf("func(%d)", uint8(f))
}

// MaxApplications counts how many times f can be chained from n (forward, or
// inverse when inverse is set) before it becomes undefined, returning the count
// and the last defined value. The count is capped at 100.
func MaxApplications(n float64, f Func, inverse bool) (int, float64) {
	count := 0
	for count < 100 {
		next, ok := f.ApplyDir(n, inverse)
		if !ok {
			return count, n
		}
		n = next
		count++
	}
	return count, n
}
