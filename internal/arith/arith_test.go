package arith

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquareRoot(t *testing.T) {
	v, ok := SquareRoot.Apply(16)
	require.True(t, ok)
	assert.Equal(t, 4.0, v)

	v, ok = SquareRoot.Inverse(4)
	require.True(t, ok)
	assert.Equal(t, 16.0, v)

	_, ok = SquareRoot.Apply(-1)
	assert.False(t, ok)

	// sqrt(1) = 1 does nothing
	_, ok = SquareRoot.Apply(1)
	assert.False(t, ok)
}

func TestFactorial(t *testing.T) {
	v, ok := Factorial.Apply(5)
	require.True(t, ok)
	assert.Equal(t, 120.0, v)

	v, ok = Factorial.Apply(17)
	require.True(t, ok)
	assert.Equal(t, 355687428096000.0, v)

	_, ok = Factorial.Apply(18)
	assert.False(t, ok)
	_, ok = Factorial.Apply(2.5)
	assert.False(t, ok)
	_, ok = Factorial.Apply(-3)
	assert.False(t, ok)
	_, ok = Factorial.Apply(2)
	assert.False(t, ok, "2! = 2 is a no-op")

	v, ok = Factorial.Inverse(720)
	require.True(t, ok)
	assert.Equal(t, 6.0, v)
	_, ok = Factorial.Inverse(721)
	assert.False(t, ok)
}

func TestSummation(t *testing.T) {
	v, ok := Summation.Apply(4)
	require.True(t, ok)
	assert.Equal(t, 10.0, v)

	v, ok = Summation.Inverse(10)
	require.True(t, ok)
	assert.Equal(t, 4.0, v)

	_, ok = Summation.Inverse(11)
	assert.False(t, ok)
	_, ok = Summation.Apply(1)
	assert.False(t, ok)
	_, ok = Summation.Apply(3.5)
	assert.False(t, ok)
}

func TestFunctionInverseRoundTrip(t *testing.T) {
	for _, f := range Funcs {
		for x := -30.0; x <= 400; x += 0.5 {
			inv, ok := f.Inverse(x)
			if !ok {
				continue
			}
			assert.NotEqual(t, x, inv, "%s inverse of %v returned its input", f, x)
			back, ok := f.Apply(inv)
			if !ok {
				continue
			}
			assert.InDelta(t, x, back, 1e-9, "%s(%s^-1(%v))", f, f, x)
			assert.NotEqual(t, inv, back)
		}
	}
}

func TestOperationInverseSolvesForRightOperand(t *testing.T) {
	nums := []float64{-16, -10, -3, -2, 2, 3, 4, 8, 13, 16}
	results := []float64{-27, -8, -1, 0.5, 1, 2, 4, 9, 19, 64, 81}
	for _, op := range Operations {
		for _, num := range nums {
			for _, res := range results {
				x, ok := op.Inverse(num, res)
				if !ok {
					continue
				}
				got, ok := op.ApplyNoLimit(num, x)
				if !ok {
					continue
				}
				tol := 1e-9 * math.Max(1, math.Abs(res))
				assert.InDelta(t, res, got, tol, "%s(%v, %v) should give %v", op, num, x, res)
			}
		}
	}
}

func TestOperationApplyDir(t *testing.T) {
	for _, op := range Operations {
		fwd, okFwd := op.ApplyDir(2, 3, false)
		want, okWant := op.Apply(2, 3)
		assert.Equal(t, okWant, okFwd, op.String())
		assert.Equal(t, want, fwd, op.String())

		inv, okInv := op.ApplyDir(2, 8, true)
		want, okWant = op.Inverse(2, 8)
		assert.Equal(t, okWant, okInv, op.String())
		assert.Equal(t, want, inv, op.String())
	}
	x, ok := Power.ApplyDir(2, 8, true)
	require.True(t, ok)
	assert.Equal(t, 3.0, x)
}

func TestRootInverseRejectsUnreachableSign(t *testing.T) {
	// x^(1/2) is never negative.
	_, ok := Root.Inverse(2, -1)
	assert.False(t, ok)

	x, ok := Root.Inverse(3, -2)
	require.True(t, ok)
	assert.InDelta(t, -8, x, 1e-9)
}

func TestSwitchedOperationsMirrorOperands(t *testing.T) {
	pairs := map[Operation]Operation{
		Subtract: SubtractSwitch,
		Divide:   DivideSwitch,
		Power:    PowerSwitch,
		Root:     RootSwitch,
	}
	for op, switched := range pairs {
		a, okA := op.Apply(3, 2)
		b, okB := switched.Apply(2, 3)
		require.Equal(t, okA, okB, op.String())
		if okA {
			assert.Equal(t, a, b, op.String())
		}
		assert.Equal(t, op.Symbol(), switched.Symbol())
		assert.True(t, switched.IsSwitched())
		assert.False(t, op.IsSwitched())
	}
}

func TestPowRules(t *testing.T) {
	_, ok := Pow(0, 0)
	assert.False(t, ok)

	v, ok := Pow(-8, 1.0/3)
	require.True(t, ok)
	assert.InDelta(t, -2, v, 1e-12)

	_, ok = Pow(-16, 0.5)
	assert.False(t, ok, "even root of a negative base is undefined")

	_, ok = Pow(2, 1e-7)
	assert.False(t, ok, "results next to one are degenerate")

	_, ok = Pow(2, -60)
	assert.False(t, ok, "results next to zero are degenerate")

	v, ok = Pow(1, 1e-7)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	v, ok = Pow(7, 0)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, ok = NthRoot(0, 5)
	assert.False(t, ok)
}

func TestApplyLimits(t *testing.T) {
	_, ok := Multiply.Apply(1e10, 1e10)
	assert.False(t, ok)
	v, ok := Multiply.ApplyNoLimit(1e10, 1e10)
	require.True(t, ok)
	assert.Equal(t, 1e20, v)

	_, ok = Divide.Apply(1, 0)
	assert.False(t, ok)
	_, ok = DivideSwitch.Apply(0, 1)
	assert.False(t, ok)
}

func TestMaxApplications(t *testing.T) {
	count, last := MaxApplications(720, Factorial, true)
	assert.Equal(t, 2, count)
	assert.Equal(t, 3.0, last)

	count, last = MaxApplications(2, SquareRoot, true)
	assert.Equal(t, 5, count, "2 squared five times is 2^32, a sixth time exceeds 1e15")
	assert.Equal(t, 4294967296.0, last)
}

func TestFuncList(t *testing.T) {
	l := NewFuncList(SquareRoot, SquareRoot, Factorial, Summation)
	require.Equal(t, 4, l.Len())
	assert.Equal(t, Factorial, l.At(2))
	assert.Equal(t, []Func{Summation, Factorial, SquareRoot, SquareRoot}, l.Reverse().Funcs())
	assert.Equal(t, []Run{{SquareRoot, 2}, {Factorial, 1}, {Summation, 1}}, l.Runs())
	assert.Equal(t, []Func{Factorial, Summation}, l.Slice(2, 4).Funcs())

	joined := NewFuncList(Factorial).Concat(NewFuncList(SquareRoot))
	assert.Equal(t, []Func{Factorial, SquareRoot}, joined.Funcs())

	assert.Panics(t, func() { l.At(4) })
	assert.Panics(t, func() { NewFuncList().AppendN(SquareRoot, MaxFuncListLen+1) })
}

func BenchmarkOperations(b *testing.B) {
	for i := 0; i < b.N; i++ {
		for _, op := range Operations {
			for l := -50.0; l < 50; l++ {
				_, _ = op.Apply(l, 7)
			}
		}
	}
}

func BenchmarkFunctions(b *testing.B) {
	for i := 0; i < b.N; i++ {
		for _, f := range Funcs {
			for n := -50.0; n < 50; n++ {
				_, _ = f.Apply(n)
			}
		}
	}
}
