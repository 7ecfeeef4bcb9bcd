package search

import (
	"context"
	"errors"
	"math"

	"goalreach/internal/arith"
	"goalreach/internal/atom"
	"goalreach/internal/memo"
	"goalreach/internal/shape"
)

const (
	// MaxSquareRoots bounds the power of two a power group is asked to reach.
	MaxSquareRoots = 30
	// powerSolutions is how many expressions are tried per power of two.
	powerSolutions = 3
)

// split is one way of dividing the numbers for the squares pass.
type split struct {
	goal  []float64
	power []float64
}

// splits chooses size numbers, in index order, for the goal group and leaves
// the rest for the power group.
func splits(nums []float64, size int) []split {
	if size < 1 || size >= len(nums) {
		return nil
	}
	var out []split
	chosen := make([]int, 0, size)
	var rec func(from int)
	rec = func(from int) {
		if len(chosen) == size {
			var s split
			next := 0
			for i, n := range nums {
				if next < len(chosen) && chosen[next] == i {
					s.goal = append(s.goal, n)
					next++
					continue
				}
				s.power = append(s.power, n)
			}
			out = append(out, s)
			return
		}
		for i := from; i <= len(nums)-(size-len(chosen)); i++ {
			chosen = append(chosen, i)
			rec(i + 1)
			chosen = chosen[:len(chosen)-1]
		}
	}
	rec(0)
	return out
}

// squaresSplits lists the squares pass work: two goal numbers first, then one.
func squaresSplits(nums []float64) []split {
	return append(splits(nums, 2), splits(nums, 1)...)
}

// squarer rewrites plain solutions of a small goal group into expressions
// that route their largest intermediate value through the power group:
// v = sqrt^k((v) ^ p) where p evaluates to 2^k.
type squarer struct {
	depth     int
	available int
	memo      *memo.Memo
	// power solutions per target, nil entries are cached misses
	powers map[float64][]*atom.Atom
}

func newSquarer(depth, available int) *squarer {
	return &squarer{
		depth:     depth,
		available: available,
		memo:      memo.New(),
		powers:    make(map[float64][]*atom.Atom),
	}
}

// collect runs every joiner for len(nums) numbers without a floor and returns
// the distinct expressions found, stopping after limit when limit > 0.
func (s *squarer) collect(ctx context.Context, nums []float64, goal float64, limit int, progress func(int64)) ([]*atom.Atom, error) {
	var (
		out  []*atom.Atom
		seen = make(map[string]bool)
	)
	for _, pair := range shape.Pairs(len(nums)) {
		j := newJoiner(pair, s.memo, s.depth, len(nums))
		j.progress = progress
		err := j.run(ctx, nums, goal, noFloor, func(_ atom.Score, a *atom.Atom) bool {
			key := a.String()
			if !seen[key] {
				seen[key] = true
				out = append(out, a)
			}
			return limit <= 0 || len(out) < limit
		})
		if err != nil {
			return nil, err
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *squarer) powerAtoms(ctx context.Context, nums []float64, target float64, progress func(int64)) ([]*atom.Atom, error) {
	if atoms, ok := s.powers[target]; ok {
		return atoms, nil
	}
	atoms, err := s.collect(ctx, nums, target, powerSolutions, progress)
	if err != nil {
		return nil, err
	}
	s.powers[target] = atoms
	return atoms, nil
}

// run searches one split, handing every candidate that reaches goal and beats
// floor to yield.
func (s *squarer) run(ctx context.Context, sp split, goal float64, floor func() int, yield yieldFunc, progress func(int64)) error {
	goals, err := s.collect(ctx, sp.goal, goal, 0, progress)
	if err != nil {
		return err
	}
	for _, g := range goals {
		err := s.expand(ctx, g, sp.power, goal, floor, yield, progress)
		if errors.Is(err, errStopped) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *squarer) expand(ctx context.Context, g *atom.Atom, power []float64, goal float64, floor func() int, yield yieldFunc, progress func(int64)) error {
	steps := g.StepsWithEval()
	best := steps[0]
	for _, st := range steps[1:] {
		if st.Value >= best.Value {
			best = st
		}
	}
	nodeFuncs := 0
	for _, st := range steps {
		if st.Node == best.Node {
			nodeFuncs = max(nodeFuncs, st.FuncIndex)
		}
	}
	// functions left on the hole once the split node is cut at best
	holeFuncs := nodeFuncs - best.FuncIndex
	outer, inner := g.Split(best)

	maxInner, n := arith.MaxApplications(best.Value, arith.SquareRoot, false)
	up, _ := arith.MaxApplications(n, arith.SquareRoot, true)
	maxOuter := up - maxInner
	maxSqrt := min(maxInner+maxOuter, MaxSquareRoots)

	for k := maxSqrt - 1; k >= 1; k-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		powers, err := s.powerAtoms(ctx, power, math.Exp2(float64(k)), progress)
		if err != nil {
			return err
		}
		outerCount := min(maxOuter, k)
		innerCount := k - outerCount
		if inner.Funcs.Len()+innerCount > arith.MaxFuncListLen || holeFuncs+outerCount > arith.MaxFuncListLen {
			continue
		}
		for _, p := range powers {
			base := inner.Clone()
			base.Funcs = base.Funcs.AppendN(arith.SquareRoot, innerCount)
			raised := atom.NewCombine(base, p.Clone(), arith.Power)
			raised.Funcs = raised.Funcs.AppendN(arith.SquareRoot, outerCount)
			a := outer.Clone()
			if !a.FillHole(raised) {
				panic("search: split produced no hole in " + g.String())
			}
			score := a.Score(s.available)
			if score.Value() <= floor() || !a.Test(goal) {
				continue
			}
			if !yield(score, a) {
				return errStopped
			}
		}
	}
	return nil
}
