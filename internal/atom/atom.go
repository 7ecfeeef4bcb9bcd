package atom

import (
	"fmt"

	"goalreach/internal/arith"
)

// Kind distinguishes the three node variants of an expression tree.
type Kind uint8

const (
	Number Kind = iota
	Combine
	Hole
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case Combine:
		return "combine"
	case Hole:
		return "hole"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Atom is an expression tree node. Funcs are applied innermost first to the
// node's own value before the parent sees it.
type Atom struct {
	Kind  Kind
	Num   float64
	Left  *Atom
	Right *Atom
	Op    arith.Operation
	Funcs arith.FuncList
}

func NewNumber(n float64) *Atom {
	return &Atom{Kind: Number, Num: n}
}

func NewCombine(left, right *Atom, op arith.Operation) *Atom {
	return &Atom{Kind: Combine, Left: left, Right: right, Op: op}
}

// NewHole returns a placeholder that must be filled before evaluation.
func NewHole() *Atom {
	return &Atom{Kind: Hole}
}

// WithFuncs appends funcs as new outermost functions and returns a.
func (a *Atom) WithFuncs(funcs ...arith.Func) *Atom {
	for _, f := range funcs {
		a.Funcs = a.Funcs.Append(f)
	}
	return a
}

func (a *Atom) Clone() *Atom {
	if a == nil {
		return nil
	}
	out := *a
	out.Left = a.Left.Clone()
	out.Right = a.Right.Clone()
	return &out
}

// Eval evaluates the tree under full limits.
func (a *Atom) Eval() (float64, bool) {
	return a.eval(true)
}

// EvalNoLimit evaluates the tree without the magnitude bound.
func (a *Atom) EvalNoLimit() (float64, bool) {
	return a.eval(false)
}

func (a *Atom) eval(limit bool) (float64, bool) {
	var (
		n  float64
		ok = true
	)
	switch a.Kind {
	case Number:
		n = a.Num
	case Combine:
		l, okL := a.Left.eval(limit)
		if !okL {
			return 0, false
		}
		r, okR := a.Right.eval(limit)
		if !okR {
			return 0, false
		}
		n, ok = a.Op.ApplyLimit(l, r, limit)
	case Hole:
		panic("atom: evaluating an unfilled hole")
	default:
		panic(fmt.Sprintf("atom: unknown kind %d", a.Kind))
	}
	for i := 0; ok && i < a.Funcs.Len(); i++ {
		n, ok = a.Funcs.At(i).ApplyLimit(n, limit)
	}
	if !ok {
		return 0, false
	}
	return n, true
}

// Test reports whether a evaluates to goal under full limits and every function
// it applies is needed to get there.
func (a *Atom) Test(goal float64) bool {
	// A tree that misses the goal even without limits cannot reach it with them.
	v, ok := a.EvalNoLimit()
	if !ok || !arith.WithinError(v, goal) {
		return false
	}
	if v, ok = a.Eval(); !ok || !arith.WithinError(v, goal) {
		return false
	}
	return a.funcsNecessary(goal)
}

type reachable struct {
	v    float64
	full bool
}

func (a *Atom) funcsNecessary(goal float64) bool {
	for _, r := range a.reachableValues() {
		if !r.full && arith.WithinError(r.v, goal) {
			return false
		}
	}
	return true
}

// reachableValues lists every value the subtree can take when each run of
// identical functions is truncated to any prefix, combined with the children's
// reachable values. Exactly the entries built from untruncated runs all the way
// down are marked full.
func (a *Atom) reachableValues() []reachable {
	var base []reachable
	switch a.Kind {
	case Number:
		base = []reachable{{v: a.Num, full: true}}
	case Combine:
		left := a.Left.reachableValues()
		right := a.Right.reachableValues()
		for _, l := range left {
			for _, r := range right {
				v, ok := a.Op.ApplyNoLimit(l.v, r.v)
				if !ok {
					continue
				}
				base = append(base, reachable{v: v, full: l.full && r.full})
			}
		}
	case Hole:
		panic("atom: necessity check on an unfilled hole")
	}
	if a.Funcs.Len() == 0 {
		return base
	}

	runs := a.Funcs.Runs()
	counts := make([]int, len(runs))
	var out []reachable
	for {
		full := true
		for i, run := range runs {
			if counts[i] != run.Count {
				full = false
				break
			}
		}
		for _, b := range base {
			v, ok := b.v, true
			for i := 0; ok && i < len(runs); i++ {
				for c := 0; ok && c < counts[i]; c++ {
					v, ok = runs[i].Func.ApplyNoLimit(v)
				}
			}
			if ok {
				out = append(out, reachable{v: v, full: full && b.full})
			}
		}
		// odometer over 0..Count for each run
		i := len(runs) - 1
		for ; i >= 0; i-- {
			if counts[i] < runs[i].Count {
				counts[i]++
				break
			}
			counts[i] = 0
		}
		if i < 0 {
			return out
		}
	}
}

// FillHole splices sub into every hole of a. The hole's own functions stay
// outermost, after sub's.
func (a *Atom) FillHole(sub *Atom) bool {
	switch a.Kind {
	case Hole:
		filled := sub.Clone()
		a.Kind = filled.Kind
		a.Num = filled.Num
		a.Left = filled.Left
		a.Right = filled.Right
		a.Op = filled.Op
		a.Funcs = filled.Funcs.Concat(a.Funcs)
		return true
	case Combine:
		l := a.Left.FillHole(sub)
		r := a.Right.FillHole(sub)
		return l || r
	}
	return false
}

// HasHole reports whether any node of a is still a hole.
func (a *Atom) HasHole() bool {
	switch a.Kind {
	case Hole:
		return true
	case Combine:
		return a.Left.HasHole() || a.Right.HasHole()
	}
	return false
}

// Step addresses an intermediate value: the preorder index of a node and how
// many of its functions have been applied.
type Step struct {
	Value     float64
	Node      int
	FuncIndex int
}

// StepsWithEval lists every intermediate value in evaluation order. a must
// evaluate under full limits.
func (a *Atom) StepsWithEval() []Step {
	var (
		steps []Step
		next  int
	)
	var rec func(n *Atom) float64
	rec = func(n *Atom) float64 {
		id := next
		next++
		var (
			v  float64
			ok = true
		)
		switch n.Kind {
		case Number:
			v = n.Num
		case Combine:
			l := rec(n.Left)
			r := rec(n.Right)
			v, ok = n.Op.Apply(l, r)
		case Hole:
			panic("atom: stepping an unfilled hole")
		}
		if !ok {
			panic(fmt.Sprintf("atom: %s does not evaluate", a))
		}
		steps = append(steps, Step{Value: v, Node: id})
		for i := 0; i < n.Funcs.Len(); i++ {
			v, ok = n.Funcs.At(i).Apply(v)
			if !ok {
				panic(fmt.Sprintf("atom: %s does not evaluate", a))
			}
			steps = append(steps, Step{Value: v, Node: id, FuncIndex: i + 1})
		}
		return v
	}
	rec(a)
	return steps
}

// Split cuts a copy of a at step. The outer shell keeps the node's remaining
// functions on a hole; the inner atom is the node with the functions applied
// up to step.
func (a *Atom) Split(step Step) (outer, inner *Atom) {
	outer = a.Clone()
	next := 0
	var rec func(n *Atom) bool
	rec = func(n *Atom) bool {
		if next == step.Node {
			inner = &Atom{
				Kind:  n.Kind,
				Num:   n.Num,
				Left:  n.Left,
				Right: n.Right,
				Op:    n.Op,
				Funcs: n.Funcs.Slice(0, step.FuncIndex),
			}
			*n = Atom{Kind: Hole, Funcs: n.Funcs.Slice(step.FuncIndex, n.Funcs.Len())}
			return true
		}
		next++
		if n.Kind == Combine {
			return rec(n.Left) || rec(n.Right)
		}
		return false
	}
	if !rec(outer) {
		panic(fmt.Sprintf("atom: no node %d in %s", step.Node, a))
	}
	return outer, inner
}

// NumberCount counts number leaves.
func (a *Atom) NumberCount() int {
	switch a.Kind {
	case Number:
		return 1
	case Combine:
		return a.Left.NumberCount() + a.Right.NumberCount()
	}
	return 0
}

// Numbers lists the number leaves left to right.
func (a *Atom) Numbers() []float64 {
	var out []float64
	var rec func(n *Atom)
	rec = func(n *Atom) {
		switch n.Kind {
		case Number:
			out = append(out, n.Num)
		case Combine:
			rec(n.Left)
			rec(n.Right)
		}
	}
	rec(a)
	return out
}
