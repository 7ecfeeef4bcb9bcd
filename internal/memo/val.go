package memo

import (
	"goalreach/internal/arith"
	"goalreach/internal/atom"
	"goalreach/internal/shape"
)

// Path records how a Val was produced: directly from its node's leaf, or by
// combining the values at Left and Right in the children's value lists.
type Path struct {
	Combine bool
	Op      arith.Operation
	Left    int32
	Right   int32
}

// Val is one reachable value at an arena node with enough provenance to
// rebuild the expression behind it.
type Val struct {
	Num    float64
	Origin float64
	Funcs  arith.FuncList
	Path   Path
	// Score is the additive projection of the final expression score. It never
	// undercounts.
	Score atom.Score
}

// NewPureLeaf is the value of a leaf before any function is applied. Number
// leaves count as one used number; the goal leaf counts nothing.
func NewPureLeaf(n float64, kind shape.Kind) Val {
	v := Val{Num: n, Origin: n}
	if kind == shape.Num {
		v.Score.Nums = 1
	}
	return v
}

// WithFuncs derives the value reached from v through funcs.
func (v Val) WithFuncs(num float64, funcs arith.FuncList) Val {
	out := v
	out.Num = num
	out.Origin = v.Num
	out.Funcs = funcs
	out.Score.Funcs += uint8(funcs.Len())
	return out
}

// Expansion is a value reached from a seed through a chain of functions.
type Expansion struct {
	Num   float64
	Funcs arith.FuncList
}

// ExpandFuncs applies every function, forward or inverse, breadth first for
// up to depth rounds. The seed itself is not included. Only integral values
// are extended further and duplicates are kept.
func ExpandFuncs(start float64, inverse bool, depth int) []Expansion {
	var out []Expansion
	frontier := []Expansion{{Num: start}}
	for round := 0; round < depth && len(frontier) > 0; round++ {
		var next []Expansion
		for _, e := range frontier {
			if !arith.IsInteger(e.Num) {
				continue
			}
			for _, f := range arith.Funcs {
				n, ok := f.ApplyDir(e.Num, inverse)
				if !ok {
					continue
				}
				next = append(next, Expansion{Num: n, Funcs: e.Funcs.Append(f)})
			}
		}
		out = append(out, next...)
		frontier = next
	}
	return out
}

// LeafVals lists the pure leaf followed by its function expansions. Goal
// leaves expand through inverse functions.
func LeafVals(n float64, kind shape.Kind, depth int) []Val {
	pure := NewPureLeaf(n, kind)
	exps := ExpandFuncs(n, kind == shape.Goal, depth)
	out := make([]Val, 0, len(exps)+1)
	out = append(out, pure)
	for _, e := range exps {
		out = append(out, pure.WithFuncs(e.Num, e.Funcs))
	}
	return out
}

// Combine joins l, found at position li of the left child's list, with r at
// position ri through op. Number pairs combine forward. When one side is on
// the goal path the operation is inverted: the result X satisfies
// op(number side, X) = goal side.
func Combine(l, r Val, li, ri int, op arith.Operation, leftKind, rightKind shape.Kind) (Val, bool) {
	num, other, inverse := l.Num, r.Num, false
	switch {
	case leftKind == shape.Num && rightKind == shape.Num:
	case leftKind == shape.Num && rightKind == shape.Goal:
		inverse = true
	case leftKind == shape.Goal && rightKind == shape.Num:
		num, other, inverse = r.Num, l.Num, true
	default:
		panic("memo: two goal children under one node")
	}
	n, ok := op.ApplyDir(num, other, inverse)
	if !ok {
		return Val{}, false
	}
	return Val{
		Num:    n,
		Origin: n,
		Path:   Path{Combine: true, Op: op, Left: int32(li), Right: int32(ri)},
		Score:  l.Score.Add(r.Score).Add(atom.OpScore(op)),
	}, true
}

// CombineVals joins two children's value lists through every operation.
func CombineVals(left, right []Val, leftKind, rightKind shape.Kind) []Val {
	var out []Val
	for li, l := range left {
		for ri, r := range right {
			for _, op := range arith.Operations {
				if v, ok := Combine(l, r, li, ri, op, leftKind, rightKind); ok {
					out = append(out, v)
				}
			}
		}
	}
	return out
}

// ExpandVals appends the function expansions of every value in vals.
func ExpandVals(vals []Val, inverse bool, depth int) []Val {
	n := len(vals)
	for i := 0; i < n; i++ {
		v := vals[i]
		for _, e := range ExpandFuncs(v.Num, inverse, depth) {
			vals = append(vals, v.WithFuncs(e.Num, e.Funcs))
		}
	}
	return vals
}
