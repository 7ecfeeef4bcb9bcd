package shape

import (
	"slices"
	"strconv"
)

// Assignments enumerates the ways to place values from nums onto the pair's
// number leaves, up leaves first, each value used at most once. Assignments
// that only exchange operands of a number-side branch reach the same values
// and are visited once.
func (p Pair) Assignments(nums []float64) [][]float64 {
	return p.assignments(nums, true)
}

// AllAssignments is Assignments without symmetry reduction.
func (p Pair) AllAssignments(nums []float64) [][]float64 {
	return p.assignments(nums, false)
}

func (p Pair) assignments(nums []float64, reduce bool) [][]float64 {
	k := p.Leaves()
	if k > len(nums) {
		return nil
	}
	pinned := p.PermMap()
	split := len(p.Up.NumLeaves())

	var (
		out  [][]float64
		seen = make(map[string]struct{})
		perm = make([]float64, 0, k)
		used = make([]bool, len(nums))
	)
	var rec func()
	rec = func() {
		if len(perm) == k {
			if reduce {
				sig := p.Up.signature(perm[:split]) + "|" + p.Down.signature(perm[split:])
				if _, dup := seen[sig]; dup {
					return
				}
				seen[sig] = struct{}{}
			}
			out = append(out, slices.Clone(perm))
			return
		}
		pos := len(perm)
		for i, n := range nums {
			if used[i] {
				continue
			}
			if reduce && pos > 0 && pinned[pos-1] && perm[pos-1] > n {
				continue
			}
			used[i] = true
			perm = append(perm, n)
			rec()
			perm = perm[:pos]
			used[i] = false
		}
	}
	rec()
	return out
}

// signature canonicalizes the arena filled with values: number-side branches
// sort their children, goal-side branches keep their order.
func (a *Arena) signature(values []float64) string {
	leafValue := make(map[int]float64, len(values))
	for i, id := range a.NumLeaves() {
		leafValue[id] = values[i]
	}
	var rec func(id int) string
	rec = func(id int) string {
		n := a.nodes[id]
		if n.IsLeaf() {
			if n.Kind == Goal {
				return "G"
			}
			return strconv.FormatFloat(leafValue[id], 'g', -1, 64)
		}
		l, r := rec(n.Left), rec(n.Right)
		if n.Kind == Num {
			if r < l {
				l, r = r, l
			}
			return "(" + l + " " + r + ")"
		}
		return "[" + l + " " + r + "]"
	}
	return rec(0)
}
