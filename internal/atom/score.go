package atom

import (
	"fmt"

	"goalreach/internal/arith"
)

// MaxStackedSquareRoots is how many consecutive square roots on one node still
// count towards the score.
const MaxStackedSquareRoots = 4

// Score counts the structure an expression uses. Higher is better.
type Score struct {
	Nums     uint8
	Funcs    uint8
	PowerOps uint8
	RootOps  uint8
	// Bonus is 1 when every supplied number is used.
	Bonus uint8
}

// Value is the scalar the search orders scores by.
func (s Score) Value() int {
	return int(s.Nums) + int(s.Funcs) + int(s.PowerOps) + int(s.RootOps) + int(s.Bonus)
}

func (s Score) Add(o Score) Score {
	return Score{
		Nums:     s.Nums + o.Nums,
		Funcs:    s.Funcs + o.Funcs,
		PowerOps: s.PowerOps + o.PowerOps,
		RootOps:  s.RootOps + o.RootOps,
		Bonus:    s.Bonus + o.Bonus,
	}
}

// Ops is the number of power and root operations.
func (s Score) Ops() int {
	return int(s.PowerOps) + int(s.RootOps)
}

func (s Score) String() string {
	return fmt.Sprintf("%d (n: %d, o: %d, f: %d)", s.Value(), s.Nums, s.Ops(), s.Funcs)
}

// OpScore is the score contribution of a single operation.
func OpScore(op arith.Operation) Score {
	switch {
	case op.IsPower():
		return Score{PowerOps: 1}
	case op.IsRoot():
		return Score{RootOps: 1}
	}
	return Score{}
}

// FuncScore counts funcs, ignoring square roots stacked past
// MaxStackedSquareRoots in a row.
func FuncScore(funcs arith.FuncList) int {
	count, stacked := 0, 0
	for i := 0; i < funcs.Len(); i++ {
		if funcs.At(i) != arith.SquareRoot {
			stacked = 0
			count++
			continue
		}
		stacked++
		if stacked <= MaxStackedSquareRoots {
			count++
		}
	}
	return count
}

// Score rates a. available is how many numbers were supplied to the search.
func (a *Atom) Score(available int) Score {
	s := a.rawScore()
	if available > 0 && int(s.Nums) == available {
		s.Bonus = 1
	}
	return s
}

func (a *Atom) rawScore() Score {
	var s Score
	switch a.Kind {
	case Number:
		s.Nums = 1
	case Combine:
		s = a.Left.rawScore().Add(a.Right.rawScore()).Add(OpScore(a.Op))
	}
	s.Funcs += uint8(FuncScore(a.Funcs))
	return s
}
