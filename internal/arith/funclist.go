package arith

import (
	"fmt"
	"strings"
)

// MaxFuncListLen is the capacity of a FuncList.
const MaxFuncListLen = 32

// FuncList is an ordered list of functions, innermost first, packed two bits
// per entry so value-state records stay small and copy by value.
type FuncList struct {
	bits uint64
	n    uint8
}

func NewFuncList(funcs ...Func) FuncList {
	var l FuncList
	for _, f := range funcs {
		l = l.Append(f)
	}
	return l
}

func (l FuncList) Len() int {
	return int(l.n)
}

func (l FuncList) At(i int) Func {
	if i < 0 || i >= int(l.n) {
		panic(fmt.Sprintf("arith: func list index %d out of range [0,%d)", i, l.n))
	}
	return Func((l.bits >> (2 * uint(i))) & 0b11)
}

// Append returns l with f added as the new outermost function.
func (l FuncList) Append(f Func) FuncList {
	if l.n >= MaxFuncListLen {
		panic("arith: func list overflow")
	}
	if f < SquareRoot || f > Summation {
		panic(fmt.Sprintf("arith: unknown function %d", f))
	}
	l.bits |= uint64(f) << (2 * uint(l.n))
	l.n++
	return l
}

// AppendN appends f count times.
func (l FuncList) AppendN(f Func, count int) FuncList {
	for i := 0; i < count; i++ {
		l = l.Append(f)
	}
	return l
}

// Concat returns l followed by other.
func (l FuncList) Concat(other FuncList) FuncList {
	for i := 0; i < other.Len(); i++ {
		l = l.Append(other.At(i))
	}
	return l
}

func (l FuncList) Reverse() FuncList {
	var out FuncList
	for i := l.Len() - 1; i >= 0; i-- {
		out = out.Append(l.At(i))
	}
	return out
}

// Slice returns entries [from, to).
func (l FuncList) Slice(from, to int) FuncList {
	var out FuncList
	for i := from; i < to; i++ {
		out = out.Append(l.At(i))
	}
	return out
}

func (l FuncList) Funcs() []Func {
	out := make([]Func, l.Len())
	for i := range out {
		out[i] = l.At(i)
	}
	return out
}

// Run is a maximal stretch of the same function.
type Run struct {
	Func  Func
	Count int
}

// Runs groups consecutive identical functions.
func (l FuncList) Runs() []Run {
	var runs []Run
	for i := 0; i < l.Len(); i++ {
		f := l.At(i)
		if len(runs) > 0 && runs[len(runs)-1].Func == f {
			runs[len(runs)-1].Count++
			continue
		}
		runs = append(runs, Run{Func: f, Count: 1})
	}
	return runs
}

func (l FuncList) String() string {
	parts := make([]string, l.Len())
	for i := range parts {
		parts[i] = l.At(i).String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
