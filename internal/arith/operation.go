package arith

import (
	"fmt"
	"math"
)

// Operation is a binary relation between a left and right operand. Switched
// variants evaluate with their operands exchanged so tree code never needs an
// argument-order flag.
type Operation uint8

const (
	Add Operation = iota
	Multiply
	Subtract
	SubtractSwitch
	Divide
	DivideSwitch
	Power
	PowerSwitch
	Root
	RootSwitch
)

// Operations lists every operation in enumeration order.
var Operations = [...]Operation{
	Add,
	Multiply,
	Subtract,
	SubtractSwitch,
	Divide,
	DivideSwitch,
	Power,
	PowerSwitch,
	Root,
	RootSwitch,
}

func (op Operation) ApplyNoLimit(left, right float64) (float64, bool) {
	var (
		res float64
		ok  = true
	)
	switch op {
	case Add:
		res = left + right
	case Multiply:
		res = left * right
	case Subtract:
		res = left - right
	case SubtractSwitch:
		res = right - left
	case Divide:
		res, ok = divide(left, right)
	case DivideSwitch:
		res, ok = divide(right, left)
	case Power:
		res, ok = Pow(left, right)
	case PowerSwitch:
		res, ok = Pow(right, left)
	case Root:
		res, ok = NthRoot(left, right)
	case RootSwitch:
		res, ok = NthRoot(right, left)
	default:
		panic(fmt.Sprintf("arith: unknown operation %d", op))
	}
	if !ok || math.IsNaN(res) {
		return 0, false
	}
	return res, true
}

// Apply evaluates the operation and rejects results outside the magnitude limit.
func (op Operation) Apply(left, right float64) (float64, bool) {
	res, ok := op.ApplyNoLimit(left, right)
	if !ok || !WithinLimit(res) {
		return 0, false
	}
	return res, true
}

func (op Operation) ApplyLimit(left, right float64, limit bool) (float64, bool) {
	if limit {
		return op.Apply(left, right)
	}
	return op.ApplyNoLimit(left, right)
}

// Inverse solves op(num, x) = res for x.
func (op Operation) Inverse(num, res float64) (float64, bool) {
	var (
		x  float64
		ok = true
	)
	switch op {
	case Add:
		x = res - num
	case Multiply:
		if num == 0 {
			return 0, false
		}
		x = res / num
	case Subtract:
		x = num - res
	case SubtractSwitch:
		x = res + num
	case Divide:
		if res == 0 {
			return 0, false
		}
		x = num / res
	case DivideSwitch:
		if num == 0 {
			return 0, false
		}
		x = res * num
	case Power:
		x, ok = logBase(num, res)
	case PowerSwitch:
		x, ok = NthRoot(num, res)
	case Root:
		if num == 0 {
			return 0, false
		}
		x, ok = Pow(res, num)
	case RootSwitch:
		var inv float64
		inv, ok = logBase(num, res)
		if ok && inv != 0 {
			x = snap(1 / inv)
		} else {
			ok = false
		}
	default:
		panic(fmt.Sprintf("arith: unknown operation %d", op))
	}
	if !ok || !WithinLimit(x) {
		return 0, false
	}
	x = snap(x)
	// Powers and roots are not injective over the reals; keep only solutions
	// the forward evaluation actually reaches.
	if op.IsPower() || op.IsRoot() {
		got, ok := op.ApplyNoLimit(num, x)
		if !ok || math.Abs(got-res) > RoundingError*math.Max(1, math.Abs(res)) {
			return 0, false
		}
	}
	return x, true
}

// ApplyDir runs the forward evaluation, or the inverse when inverse is set.
func (op Operation) ApplyDir(num, other float64, inverse bool) (float64, bool) {
	if inverse {
		return op.Inverse(num, other)
	}
	return op.Apply(num, other)
}

func (op Operation) IsSwitched() bool {
	switch op {
	case SubtractSwitch, DivideSwitch, PowerSwitch, RootSwitch:
		return true
	}
	return false
}

func (op Operation) IsPower() bool {
	return op == Power || op == PowerSwitch
}

func (op Operation) IsRoot() bool {
	return op == Root || op == RootSwitch
}

// Symbol returns the infix symbol shared by an operation and its switched form.
func (op Operation) Symbol() string {
	switch op {
	case Add:
		return "+"
	case Multiply:
		return "*"
	case Subtract, SubtractSwitch:
		return "-"
	case Divide, DivideSwitch:
		return "/"
	case Power, PowerSwitch:
		return "^"
	case Root, RootSwitch:
		return "√"
	}
	return "?"
}

func (op Operation) String() string {
	switch op {
	case Add:
		return "add"
	case Multiply:
		return "multiply"
	case Subtract:
		return "subtract"
	case SubtractSwitch:
		return "subtract_switch"
	case Divide:
		return "divide"
	case DivideSwitch:
		return "divide_switch"
	case Power:
		return "power"
	case PowerSwitch:
		return "power_switch"
	case Root:
		return "root"
	case RootSwitch:
		return "root_switch"
	}
	return fmt.Sprintf("operation(%d)", uint8(op))
}

func divide(left, right float64) (float64, bool) {
	if right == 0 {
		return 0, false
	}
	return left / right, true
}
