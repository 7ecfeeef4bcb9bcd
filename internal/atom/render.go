package atom

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FormatNum renders n the shortest way that round-trips.
func FormatNum(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// String renders the expression in display notation. Switched operations show
// their operands in evaluation order, every combination is parenthesized and
// function applications are grouped so the text reads in the order they run.
func (a *Atom) String() string {
	var b strings.Builder
	a.render(&b)
	return b.String()
}

func (a *Atom) render(b *strings.Builder) {
	var inner strings.Builder
	switch a.Kind {
	case Number:
		inner.WriteString(FormatNum(a.Num))
	case Combine:
		left, right := a.Left, a.Right
		if a.Op.IsSwitched() {
			left, right = right, left
		}
		inner.WriteByte('(')
		left.render(&inner)
		inner.WriteByte(' ')
		inner.WriteString(a.Op.Symbol())
		inner.WriteByte(' ')
		right.render(&inner)
		inner.WriteByte(')')
	case Hole:
		inner.WriteString("[hole]")
	}

	s := inner.String()
	lastPostfix := false
	for i := 0; i < a.Funcs.Len(); i++ {
		f := a.Funcs.At(i)
		switch {
		case f.Postfix() && (i > 0 || a.Kind == Number && strings.HasPrefix(s, "-")):
			s = "(" + s + ")" + f.Symbol()
		case f.Postfix():
			s += f.Symbol()
		case lastPostfix:
			s = f.Symbol() + "(" + s + ")"
		default:
			s = f.Symbol() + s
		}
		lastPostfix = f.Postfix()
	}
	b.WriteString(s)
}

// Trace evaluates a without the magnitude bound and returns one line per
// operation and function application, innermost first. ok is false when some
// step is undefined; the lines up to that step are still returned.
func (a *Atom) Trace() (lines []string, value float64, ok bool) {
	var b strings.Builder
	value, ok = a.WriteTrace(&b)
	text := strings.TrimSuffix(b.String(), "\n")
	if text != "" {
		lines = strings.Split(text, "\n")
	}
	return lines, value, ok
}

// WriteTrace is Trace writing each line to w.
func (a *Atom) WriteTrace(w io.Writer) (float64, bool) {
	var (
		n  float64
		ok = true
	)
	switch a.Kind {
	case Number:
		n = a.Num
	case Combine:
		l, okL := a.Left.WriteTrace(w)
		if !okL {
			return 0, false
		}
		r, okR := a.Right.WriteTrace(w)
		if !okR {
			return 0, false
		}
		n, ok = a.Op.ApplyNoLimit(l, r)
		if a.Op.IsSwitched() {
			l, r = r, l
		}
		if !ok {
			fmt.Fprintf(w, "%s %s %s = undefined\n", FormatNum(l), a.Op.Symbol(), FormatNum(r))
			return 0, false
		}
		fmt.Fprintf(w, "%s %s %s = %s\n", FormatNum(l), a.Op.Symbol(), FormatNum(r), FormatNum(n))
	case Hole:
		panic("atom: tracing an unfilled hole")
	}
	for i := 0; i < a.Funcs.Len(); i++ {
		f := a.Funcs.At(i)
		var res float64
		res, ok = f.ApplyNoLimit(n)
		if !ok {
			fmt.Fprintf(w, "%s(%s) = undefined\n", f.Symbol(), FormatNum(n))
			return 0, false
		}
		fmt.Fprintf(w, "%s(%s) = %s\n", f.Symbol(), FormatNum(n), FormatNum(res))
		n = res
	}
	return n, true
}
