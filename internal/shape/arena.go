package shape

import (
	"errors"
	"fmt"
	"strings"
)

// Kind tells which side of the join a node belongs to. Goal nodes are solved
// backwards from the goal value.
type Kind uint8

const (
	Num Kind = iota
	Goal
)

func (k Kind) String() string {
	if k == Goal {
		return "goal"
	}
	return "num"
}

// None marks a missing parent or child.
const None = -1

type Node struct {
	Kind   Kind
	Left   int
	Right  int
	Parent int
}

func (n Node) IsLeaf() bool {
	return n.Left == None
}

// Arena is the node graph of one tree template. Node 0 is the root and the two
// children of a branch always have consecutive ids.
type Arena struct {
	nodes []Node
}

var ErrInvalidTemplate = errors.New("invalid tree template")

// Parse reads a template drawn one level per line with connector lines in
// between:
//
//	 H
//	/ \
//	N G
//
// N and O are number-side nodes, G and H goal-side nodes. The tokens of each
// level pair up as children of the previous level's O and H nodes, left to
// right; N and G are always leaves, and an O or H with no children below is a
// leaf as well.
func Parse(template string) (*Arena, error) {
	var levels []string
	for _, line := range strings.Split(template, "\n") {
		if strings.TrimSpace(line) != "" {
			levels = append(levels, line)
		}
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("%w: empty template", ErrInvalidTemplate)
	}

	a := &Arena{}
	rootTokens := strings.Fields(levels[0])
	if len(rootTokens) != 1 {
		return nil, fmt.Errorf("%w: root level %q must hold one node", ErrInvalidTemplate, levels[0])
	}
	rootKind, _, err := parseToken(rootTokens[0])
	if err != nil {
		return nil, err
	}
	open := []int{a.add(rootKind, None)}

	for i := 2; i < len(levels); i += 2 {
		tokens := strings.Fields(levels[i])
		if len(tokens)%2 != 0 {
			return nil, fmt.Errorf("%w: level %q has an odd number of nodes", ErrInvalidTemplate, levels[i])
		}
		if len(tokens)/2 > len(open) {
			return nil, fmt.Errorf("%w: level %q has more pairs than open parents", ErrInvalidTemplate, levels[i])
		}
		var next []int
		for p := 0; p < len(tokens)/2; p++ {
			parent := open[p]
			ids := [2]int{}
			for c := 0; c < 2; c++ {
				kind, expandable, err := parseToken(tokens[2*p+c])
				if err != nil {
					return nil, err
				}
				ids[c] = a.add(kind, parent)
				if expandable {
					next = append(next, ids[c])
				}
			}
			a.nodes[parent].Left, a.nodes[parent].Right = ids[0], ids[1]
		}
		open = next
	}
	for id, n := range a.nodes {
		if !n.IsLeaf() && a.nodes[n.Left].Kind == Goal && a.nodes[n.Right].Kind == Goal {
			return nil, fmt.Errorf("%w: node %d has two goal children", ErrInvalidTemplate, id)
		}
	}
	return a, nil
}

// MustParse is Parse for package-level templates.
func MustParse(template string) *Arena {
	a, err := Parse(template)
	if err != nil {
		panic(err)
	}
	return a
}

func parseToken(tok string) (Kind, bool, error) {
	switch tok {
	case "N":
		return Num, false, nil
	case "O":
		return Num, true, nil
	case "G":
		return Goal, false, nil
	case "H":
		return Goal, true, nil
	}
	return Num, false, fmt.Errorf("%w: unknown node %q", ErrInvalidTemplate, tok)
}

func (a *Arena) add(kind Kind, parent int) int {
	a.nodes = append(a.nodes, Node{Kind: kind, Left: None, Right: None, Parent: parent})
	return len(a.nodes) - 1
}

func (a *Arena) Len() int {
	return len(a.nodes)
}

func (a *Arena) Node(id int) Node {
	return a.nodes[id]
}

// NumLeaves returns the ids of the number leaves in id order.
func (a *Arena) NumLeaves() []int {
	var out []int
	for id, n := range a.nodes {
		if n.Kind == Num && n.IsLeaf() {
			out = append(out, id)
		}
	}
	return out
}

// HasGoal reports whether the arena holds a goal leaf.
func (a *Arena) HasGoal() bool {
	for _, n := range a.nodes {
		if n.Kind == Goal && n.IsLeaf() {
			return true
		}
	}
	return false
}

// GoalID returns the id of the goal leaf. It panics when there is none.
func (a *Arena) GoalID() int {
	for id, n := range a.nodes {
		if n.Kind == Goal && n.IsLeaf() {
			return id
		}
	}
	panic("shape: tree has no goal leaf")
}

// PermMap has one entry per number leaf. An entry is true when the leaf is the
// left child of a number-side branch whose right child is also a number leaf:
// exchanging the two values yields the same reachable values, so only one
// order needs visiting.
func (a *Arena) PermMap() []bool {
	var out []bool
	for id, n := range a.nodes {
		if n.Kind != Num || !n.IsLeaf() {
			continue
		}
		pinned := false
		if n.Parent != None {
			p := a.nodes[n.Parent]
			sib := a.nodes[p.Right]
			pinned = p.Kind == Num && p.Left == id && sib.Kind == Num && sib.IsLeaf()
		}
		out = append(out, pinned)
	}
	return out
}

// String draws the arena back in nested form, e.g. "H(N H(N G))".
func (a *Arena) String() string {
	var b strings.Builder
	var rec func(id int)
	rec = func(id int) {
		n := a.nodes[id]
		switch {
		case n.Kind == Num && n.IsLeaf():
			b.WriteByte('N')
		case n.Kind == Goal && n.IsLeaf():
			b.WriteByte('G')
		default:
			if n.Kind == Num {
				b.WriteString("O(")
			} else {
				b.WriteString("H(")
			}
			rec(n.Left)
			b.WriteByte(' ')
			rec(n.Right)
			b.WriteByte(')')
		}
	}
	rec(0)
	return b.String()
}
