package shape

import "fmt"

// MaxNumbers is the largest number count a template set exists for.
const MaxNumbers = 5

// Template is a tree split into the number-rooted up half and the goal-rooted
// down half. The up half's value is spliced into the down half's root.
type Template struct {
	Up   string
	Down string
}

var templates = map[int][]Template{
	5: {
		{
			Up: `
			   O
			  / \
			  N O
			   / \
			   N O
			`,
			Down: `
			  H
			 / \
			 N H
			  / \
			  N G
			`,
		},
		{
			Up: `
			  O
			 / \
			 N O
			  / \
			  N O
			`,
			Down: `
			   H
			  / \
			  O G
			 / \
			 N N
			`,
		},
		{
			Up: `
			     O
			   /   \
			   O   O
			  / \ / \
			  N N N N
			`,
			Down: `
			   H
			  / \
			  N G
			`,
		},
	},
	4: {
		{
			Up: `
			   O
			  / \
			  N N
			`,
			Down: `
			  H
			 / \
			 N H
			  / \
			  N G
			`,
		},
		{
			Up: `
			   O
			  / \
			  N N
			`,
			Down: `
			   H
			  / \
			  O G
			 / \
			 N N
			`,
		},
	},
	3: {
		{
			Up: `
			  O
			 / \
			 N N
			`,
			Down: `
			  H
			 / \
			 N G
			`,
		},
	},
	2: {
		{
			Up: `
			  O
			 / \
			 N N
			`,
			Down: `
			  G
			`,
		},
	},
	1: {
		{
			Up: `
			  N
			`,
			Down: `
			  G
			`,
		},
	},
}

// Pair is a parsed Template.
type Pair struct {
	Up   *Arena
	Down *Arena
}

// Leaves is the number of values a pair consumes.
func (p Pair) Leaves() int {
	return len(p.Up.NumLeaves()) + len(p.Down.NumLeaves())
}

// PermMap concatenates the up and down permutation maps in leaf order.
func (p Pair) PermMap() []bool {
	return append(p.Up.PermMap(), p.Down.PermMap()...)
}

func (p Pair) String() string {
	return p.Up.String() + " | " + p.Down.String()
}

var pairs = parseAll()

func parseAll() map[int][]Pair {
	out := make(map[int][]Pair, len(templates))
	for count, ts := range templates {
		for i, t := range ts {
			p := Pair{Up: MustParse(t.Up), Down: MustParse(t.Down)}
			if p.Up.HasGoal() || !p.Down.HasGoal() || p.Leaves() != count {
				panic(fmt.Sprintf("shape: template %d for %d numbers is malformed: %s", i, count, p))
			}
			out[count] = append(out[count], p)
		}
	}
	return out
}

// Pairs returns the template pairs that use exactly count numbers. Arenas are
// shared and must not be modified.
func Pairs(count int) []Pair {
	ps, ok := pairs[count]
	if !ok {
		panic(fmt.Sprintf("shape: no tree templates for %d numbers", count))
	}
	return ps
}
