package search

import (
	"context"
	"errors"

	"goalreach/internal/arith"
	"goalreach/internal/atom"
	"goalreach/internal/memo"
	"goalreach/internal/shape"
)

// noFloor accepts every candidate.
func noFloor() int { return -1 }

// yieldFunc receives accepted candidates and returns false to stop the joiner.
type yieldFunc func(score atom.Score, a *atom.Atom) bool

var errStopped = errors.New("search: stopped by caller")

// joiner runs the meet-in-the-middle search for one template pair. It is not
// safe for concurrent use; each worker owns its joiner and memo.
type joiner struct {
	pair      shape.Pair
	memo      *memo.Memo
	depth     int
	available int
	reduce    bool

	upLeaves   []int
	downLeaves []int
	downGoal   int
	upKeys     []memo.Key
	downKeys   []memo.Key

	// progress, when set, is called after every assignment with the work
	// done for it.
	progress func(candidates int64)
}

func newJoiner(pair shape.Pair, m *memo.Memo, depth, available int) *joiner {
	return &joiner{
		pair:       pair,
		memo:       m,
		depth:      depth,
		available:  available,
		reduce:     true,
		upLeaves:   pair.Up.NumLeaves(),
		downLeaves: pair.Down.NumLeaves(),
		downGoal:   pair.Down.GoalID(),
		upKeys:     make([]memo.Key, pair.Up.Len()),
		downKeys:   make([]memo.Key, pair.Down.Len()),
	}
}

func (j *joiner) assignments(nums []float64) [][]float64 {
	if j.reduce {
		return j.pair.Assignments(nums)
	}
	return j.pair.AllAssignments(nums)
}

// run visits every assignment of nums and yields candidates that reach goal
// and beat floor. It returns ctx.Err() when cancelled and nil when done or
// stopped by yield.
func (j *joiner) run(ctx context.Context, nums []float64, goal float64, floor func() int, yield yieldFunc) error {
	for _, perm := range j.assignments(nums) {
		if err := ctx.Err(); err != nil {
			return err
		}
		j.prepare(perm, goal)
		candidates, err := j.join(ctx, goal, floor, yield)
		if j.progress != nil {
			j.progress(candidates)
		}
		if errors.Is(err, errStopped) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// prepare keys both arenas for one assignment and makes sure every node the
// join reads is in the memo. The up root is streamed by join and never
// stored.
func (j *joiner) prepare(perm []float64, goal float64) {
	split := len(j.upLeaves)
	j.populate(j.pair.Up, j.upKeys, j.upLeaves, perm[:split], -1, goal)
	j.populate(j.pair.Down, j.downKeys, j.downLeaves, perm[split:], j.downGoal, goal)

	if root := j.pair.Up.Node(0); !root.IsLeaf() {
		j.solve(j.pair.Up, j.upKeys, root.Left)
		j.solve(j.pair.Up, j.upKeys, root.Right)
	}
	j.solve(j.pair.Down, j.downKeys, 0)
}

func (j *joiner) populate(arena *shape.Arena, keys []memo.Key, leaves []int, values []float64, goalID int, goal float64) {
	for i, id := range leaves {
		keys[id] = j.leaf(values[i], shape.Num)
	}
	if goalID >= 0 {
		keys[goalID] = j.leaf(goal, shape.Goal)
	}
	// children always have larger ids than their parent
	for id := arena.Len() - 1; id >= 0; id-- {
		if n := arena.Node(id); !n.IsLeaf() {
			keys[id] = j.memo.BranchKey(n.Kind, keys[n.Left], keys[n.Right])
		}
	}
}

func (j *joiner) leaf(n float64, kind shape.Kind) memo.Key {
	k := j.memo.LeafKey(n, kind)
	if !j.memo.Has(k) {
		j.memo.Set(k, memo.LeafVals(n, kind, j.depth))
	}
	return k
}

func (j *joiner) solve(arena *shape.Arena, keys []memo.Key, id int) {
	k := keys[id]
	if j.memo.Has(k) {
		return
	}
	n := arena.Node(id)
	if n.IsLeaf() {
		panic("search: leaf " + j.memo.Describe(k) + " was not seeded")
	}
	j.solve(arena, keys, n.Left)
	j.solve(arena, keys, n.Right)
	vals := memo.CombineVals(
		j.memo.Get(keys[n.Left]),
		j.memo.Get(keys[n.Right]),
		arena.Node(n.Left).Kind,
		arena.Node(n.Right).Kind,
	)
	j.memo.Set(k, memo.ExpandVals(vals, n.Kind == shape.Goal, j.depth))
}

// eachUpRoot streams the up root's values: every child combination through
// every operation, each followed by its function expansions. Child pairs whose
// score cannot exceed floor even with bonus extra points are skipped. It stops
// early when fn returns false.
func (j *joiner) eachUpRoot(ctx context.Context, floor func() int, bonus int, fn func(memo.Val) bool) error {
	up := j.pair.Up
	root := up.Node(0)
	if root.IsLeaf() {
		for _, v := range j.memo.Get(j.upKeys[0]) {
			if !fn(v) {
				return errStopped
			}
		}
		return nil
	}
	left := j.memo.Get(j.upKeys[root.Left])
	right := j.memo.Get(j.upKeys[root.Right])
	lk, rk := up.Node(root.Left).Kind, up.Node(root.Right).Kind
	// one power or root operation plus a full function expansion
	headroom := 1 + j.depth + bonus
	for li, l := range left {
		if err := ctx.Err(); err != nil {
			return err
		}
		for ri, r := range right {
			if l.Score.Value()+r.Score.Value()+headroom <= floor() {
				continue
			}
			for _, op := range arith.Operations {
				v, ok := memo.Combine(l, r, li, ri, op, lk, rk)
				if !ok {
					continue
				}
				if !fn(v) {
					return errStopped
				}
				for _, e := range memo.ExpandFuncs(v.Num, false, j.depth) {
					if !fn(v.WithFuncs(e.Num, e.Funcs)) {
						return errStopped
					}
				}
			}
		}
	}
	return nil
}

// join looks up every streamed up root value in the indexed down root and
// hands accepted candidates to yield.
func (j *joiner) join(ctx context.Context, goal float64, floor func() int, yield yieldFunc) (int64, error) {
	downKey := j.downKeys[0]
	downVals := j.memo.Get(downKey)
	if len(downVals) == 0 {
		return 0, nil
	}
	index := j.memo.Index(downKey)
	downMax := 0
	for _, v := range downVals {
		downMax = max(downMax, v.Score.Value())
	}

	var candidates int64
	err := j.eachUpRoot(ctx, floor, downMax+1, func(up memo.Val) bool {
		keep := true
		index.Lookup(up.Num, func(di int) bool {
			candidates++
			down := downVals[di]
			projected := up.Score.Add(down.Score)
			if int(projected.Nums) == j.available {
				projected.Bonus = 1
			}
			if projected.Value() <= floor() {
				return true
			}
			a := j.assemble(up, down)
			if !a.Test(goal) {
				return true
			}
			score := a.Score(j.available)
			if score.Value() <= floor() {
				return true
			}
			keep = yield(score, a)
			return keep
		})
		return keep
	})
	return candidates, err
}

// assemble rebuilds the expression for a joined pair of root values.
func (j *joiner) assemble(up, down memo.Val) *atom.Atom {
	sub := j.toAtom(j.pair.Up, j.upKeys, up, 0)
	a := j.toAtomRev(down)
	if !a.FillHole(sub) {
		panic("search: goal side of " + j.pair.String() + " has no hole")
	}
	return a
}

// toAtom rebuilds a number-side value forward from its path.
func (j *joiner) toAtom(arena *shape.Arena, keys []memo.Key, v memo.Val, id int) *atom.Atom {
	var a *atom.Atom
	if !v.Path.Combine {
		a = atom.NewNumber(v.Origin)
	} else {
		n := arena.Node(id)
		l := j.memo.Get(keys[n.Left])[v.Path.Left]
		r := j.memo.Get(keys[n.Right])[v.Path.Right]
		a = atom.NewCombine(
			j.toAtom(arena, keys, l, n.Left),
			j.toAtom(arena, keys, r, n.Right),
			v.Path.Op,
		)
	}
	a.Funcs = v.Funcs
	return a
}

// toAtomRev rebuilds the goal side forward. The down half was solved from the
// goal leaf towards the root, so the expression is rebuilt from the goal leaf
// outwards: each goal node becomes its sibling combined with its parent, and
// the root becomes the hole the up half is spliced into. Goal-side functions
// were applied as inverses and run forward in reverse order.
func (j *joiner) toAtomRev(root memo.Val) *atom.Atom {
	arena := j.pair.Down
	table := make([]memo.Val, arena.Len())
	var fill func(v memo.Val, id int)
	fill = func(v memo.Val, id int) {
		table[id] = v
		if !v.Path.Combine {
			return
		}
		n := arena.Node(id)
		fill(j.memo.Get(j.downKeys[n.Left])[v.Path.Left], n.Left)
		fill(j.memo.Get(j.downKeys[n.Right])[v.Path.Right], n.Right)
	}
	fill(root, 0)

	var rec func(id int) *atom.Atom
	rec = func(id int) *atom.Atom {
		n := arena.Node(id)
		if n.Kind == shape.Num {
			return j.toAtom(arena, j.downKeys, table[id], id)
		}
		var a *atom.Atom
		if n.Parent == shape.None {
			a = atom.NewHole()
		} else {
			p := arena.Node(n.Parent)
			sibling := p.Left
			if sibling == id {
				sibling = p.Right
			}
			a = atom.NewCombine(rec(sibling), rec(n.Parent), table[n.Parent].Path.Op)
		}
		a.Funcs = table[id].Funcs.Reverse()
		return a
	}
	return rec(j.downGoal)
}
