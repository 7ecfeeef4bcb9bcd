package memo

import (
	"fmt"
	"math"
	"sync"

	"goalreach/internal/shape"
)

// Key identifies a structurally distinct subtree: a leaf with its value, or a
// branch with its side and children's keys. Equal subtrees get equal keys no
// matter which permutation or template produced them.
type Key uint32

type keyKind uint8

const (
	numLeaf keyKind = iota
	goalLeaf
	numBranch
	goalBranch
)

type keyParts struct {
	kind keyKind
	a, b uint64
}

type entry struct {
	vals  []Val
	once  sync.Once
	index *Index
}

// Memo caches the reachable values per key. Entries are append-only for the
// memo's lifetime; drop the whole memo when the search it served is done.
type Memo struct {
	keys    map[keyParts]Key
	parts   []keyParts
	entries []*entry
}

func New() *Memo {
	return &Memo{keys: make(map[keyParts]Key)}
}

func (m *Memo) intern(p keyParts) Key {
	if k, ok := m.keys[p]; ok {
		return k
	}
	k := Key(len(m.parts))
	m.keys[p] = k
	m.parts = append(m.parts, p)
	m.entries = append(m.entries, nil)
	return k
}

// LeafKey interns a leaf holding n.
func (m *Memo) LeafKey(n float64, kind shape.Kind) Key {
	kk := numLeaf
	if kind == shape.Goal {
		kk = goalLeaf
	}
	if n == 0 {
		n = 0 // fold -0
	}
	return m.intern(keyParts{kind: kk, a: math.Float64bits(n)})
}

// BranchKey interns a branch over two already interned children.
func (m *Memo) BranchKey(kind shape.Kind, left, right Key) Key {
	kk := numBranch
	if kind == shape.Goal {
		kk = goalBranch
	}
	return m.intern(keyParts{kind: kk, a: uint64(left), b: uint64(right)})
}

// Has reports whether values were stored under k.
func (m *Memo) Has(k Key) bool {
	return int(k) < len(m.entries) && m.entries[k] != nil
}

// Get returns the values stored under k. Asking for a key that was never
// solved is a bug in the caller and panics.
func (m *Memo) Get(k Key) []Val {
	if !m.Has(k) {
		panic(fmt.Sprintf("memo: key %s not solved", m.Describe(k)))
	}
	return m.entries[k].vals
}

// Set stores vals under k. A key is set at most once.
func (m *Memo) Set(k Key, vals []Val) {
	if int(k) >= len(m.entries) {
		panic(fmt.Sprintf("memo: key %d was not interned", k))
	}
	if m.entries[k] != nil {
		panic(fmt.Sprintf("memo: key %s set twice", m.Describe(k)))
	}
	m.entries[k] = &entry{vals: vals}
}

// Index returns the value lookup for k, building it on first use. Concurrent
// callers share one build.
func (m *Memo) Index(k Key) *Index {
	e := m.entries[k]
	if e == nil {
		panic(fmt.Sprintf("memo: key %s not solved", m.Describe(k)))
	}
	e.once.Do(func() { e.index = newIndex(e.vals) })
	return e.index
}

// Stats reports how many keys hold values and how many values they hold.
func (m *Memo) Stats() (keys, vals int) {
	for _, e := range m.entries {
		if e == nil {
			continue
		}
		keys++
		vals += len(e.vals)
	}
	return keys, vals
}

// Describe renders k in nested form, e.g. "G(N 2 G 19)".
func (m *Memo) Describe(k Key) string {
	if int(k) >= len(m.parts) {
		return fmt.Sprintf("#%d", k)
	}
	p := m.parts[k]
	switch p.kind {
	case numLeaf:
		return fmt.Sprintf("N %g", math.Float64frombits(p.a))
	case goalLeaf:
		return fmt.Sprintf("G %g", math.Float64frombits(p.a))
	case numBranch:
		return fmt.Sprintf("N(%s %s)", m.Describe(Key(p.a)), m.Describe(Key(p.b)))
	default:
		return fmt.Sprintf("G(%s %s)", m.Describe(Key(p.a)), m.Describe(Key(p.b)))
	}
}

// Index finds the positions of a value in a value list. Positions holding the
// same value are chained from the last one back to the first.
type Index struct {
	last map[float64]int32
	prev []int32
}

func newIndex(vals []Val) *Index {
	ix := &Index{
		last: make(map[float64]int32, len(vals)),
		prev: make([]int32, len(vals)),
	}
	for i, v := range vals {
		p, ok := ix.last[v.Num]
		if !ok {
			p = -1
		}
		ix.prev[i] = p
		ix.last[v.Num] = int32(i)
	}
	return ix
}

// Len is the number of distinct values.
func (ix *Index) Len() int {
	return len(ix.last)
}

// Lookup calls fn with every position holding n, last first, until fn returns
// false.
func (ix *Index) Lookup(n float64, fn func(i int) bool) {
	i, ok := ix.last[n]
	if !ok {
		return
	}
	for ; i >= 0; i = ix.prev[i] {
		if !fn(int(i)) {
			return
		}
	}
}
