package search

import (
	"sync"
	"sync/atomic"
)

// floor is the best score reported so far by any worker of one solve.
// Workers read it lock free to prune; reports go through Offer so they reach
// the sink in strictly increasing score order.
type floor struct {
	best atomic.Int64
	mu   sync.Mutex
}

func newFloor() *floor {
	f := &floor{}
	f.best.Store(-1)
	return f
}

func (f *floor) Value() int {
	return int(f.best.Load())
}

// Offer raises the floor to score and calls report, both under the lock, when
// score beats the current floor.
func (f *floor) Offer(score int, report func()) bool {
	if score <= f.Value() {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if score <= f.Value() {
		return false
	}
	f.best.Store(int64(score))
	report()
	return true
}
