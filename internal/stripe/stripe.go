// Package stripe provides the lock set guarding a sharded buffer pool.
//
// A Set exposes exactly two acquisition shapes for mutation:
//
//   - Lock/Unlock a single stripe. Outside stealing, a goroutine holds at
//     most one stripe at a time.
//   - Steal, which takes the global lock, then each donor stripe in turn,
//     then (nested) the destination stripe.
//
// Only one goroutine is ever inside Steal, so the donor-then-destination
// nesting cannot form a cycle with another goroutine. Each, used for
// inspection, follows the same global-then-stripe order without nesting.
package stripe

import (
	"sync"

	"golang.org/x/sys/cpu"
)

type stripe struct {
	mu sync.Mutex
	_  cpu.CacheLinePad
}

// Set is a fixed number of stripe locks plus the global steal lock.
type Set struct {
	global  sync.Mutex
	stripes []stripe
}

// New creates a Set with n stripes.
func New(n int) *Set {
	if n < 1 {
		panic("stripe: need at least one stripe")
	}
	return &Set{stripes: make([]stripe, n)}
}

// Len returns the number of stripes.
func (s *Set) Len() int {
	return len(s.stripes)
}

// Lock acquires stripe i.
func (s *Set) Lock(i int) {
	s.stripes[i].mu.Lock()
}

// Unlock releases stripe i.
func (s *Set) Unlock(i int) {
	s.stripes[i].mu.Unlock()
}

// Steal runs the cross-stripe protocol for destination dst.
//
// Holding the global lock, it visits every stripe other than dst in
// ascending order with that stripe locked and calls take(donor). When take
// reports a candidate, dst is locked as well and commit(donor) runs with the
// global lock, the donor stripe and dst all held. Steal returns false if no
// donor produced a candidate. The caller must not hold any stripe.
func (s *Set) Steal(dst int, take func(donor int) bool, commit func(donor int)) bool {
	s.global.Lock()
	defer s.global.Unlock()

	for i := range s.stripes {
		if i == dst {
			continue
		}
		s.Lock(i)
		if take(i) {
			s.Lock(dst)
			commit(i)
			s.Unlock(dst)
			s.Unlock(i)
			return true
		}
		s.Unlock(i)
	}
	return false
}

// Each calls fn for every stripe in ascending order with the global lock and
// stripe i held. No buffer can change stripes while Each runs, so fn observes
// a consistent membership. The caller must not hold any stripe.
func (s *Set) Each(fn func(i int)) {
	s.global.Lock()
	defer s.global.Unlock()

	for i := range s.stripes {
		s.Lock(i)
		fn(i)
		s.Unlock(i)
	}
}
