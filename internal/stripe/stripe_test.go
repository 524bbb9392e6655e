package stripe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_StealVisitsDonorsInOrder(t *testing.T) {
	s := New(4)

	var visited []int
	ok := s.Steal(2,
		func(donor int) bool {
			visited = append(visited, donor)
			return false
		},
		func(int) { t.Fatal("commit without candidate") },
	)

	assert.False(t, ok)
	assert.Equal(t, []int{0, 1, 3}, visited)
}

func TestSet_StealCommitsFirstCandidate(t *testing.T) {
	s := New(3)

	committed := -1
	ok := s.Steal(0,
		func(donor int) bool { return donor == 1 },
		func(donor int) { committed = donor },
	)

	require.True(t, ok)
	assert.Equal(t, 1, committed)

	// All stripes are free again.
	for i := range s.Len() {
		s.Lock(i)
		s.Unlock(i)
	}
}

func TestSet_StealHoldsBothStripes(t *testing.T) {
	s := New(2)

	s.Steal(1,
		func(int) bool { return true },
		func(donor int) {
			assert.False(t, s.stripes[donor].mu.TryLock())
			assert.False(t, s.stripes[1].mu.TryLock())
			assert.False(t, s.global.TryLock())
		},
	)
}

func TestSet_ConcurrentStealersDoNotDeadlock(t *testing.T) {
	const n = 4
	s := New(n)

	var wg sync.WaitGroup
	for g := range 16 {
		wg.Add(1)
		go func(dst int) {
			defer wg.Done()
			for range 200 {
				s.Steal(dst, func(int) bool { return true }, func(int) {})
				s.Lock(dst)
				s.Unlock(dst)
			}
		}(g % n)
	}
	wg.Wait()
}

func TestNew_RejectsZeroStripes(t *testing.T) {
	assert.Panics(t, func() { New(0) })
}

func TestSet_EachHoldsGlobalAndOneStripe(t *testing.T) {
	s := New(3)

	var visited []int
	s.Each(func(i int) {
		visited = append(visited, i)
		assert.False(t, s.global.TryLock())
		assert.False(t, s.stripes[i].mu.TryLock())
		for j := range s.Len() {
			if j == i {
				continue
			}
			if assert.True(t, s.stripes[j].mu.TryLock(), "stripe %d held during visit of %d", j, i) {
				s.stripes[j].mu.Unlock()
			}
		}
	})

	assert.Equal(t, []int{0, 1, 2}, visited)
	require.True(t, s.global.TryLock())
	s.global.Unlock()
}
