package sleeplock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type token struct{ id int }

func TestLock_Ownership(t *testing.T) {
	l := New[token]()
	a, b := &token{1}, &token{2}

	l.Acquire(a)
	assert.True(t, l.Holding(a))
	assert.False(t, l.Holding(b))
	assert.False(t, l.Holding(nil))

	assert.False(t, l.Release(b), "non-holder must not release")
	assert.True(t, l.Holding(a))

	require.True(t, l.Release(a))
	assert.False(t, l.Holding(a))
	assert.False(t, l.Release(a), "double release")
}

func TestLock_TryAcquire(t *testing.T) {
	l := New[token]()
	a, b := &token{1}, &token{2}

	require.True(t, l.TryAcquire(a))
	assert.False(t, l.TryAcquire(b))
	require.True(t, l.Release(a))
	assert.True(t, l.TryAcquire(b))
}

func TestLock_BlocksSecondAcquirer(t *testing.T) {
	l := New[token]()
	a, b := &token{1}, &token{2}
	l.Acquire(a)

	var got atomic.Bool
	done := make(chan struct{})
	go func() {
		l.Acquire(b)
		got.Store(true)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, got.Load())

	require.True(t, l.Release(a))
	<-done
	assert.True(t, l.Holding(b))
}

func TestLock_MutualExclusion(t *testing.T) {
	l := New[token]()

	var inside atomic.Int32
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			tok := &token{id}
			for range 100 {
				l.Acquire(tok)
				if inside.Add(1) != 1 {
					t.Error("two holders at once")
				}
				inside.Add(-1)
				l.Release(tok)
			}
		}(i)
	}
	wg.Wait()
}
