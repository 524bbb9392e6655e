// Package sleeplock provides a long-term exclusive lock that remembers its
// holder.
//
// Unlike sync.Mutex, a Lock may be held across blocking operations such as
// device I/O, and the holder is identified by a token so ownership can be
// asserted.
package sleeplock

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Lock is an exclusive lock owned by a *T token.
type Lock[T any] struct {
	sem   *semaphore.Weighted
	owner atomic.Pointer[T]
}

// New returns an unlocked Lock.
func New[T any]() *Lock[T] {
	return &Lock[T]{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the lock is free and records owner as the holder.
func (l *Lock[T]) Acquire(owner *T) {
	// Acquire only fails when the context is done.
	_ = l.sem.Acquire(context.Background(), 1)
	l.owner.Store(owner)
}

// TryAcquire takes the lock for owner if it is free.
func (l *Lock[T]) TryAcquire(owner *T) bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.owner.Store(owner)
	return true
}

// Release gives up the lock. It reports false, leaving the lock untouched,
// if owner is not the current holder.
func (l *Lock[T]) Release(owner *T) bool {
	if owner == nil || !l.owner.CompareAndSwap(owner, nil) {
		return false
	}
	l.sem.Release(1)
	return true
}

// Holding reports whether owner currently holds the lock.
func (l *Lock[T]) Holding(owner *T) bool {
	return owner != nil && l.owner.Load() == owner
}
