// Package lru provides recency lists over a fixed arena of element indices.
//
// A Lists value holds several doubly linked lists that share one link arena.
// Every element index belongs to at most one list at a time. Links are plain
// indices into the arena, so moving an element between lists never touches
// the element payload and costs O(1).
//
// Lists performs no locking. Callers guard each list (and the elements in it)
// with their own lock; operations on different lists touch disjoint parts of
// the arena.
package lru
