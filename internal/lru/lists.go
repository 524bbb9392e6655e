package lru

import "iter"

// None is returned when a walk runs off the end of a list.
const None = -1

// Lists is a set of doubly linked lists over element indices [0, n).
//
// Indices [n, n+lists) of the link arrays are the list sentinels:
// next[sentinel] is the head (most recent) and prev[sentinel] is the tail.
type Lists struct {
	n      int
	next   []int
	prev   []int
	owner  []int
	length []int
}

// New creates numLists empty lists able to hold elements [0, numElems).
func New(numElems, numLists int) *Lists {
	total := numElems + numLists
	l := &Lists{
		n:      numElems,
		next:   make([]int, total),
		prev:   make([]int, total),
		owner:  make([]int, numElems),
		length: make([]int, numLists),
	}

	for i := range numElems {
		l.next[i] = i
		l.prev[i] = i
		l.owner[i] = None
	}

	for li := range numLists {
		s := l.sentinel(li)
		l.next[s] = s
		l.prev[s] = s
	}

	return l
}

func (l *Lists) sentinel(list int) int {
	return l.n + list
}

// NumLists returns the number of lists.
func (l *Lists) NumLists() int {
	return len(l.length)
}

// Len returns the number of elements in list.
func (l *Lists) Len(list int) int {
	return l.length[list]
}

// Owner returns the list holding elem, or None if it is unlinked.
func (l *Lists) Owner(elem int) int {
	return l.owner[elem]
}

// PushFront links elem at the head of list. elem must be unlinked.
func (l *Lists) PushFront(list, elem int) {
	if l.owner[elem] != None {
		panic("lru: PushFront of linked element")
	}
	s := l.sentinel(list)
	head := l.next[s]

	l.next[elem] = head
	l.prev[elem] = s
	l.prev[head] = elem
	l.next[s] = elem

	l.owner[elem] = list
	l.length[list]++
}

// Remove unlinks elem from its list.
func (l *Lists) Remove(elem int) {
	list := l.owner[elem]
	if list == None {
		return
	}
	n, p := l.next[elem], l.prev[elem]
	l.prev[n] = p
	l.next[p] = n

	l.next[elem] = elem
	l.prev[elem] = elem
	l.owner[elem] = None
	l.length[list]--
}

// MoveToFront relinks elem at the head of the list it is in.
func (l *Lists) MoveToFront(elem int) {
	list := l.owner[elem]
	if list == None {
		panic("lru: MoveToFront of unlinked element")
	}
	if l.next[l.sentinel(list)] == elem {
		return
	}
	l.Remove(elem)
	l.PushFront(list, elem)
}

// Move unlinks elem from its current list and links it at the head of dst.
// Both lists must be guarded by the caller.
func (l *Lists) Move(elem, dst int) {
	l.Remove(elem)
	l.PushFront(dst, elem)
}

// Front returns the most recently linked element of list, or None.
func (l *Lists) Front(list int) int {
	return l.elem(l.next[l.sentinel(list)])
}

// Back returns the least recently linked element of list, or None.
func (l *Lists) Back(list int) int {
	return l.elem(l.prev[l.sentinel(list)])
}

// Next returns the element after elem (towards the tail), or None.
func (l *Lists) Next(elem int) int {
	return l.elem(l.next[elem])
}

// Prev returns the element before elem (towards the head), or None.
func (l *Lists) Prev(elem int) int {
	return l.elem(l.prev[elem])
}

func (l *Lists) elem(i int) int {
	if i >= l.n {
		return None
	}
	return i
}

// All iterates list from head (most recent) to tail.
func (l *Lists) All(list int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for e := l.Front(list); e != None; e = l.Next(e) {
			if !yield(e) {
				return
			}
		}
	}
}

// Backward iterates list from tail (least recent) to head.
func (l *Lists) Backward(list int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for e := l.Back(list); e != None; e = l.Prev(e) {
			if !yield(e) {
				return
			}
		}
	}
}
