// Package list provides a small intrusive doubly linked list, parameterized
// over the element type. Buddy's per-order free lists and slab's per-cache
// fully-free/partial/full lists are both straightforward instances of it.
package list

// Node holds one value in a List; PushFront/PushBack create it and hand
// it back so the value can be unlinked in O(1) later. A Node belongs to
// at most one List at a time; pushing it onto a second list without
// removing it from the first corrupts both.
type Node[T any] struct {
	prev, next *Node[T]
	list       *List[T]
	value      T
}

// Value returns the element stored at this node.
func (n *Node[T]) Value() T { return n.value }

// SetValue replaces the element stored at this node.
func (n *Node[T]) SetValue(v T) { n.value = v }

// List is a circular doubly linked list with a sentinel root node, in the
// usual container/list style, but over Node[T] so callers can hold onto a
// *Node[T] and unlink it in O(1) without a search.
type List[T any] struct {
	root Node[T]
	len  int
}

// New returns an empty, ready-to-use list.
func New[T any]() *List[T] {
	l := &List[T]{}
	l.root.next = &l.root
	l.root.prev = &l.root
	l.root.list = l
	return l
}

// Len returns the number of elements in the list.
func (l *List[T]) Len() int { return l.len }

// Empty reports whether the list has no elements.
func (l *List[T]) Empty() bool { return l.len == 0 }

func (l *List[T]) lazyInit() {
	if l.root.next == nil {
		l.root.next = &l.root
		l.root.prev = &l.root
		l.root.list = l
	}
}

func (l *List[T]) insertAfter(n, at *Node[T]) *Node[T] {
	n.prev = at
	n.next = at.next
	n.prev.next = n
	n.next.prev = n
	n.list = l
	l.len++
	return n
}

// PushFront inserts v at the head of the list and returns its node.
func (l *List[T]) PushFront(v T) *Node[T] {
	l.lazyInit()
	n := &Node[T]{value: v}
	return l.insertAfter(n, &l.root)
}

// PushBack inserts v at the tail of the list and returns its node.
func (l *List[T]) PushBack(v T) *Node[T] {
	l.lazyInit()
	n := &Node[T]{value: v}
	return l.insertAfter(n, l.root.prev)
}

// Front returns the head node, or nil if the list is empty.
func (l *List[T]) Front() *Node[T] {
	if l.len == 0 {
		return nil
	}
	return l.root.next
}

// Back returns the tail node, or nil if the list is empty.
func (l *List[T]) Back() *Node[T] {
	if l.len == 0 {
		return nil
	}
	return l.root.prev
}

// Remove unlinks n from whichever list it belongs to. It is a no-op if n is
// not currently linked. Returns n's stored value.
func (n *Node[T]) Remove() T {
	if n.list != nil {
		n.prev.next = n.next
		n.next.prev = n.prev
		n.list.len--
		n.list = nil
		n.prev = nil
		n.next = nil
	}
	return n.value
}

// Linked reports whether n currently belongs to a list.
func (n *Node[T]) Linked() bool { return n.list != nil }

// MoveToFront removes n from the list (any of them, since PushFront/Back
// only ever look at the node's own links) and pushes it back in front.
func (l *List[T]) MoveToFront(n *Node[T]) {
	n.Remove()
	l.lazyInit()
	l.insertAfter(n, &l.root)
}

// MoveToBack removes n and pushes it back at the tail.
func (l *List[T]) MoveToBack(n *Node[T]) {
	n.Remove()
	l.lazyInit()
	l.insertAfter(n, l.root.prev)
}

// Each calls fn for every node from front to back. fn must not mutate the
// list; use PopFront-style extraction for that.
func (l *List[T]) Each(fn func(*Node[T])) {
	for n := l.Front(); n != nil; {
		next := n.next
		fn(n)
		if next == &l.root {
			return
		}
		n = next
	}
}
