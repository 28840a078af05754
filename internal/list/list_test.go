package list

import "testing"

func TestPushAndOrder(t *testing.T) {
	l := New[int]()
	l.PushBack(1)
	l.PushBack(2)
	l.PushFront(0)

	got := []int{}
	l.Each(func(n *Node[int]) { got = append(got, n.Value()) })

	want := []int{0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}
}

func TestRemoveUnlinks(t *testing.T) {
	l := New[string]()
	a := l.PushBack("a")
	b := l.PushBack("b")
	c := l.PushBack("c")

	if v := b.Remove(); v != "b" {
		t.Fatalf("Remove() = %q, want %q", v, "b")
	}
	if b.Linked() {
		t.Fatal("b should be unlinked")
	}
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}

	got := []string{}
	l.Each(func(n *Node[string]) { got = append(got, n.Value()) })
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("got %v, want [a c]", got)
	}
	_ = a
	_ = c
}

func TestMoveToFrontAndBack(t *testing.T) {
	l := New[int]()
	l.PushBack(1)
	mid := l.PushBack(2)
	l.PushBack(3)

	l.MoveToFront(mid)
	if l.Front().Value() != 2 {
		t.Fatalf("Front() = %d, want 2", l.Front().Value())
	}

	l.MoveToBack(mid)
	if l.Back().Value() != 2 {
		t.Fatalf("Back() = %d, want 2", l.Back().Value())
	}
}

func TestEmptyList(t *testing.T) {
	l := New[int]()
	if !l.Empty() {
		t.Fatal("new list should be empty")
	}
	if l.Front() != nil || l.Back() != nil {
		t.Fatal("Front/Back of empty list should be nil")
	}
}
