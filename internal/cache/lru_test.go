package cache

import "testing"

func TestLRUListOrder(t *testing.T) {
	l := newLRUList()

	l.access("a")
	l.access("b")
	l.access("c")

	if got := l.lru(); got != "a" {
		t.Errorf("lru = %q, want %q", got, "a")
	}

	// Touching "a" makes "b" the eviction candidate.
	l.access("a")
	if got := l.lru(); got != "b" {
		t.Errorf("lru after touch = %q, want %q", got, "b")
	}

	l.remove("b")
	if got := l.lru(); got != "c" {
		t.Errorf("lru after remove = %q, want %q", got, "c")
	}

	if l.len() != 2 {
		t.Errorf("len = %d, want 2", l.len())
	}
}

func TestLRUListEmpty(t *testing.T) {
	l := newLRUList()

	if got := l.lru(); got != "" {
		t.Errorf("lru of empty list = %q, want empty", got)
	}
	l.remove("missing")

	l.access("a")
	l.clear()
	if l.len() != 0 {
		t.Errorf("len after clear = %d, want 0", l.len())
	}
}
