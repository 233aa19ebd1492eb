package cache

import (
	"container/list"
)

// lruList tracks key recency for one tier. Front is most recently used,
// back is the eviction candidate. Not safe for concurrent use; callers hold
// the owning tier's lock.
type lruList struct {
	elems map[string]*list.Element
	ll    *list.List
}

func newLRUList() *lruList {
	return &lruList{
		elems: make(map[string]*list.Element),
		ll:    list.New(),
	}
}

// access marks key as most recently used, inserting it if unknown.
func (l *lruList) access(key string) {
	if elem, ok := l.elems[key]; ok {
		l.ll.MoveToFront(elem)
		return
	}
	l.elems[key] = l.ll.PushFront(key)
}

// lru returns the least recently used key, or "" when empty.
func (l *lruList) lru() string {
	elem := l.ll.Back()
	if elem == nil {
		return ""
	}
	return elem.Value.(string)
}

func (l *lruList) remove(key string) {
	if elem, ok := l.elems[key]; ok {
		l.ll.Remove(elem)
		delete(l.elems, key)
	}
}

func (l *lruList) clear() {
	l.elems = make(map[string]*list.Element)
	l.ll.Init()
}

func (l *lruList) len() int {
	return l.ll.Len()
}
