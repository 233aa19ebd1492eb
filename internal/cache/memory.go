package cache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/framekit/framekit/pkg/types"
)

// memEntry is an in-memory cache entry (GPU and RAM tiers).
type memEntry struct {
	key         string
	data        []byte
	size        int64
	created     time.Time
	lastAccess  time.Time
	accessCount uint32
}

// memTier is a size-bounded in-memory tier with LRU eviction order. The
// GPU tier uses the same representation as the RAM tier; the distinction
// is capacity and probe order, the backing bytes live in process memory
// either way (the renderer uploads on use).
type memTier struct {
	mu       sync.Mutex
	id       types.TierID
	capacity int64
	used     int64
	items    map[string]*memEntry
	lru      *lruList
	clock    clock.Clock
}

func newMemTier(id types.TierID, capacity int64, clk clock.Clock) *memTier {
	return &memTier{
		id:       id,
		capacity: capacity,
		items:    make(map[string]*memEntry),
		lru:      newLRUList(),
		clock:    clk,
	}
}

// get returns a copy of the stored payload and refreshes recency.
func (t *memTier) get(key string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.items[key]
	if !ok {
		return nil, false
	}

	item.lastAccess = t.clock.Now()
	item.accessCount++
	t.lru.access(key)

	out := make([]byte, len(item.data))
	copy(out, item.data)
	return out, true
}

func (t *memTier) contains(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.items[key]
	return ok
}

// put stores a copy of data. The caller is responsible for making room
// first; put itself never evicts. Replacing an existing key reuses its
// space accounting.
func (t *memTier) put(key string, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	size := int64(len(data))

	if existing, ok := t.items[key]; ok {
		t.used -= existing.size
	}

	item := &memEntry{
		key:         key,
		data:        make([]byte, len(data)),
		size:        size,
		created:     now,
		lastAccess:  now,
		accessCount: 1,
	}
	copy(item.data, data)

	t.items[key] = item
	t.used += size
	t.lru.access(key)
}

// remove deletes key, returning its stored size.
func (t *memTier) remove(key string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(key)
}

func (t *memTier) removeLocked(key string) (int64, bool) {
	item, ok := t.items[key]
	if !ok {
		return 0, false
	}
	delete(t.items, key)
	t.lru.remove(key)
	t.used -= item.size
	return item.size, true
}

// evictLRU removes the least recently used entry.
func (t *memTier) evictLRU() (string, int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	victim := t.lru.lru()
	if victim == "" {
		return "", 0, false
	}
	size, _ := t.removeLocked(victim)
	return victim, size, true
}

// freeSpace reports how many bytes fit without eviction.
func (t *memTier) freeSpace() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.capacity - t.used
}

func (t *memTier) size() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}

func (t *memTier) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

func (t *memTier) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = make(map[string]*memEntry)
	t.lru.clear()
	t.used = 0
}

// expiredKeys returns keys whose last access is before cutoff.
func (t *memTier) expiredKeys(cutoff time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []string
	for key, item := range t.items {
		if item.lastAccess.Before(cutoff) {
			expired = append(expired, key)
		}
	}
	return expired
}
