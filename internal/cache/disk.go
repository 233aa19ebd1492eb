package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const indexFileName = "tier-index.json"

// diskEntry is the index record for one disk-tier entry. Fields are
// exported so the index can be persisted across restarts.
type diskEntry struct {
	Key         string    `json:"key"`
	FilePath    string    `json:"file_path"`
	Size        int64     `json:"size"`
	Created     time.Time `json:"created"`
	LastAccess  time.Time `json:"last_access"`
	AccessCount uint32    `json:"access_count"`
	Compressed  bool      `json:"compressed"`
	Checksum    string    `json:"checksum"`
}

// diskTier is the slow persistent tier. Payloads live in files named by a
// hash of the key; the in-memory index records size, recency and whether
// the payload was compressed. The index is persisted so the tier survives
// restarts; missing or corrupt files degrade to a miss, never an error.
type diskTier struct {
	mu        sync.Mutex
	capacity  int64
	used      int64
	index     map[string]*diskEntry
	lru       *lruList
	dir       string
	comp      *Compressor
	threshold int64
	clock     clock.Clock
	logger    *slog.Logger
}

func newDiskTier(dir string, capacity, threshold int64, comp *Compressor, clk clock.Clock, logger *slog.Logger) (*diskTier, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	t := &diskTier{
		capacity:  capacity,
		index:     make(map[string]*diskEntry),
		lru:       newLRUList(),
		dir:       dir,
		comp:      comp,
		threshold: threshold,
		clock:     clk,
		logger:    logger,
	}

	if err := t.loadIndex(); err != nil {
		// A broken index means a cold tier, not a broken cache.
		t.logger.Warn("discarding unreadable disk tier index", "error", err)
		t.index = make(map[string]*diskEntry)
		t.used = 0
	}

	return t, nil
}

// get reads and, when needed, decompresses the payload for key. A missing
// or corrupt backing file drops the entry and reports a miss.
func (t *diskTier) get(key string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.index[key]
	if !ok {
		return nil, false
	}

	data, err := os.ReadFile(item.FilePath)
	if err != nil {
		t.logger.Warn("dropping disk entry with unreadable payload", "key", key, "error", err)
		t.dropLocked(key)
		return nil, false
	}

	if item.Compressed {
		decompressed, err := t.comp.Decompress(data)
		if err != nil {
			t.logger.Warn("dropping disk entry with corrupt payload", "key", key, "error", err)
			t.dropLocked(key)
			return nil, false
		}
		data = decompressed
	}

	if checksum(data) != item.Checksum {
		t.logger.Warn("dropping disk entry with checksum mismatch", "key", key)
		t.dropLocked(key)
		return nil, false
	}

	item.LastAccess = t.clock.Now()
	item.AccessCount++
	t.lru.access(key)

	return data, true
}

func (t *diskTier) contains(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.index[key]
	return ok
}

// put writes the payload for key, compressing when it crosses the
// threshold. A failed write rolls back completely; the entry is either
// fully stored or absent.
func (t *diskTier) put(key string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	sum := checksum(data)

	stored := data
	compressed := false
	if t.comp != nil && int64(len(data)) >= t.threshold {
		stored, compressed = t.comp.Compress(data)
	}

	item := &diskEntry{
		Key:         key,
		FilePath:    t.filePath(key),
		Size:        int64(len(stored)),
		Created:     now,
		LastAccess:  now,
		AccessCount: 1,
		Compressed:  compressed,
		Checksum:    sum,
	}

	if err := os.WriteFile(item.FilePath, stored, 0600); err != nil {
		_ = os.Remove(item.FilePath)
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	if existing, ok := t.index[key]; ok {
		t.used -= existing.Size
	}

	t.index[key] = item
	t.used += item.Size
	t.lru.access(key)
	return nil
}

func (t *diskTier) remove(key string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	item, ok := t.index[key]
	if !ok {
		return 0, false
	}
	_ = os.Remove(item.FilePath)
	t.dropLocked(key)
	return item.Size, true
}

// dropLocked removes key from the index without touching the backing file.
func (t *diskTier) dropLocked(key string) {
	item, ok := t.index[key]
	if !ok {
		return
	}
	delete(t.index, key)
	t.lru.remove(key)
	t.used -= item.Size
}

func (t *diskTier) evictLRU() (string, int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	victim := t.lru.lru()
	if victim == "" {
		return "", 0, false
	}
	item := t.index[victim]
	_ = os.Remove(item.FilePath)
	t.dropLocked(victim)
	return victim, item.Size, true
}

func (t *diskTier) freeSpace() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.capacity - t.used
}

func (t *diskTier) size() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}

func (t *diskTier) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.index)
}

// clear removes every entry and purges the backing directory.
func (t *diskTier) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, item := range t.index {
		_ = os.Remove(item.FilePath)
	}
	_ = os.Remove(filepath.Join(t.dir, indexFileName))

	t.index = make(map[string]*diskEntry)
	t.lru.clear()
	t.used = 0
}

func (t *diskTier) expiredKeys(cutoff time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []string
	for key, item := range t.index {
		if item.LastAccess.Before(cutoff) {
			expired = append(expired, key)
		}
	}
	return expired
}

func (t *diskTier) filePath(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(t.dir, fmt.Sprintf("%x.cache", hash[:8]))
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// loadIndex restores the index from a previous run, skipping entries whose
// backing files no longer exist.
func (t *diskTier) loadIndex() error {
	file, err := os.Open(filepath.Join(t.dir, indexFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = file.Close() }()

	var items map[string]*diskEntry
	if err := json.NewDecoder(file).Decode(&items); err != nil {
		return err
	}

	t.used = 0
	for key, item := range items {
		if _, err := os.Stat(item.FilePath); os.IsNotExist(err) {
			continue
		}
		t.index[key] = item
		t.used += item.Size
		t.lru.access(key)
	}
	return nil
}

// syncIndex writes the index atomically via a temp file rename.
func (t *diskTier) syncIndex() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	indexPath := filepath.Join(t.dir, indexFileName)
	tmpPath := indexPath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(file).Encode(t.index); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, indexPath)
}
