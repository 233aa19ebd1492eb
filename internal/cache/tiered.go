package cache

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sourcegraph/conc/pool"

	"github.com/framekit/framekit/pkg/types"
)

// Config holds tiered cache configuration.
type Config struct {
	// Name identifies this cache in logs, metrics and profiler events.
	Name string

	// Tier capacities in bytes.
	MaxGPUSize  int64
	MaxRAMSize  int64
	MaxDiskSize int64

	// Directory backs the disk tier.
	Directory string

	// EnableCompression turns on transparent compression for disk-tier
	// payloads at or above CompressionThreshold bytes.
	EnableCompression    bool
	CompressionThreshold int64
	CompressionLevel     int

	// MaxAge is the idle lifetime of an entry; SweepInterval is how often
	// expired entries are collected. SweepInterval <= 0 disables the
	// background sweeper (callers may still invoke Sweep directly).
	MaxAge        time.Duration
	SweepInterval time.Duration

	// PrefetchWorkers bounds the concurrency of Prefetch.
	PrefetchWorkers int
}

// DefaultConfig returns the tier sizing used by the windowing layer: a
// small fast GPU tier, a mid RAM tier and a large compressed disk tier.
func DefaultConfig(dir string) Config {
	return Config{
		Name:                 "fragments",
		MaxGPUSize:           256 * 1024 * 1024,
		MaxRAMSize:           1024 * 1024 * 1024,
		MaxDiskSize:          4 * 1024 * 1024 * 1024,
		Directory:            dir,
		EnableCompression:    true,
		CompressionThreshold: 64 * 1024,
		CompressionLevel:     DefaultCompressionLevel,
		MaxAge:               time.Hour,
		SweepInterval:        30 * time.Second,
		PrefetchWorkers:      4,
	}
}

// TieredCache is a three-level LRU cache: GPU, RAM and compressed disk.
// Reads probe fast-to-slow and promote hits one level up; writes cascade
// toward slower tiers when the preferred tier cannot hold the entry.
type TieredCache struct {
	mu     sync.Mutex
	config Config

	gpu  *memTier
	ram  *memTier
	disk *diskTier

	hits       uint64
	misses     uint64
	evictions  uint64
	insertions uint64

	recorder types.Recorder
	loader   types.Loader

	clock  clock.Clock
	logger *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// Compile-time interface check.
var _ types.Cache = (*TieredCache)(nil)

// New creates a tiered cache. The disk tier is restored from a previous
// run when an index exists under cfg.Directory.
func New(cfg Config) (*TieredCache, error) {
	if cfg.MaxGPUSize <= 0 || cfg.MaxRAMSize <= 0 || cfg.MaxDiskSize <= 0 {
		return nil, fmt.Errorf("tier capacities must be positive")
	}
	if cfg.Directory == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if cfg.Name == "" {
		cfg.Name = "cache"
	}
	if cfg.PrefetchWorkers <= 0 {
		cfg.PrefetchWorkers = 4
	}

	clk := clock.New()
	logger := slog.Default().With("component", "cache", "cache", cfg.Name)

	var comp *Compressor
	if cfg.EnableCompression {
		comp = NewCompressor(cfg.CompressionLevel)
	}
	threshold := cfg.CompressionThreshold
	if threshold <= 0 {
		threshold = 64 * 1024
	}

	disk, err := newDiskTier(cfg.Directory, cfg.MaxDiskSize, threshold, comp, clk, logger)
	if err != nil {
		return nil, err
	}

	c := &TieredCache{
		config: cfg,
		gpu:    newMemTier(types.TierGPU, cfg.MaxGPUSize, clk),
		ram:    newMemTier(types.TierRAM, cfg.MaxRAMSize, clk),
		disk:   disk,
		clock:  clk,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if cfg.SweepInterval > 0 && cfg.MaxAge > 0 {
		go c.sweepLoop()
	} else {
		close(c.doneCh)
	}

	c.logger.Info("tiered cache initialized",
		"gpu_capacity", cfg.MaxGPUSize,
		"ram_capacity", cfg.MaxRAMSize,
		"disk_capacity", cfg.MaxDiskSize,
		"compression", cfg.EnableCompression)

	return c, nil
}

// SetRecorder attaches a traffic recorder. Pass nil to detach.
func (c *TieredCache) SetRecorder(r types.Recorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorder = r
}

// SetLoader sets the function Prefetch uses to fetch missing payloads.
func (c *TieredCache) SetLoader(l types.Loader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loader = l
}

// Get returns the payload for key, probing tiers fast-to-slow. A hit on
// the RAM or disk tier promotes a copy one tier up when that tier has
// headroom; the slower copy stays in place.
func (c *TieredCache) Get(key string) ([]byte, bool) {
	start := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if data, ok := c.gpu.get(key); ok {
		c.hits++
		c.recordHit(key, int64(len(data)), start)
		return data, true
	}

	if data, ok := c.ram.get(key); ok {
		c.hits++
		c.promote(key, data, c.gpu)
		c.recordHit(key, int64(len(data)), start)
		return data, true
	}

	if data, ok := c.disk.get(key); ok {
		c.hits++
		c.promoteToRAM(key, data)
		c.recordHit(key, int64(len(data)), start)
		return data, true
	}

	c.misses++
	c.recordMiss(key, start)
	return nil, false
}

// promote copies data into a faster memory tier if it fits without
// eviction. Promotion never evicts; displacing hot entries to speed up a
// single read is a net loss.
func (c *TieredCache) promote(key string, data []byte, dst *memTier) {
	if int64(len(data)) <= dst.freeSpace() {
		dst.put(key, data)
	}
}

func (c *TieredCache) promoteToRAM(key string, data []byte) {
	c.promote(key, data, c.ram)
}

// Put stores data in the preferred tier or the first slower tier whose
// capacity can hold it, evicting LRU victims from that tier until the
// entry fits. It returns false when the entry is larger than every
// eligible tier.
func (c *TieredCache) Put(key string, data []byte, preferred types.TierID) bool {
	start := c.clock.Now()
	size := int64(len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range types.Tiers {
		if id < preferred {
			continue
		}
		switch id {
		case types.TierGPU, types.TierRAM:
			tier := c.memTier(id)
			if size > tier.capacity {
				continue
			}
			c.makeRoom(tier, size, start)
			tier.put(key, data)
		case types.TierDisk:
			if size > c.config.MaxDiskSize {
				continue
			}
			c.makeRoomDisk(size, start)
			if err := c.disk.put(key, data); err != nil {
				c.logger.Error("disk tier write failed", "key", key, "error", err)
				return false
			}
		}
		c.insertions++
		c.recordInsertion(key, size, start)
		return true
	}

	c.logger.Warn("entry too large for any tier", "key", key, "size", size)
	return false
}

func (c *TieredCache) memTier(id types.TierID) *memTier {
	if id == types.TierGPU {
		return c.gpu
	}
	return c.ram
}

func (c *TieredCache) makeRoom(t *memTier, size int64, start time.Time) {
	for t.freeSpace() < size {
		victim, victimSize, ok := t.evictLRU()
		if !ok {
			return
		}
		c.evictions++
		c.recordEviction(victim, victimSize, start)
	}
}

func (c *TieredCache) makeRoomDisk(size int64, start time.Time) {
	for c.disk.freeSpace() < size {
		victim, victimSize, ok := c.disk.evictLRU()
		if !ok {
			return
		}
		c.evictions++
		c.recordEviction(victim, victimSize, start)
	}
}

// Remove deletes key from every tier it occupies (promotion can leave
// copies on more than one). It reports whether anything was removed.
func (c *TieredCache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := false
	if _, ok := c.gpu.remove(key); ok {
		removed = true
	}
	if _, ok := c.ram.remove(key); ok {
		removed = true
	}
	if _, ok := c.disk.remove(key); ok {
		removed = true
	}
	return removed
}

// Clear empties every tier, including the disk tier's backing directory.
func (c *TieredCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gpu.clear()
	c.ram.clear()
	c.disk.clear()
	c.logger.Info("cache cleared")
}

// ClearTier empties a single tier.
func (c *TieredCache) ClearTier(id types.TierID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch id {
	case types.TierGPU:
		c.gpu.clear()
	case types.TierRAM:
		c.ram.clear()
	case types.TierDisk:
		c.disk.clear()
	}
}

// Evict removes LRU victims, fastest tier first, until the combined size
// of all tiers is at or below targetSize.
func (c *TieredCache) Evict(targetSize int64) {
	start := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	evict := func(next func() (string, int64, bool)) bool {
		for c.totalSize() > targetSize {
			victim, size, ok := next()
			if !ok {
				return false
			}
			c.evictions++
			c.recordEviction(victim, size, start)
		}
		return true
	}

	if !evict(c.gpu.evictLRU) {
		if !evict(c.ram.evictLRU) {
			evict(c.disk.evictLRU)
		}
	}
}

func (c *TieredCache) totalSize() int64 {
	return c.gpu.size() + c.ram.size() + c.disk.size()
}

// Size returns the combined byte size of all tiers.
func (c *TieredCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalSize()
}

// Stats returns aggregate statistics across all tiers.
func (c *TieredCache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	capacity := c.config.MaxGPUSize + c.config.MaxRAMSize + c.config.MaxDiskSize
	size := c.totalSize()
	stats := types.CacheStats{
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
		Insertions: c.insertions,
		Size:       size,
		Capacity:   capacity,
		EntryCount: c.gpu.count() + c.ram.count() + c.disk.count(),
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRatio = float64(c.hits) / float64(total)
	}
	if capacity > 0 {
		stats.Utilization = float64(size) / float64(capacity)
	}
	return stats
}

// TierStats returns size and occupancy for a single tier. Hit and miss
// counters are tracked cache-wide, not per tier.
func (c *TieredCache) TierStats(id types.TierID) types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var size, capacity int64
	var count int
	switch id {
	case types.TierGPU:
		size, capacity, count = c.gpu.size(), c.config.MaxGPUSize, c.gpu.count()
	case types.TierRAM:
		size, capacity, count = c.ram.size(), c.config.MaxRAMSize, c.ram.count()
	case types.TierDisk:
		size, capacity, count = c.disk.size(), c.config.MaxDiskSize, c.disk.count()
	}

	stats := types.CacheStats{
		Size:       size,
		Capacity:   capacity,
		EntryCount: count,
	}
	if capacity > 0 {
		stats.Utilization = float64(size) / float64(capacity)
	}
	return stats
}

// ResetStats zeroes the traffic counters without touching cached data.
func (c *TieredCache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits = 0
	c.misses = 0
	c.evictions = 0
	c.insertions = 0
}

// Sweep removes entries idle longer than MaxAge from every tier and
// persists the disk index. Safe to call from a maintenance scheduler.
func (c *TieredCache) Sweep() {
	if c.config.MaxAge <= 0 {
		return
	}

	c.mu.Lock()
	cutoff := c.clock.Now().Add(-c.config.MaxAge)
	removed := 0
	for _, key := range c.gpu.expiredKeys(cutoff) {
		if _, ok := c.gpu.remove(key); ok {
			removed++
		}
	}
	for _, key := range c.ram.expiredKeys(cutoff) {
		if _, ok := c.ram.remove(key); ok {
			removed++
		}
	}
	for _, key := range c.disk.expiredKeys(cutoff) {
		if _, ok := c.disk.remove(key); ok {
			removed++
		}
	}
	c.mu.Unlock()

	if err := c.disk.syncIndex(); err != nil {
		c.logger.Warn("failed to persist disk tier index", "error", err)
	}
	if removed > 0 {
		c.logger.Debug("sweep removed expired entries", "count", removed)
	}
}

func (c *TieredCache) sweepLoop() {
	defer close(c.doneCh)

	ticker := c.clock.Ticker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stopCh:
			return
		}
	}
}

// Prefetch loads the given keys through the configured loader, skipping
// keys already cached. Loads run on a bounded worker pool and block until
// all complete; individual loader failures are logged and dropped.
func (c *TieredCache) Prefetch(keys []string) {
	c.mu.Lock()
	loader := c.loader
	c.mu.Unlock()
	if loader == nil {
		return
	}

	p := pool.New().WithMaxGoroutines(c.config.PrefetchWorkers)
	for _, key := range keys {
		if c.contains(key) {
			continue
		}
		key := key // per-iteration copy; the go directive predates Go 1.22 loopvar semantics
		p.Go(func() {
			data, err := loader(key)
			if err != nil {
				c.logger.Debug("prefetch load failed", "key", key, "error", err)
				return
			}
			c.Put(key, data, types.TierRAM)
		})
	}
	p.Wait()
}

func (c *TieredCache) contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gpu.contains(key) || c.ram.contains(key) || c.disk.contains(key)
}

// Close stops the background sweeper and persists the disk tier index.
func (c *TieredCache) Close() error {
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	<-c.doneCh

	if err := c.disk.syncIndex(); err != nil {
		return fmt.Errorf("failed to persist disk tier index: %w", err)
	}
	c.logger.Info("tiered cache closed")
	return nil
}

func (c *TieredCache) recordHit(key string, size int64, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordHit(c.config.Name, key, size, c.clock.Since(start))
	}
}

func (c *TieredCache) recordMiss(key string, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordMiss(c.config.Name, key, c.clock.Since(start))
	}
}

func (c *TieredCache) recordEviction(key string, size int64, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordEviction(c.config.Name, key, size, c.clock.Since(start))
	}
}

func (c *TieredCache) recordInsertion(key string, size int64, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordInsertion(c.config.Name, key, size, c.clock.Since(start))
	}
}
