package profiling

import (
	"runtime"
	"time"
)

// Snapshot is an immutable point-in-time view of all cache metrics plus
// process-level memory and goroutine figures, used for trend reporting.
type Snapshot struct {
	Timestamp time.Time               `json:"timestamp"`
	Caches    map[string]CacheMetrics `json:"caches"`

	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	Goroutines int    `json:"goroutines"`

	OverallHitRatio float64 `json:"overall_hit_ratio"`
	TotalCacheSize  int64   `json:"total_cache_size"`
}

// TakeSnapshot captures current state and appends it to the bounded
// snapshot history.
func (p *Profiler) TakeSnapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		Timestamp:  p.clock.Now(),
		Caches:     make(map[string]CacheMetrics, len(p.metrics)),
		HeapAlloc:  mem.HeapAlloc,
		HeapSys:    mem.HeapSys,
		Goroutines: runtime.NumGoroutine(),
	}

	var hits, misses uint64
	for name, m := range p.metrics {
		snap.Caches[name] = *m
		hits += m.Hits
		misses += m.Misses
		snap.TotalCacheSize += m.CurrentMemory
	}
	if total := hits + misses; total > 0 {
		snap.OverallHitRatio = float64(hits) / float64(total)
	}

	p.snapshots = append(p.snapshots, snap)
	if len(p.snapshots) > p.config.SnapshotHistory {
		p.snapshots = p.snapshots[len(p.snapshots)-p.config.SnapshotHistory:]
	}

	return snap
}

// SnapshotHistory returns a copy of the retained snapshots, oldest first.
func (p *Profiler) SnapshotHistory() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Snapshot, len(p.snapshots))
	copy(out, p.snapshots)
	return out
}

// ClearSnapshotHistory drops all retained snapshots.
func (p *Profiler) ClearSnapshotHistory() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = nil
}
