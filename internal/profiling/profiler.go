// Package profiling observes cache traffic and turns it into aggregate
// metrics, per-key access pattern classifications and advisory
// optimization recommendations.
package profiling

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/framekit/framekit/pkg/types"
)

// EventType classifies one cache traffic event.
type EventType int

const (
	EventHit EventType = iota
	EventMiss
	EventEviction
	EventInsertion
)

func (e EventType) String() string {
	switch e {
	case EventHit:
		return "hit"
	case EventMiss:
		return "miss"
	case EventEviction:
		return "eviction"
	case EventInsertion:
		return "insertion"
	default:
		return "unknown"
	}
}

// Event is one recorded cache operation.
type Event struct {
	Type      EventType     `json:"type"`
	Cache     string        `json:"cache"`
	Key       string        `json:"key"`
	Size      int64         `json:"size"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// CacheMetrics is the running aggregate for one named cache.
type CacheMetrics struct {
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
	Insertions uint64 `json:"insertions"`

	AvgHitTime       time.Duration `json:"avg_hit_time"`
	AvgMissTime      time.Duration `json:"avg_miss_time"`
	AvgEvictionTime  time.Duration `json:"avg_eviction_time"`
	AvgInsertionTime time.Duration `json:"avg_insertion_time"`

	CurrentMemory  int64 `json:"current_memory"`
	PeakMemory     int64 `json:"peak_memory"`
	Capacity       int64 `json:"capacity"`
	BytesProcessed int64 `json:"bytes_processed"`
}

// HitRatio returns hits / (hits + misses), or 0 with no traffic.
func (m CacheMetrics) HitRatio() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total)
}

// EvictionRate returns evictions / insertions, or 0 with no insertions.
func (m CacheMetrics) EvictionRate() float64 {
	if m.Insertions == 0 {
		return 0
	}
	return float64(m.Evictions) / float64(m.Insertions)
}

// Config holds profiler tuning knobs.
type Config struct {
	// MaxEvents bounds the in-memory event ring; oldest events drop first.
	MaxEvents int

	// MaxPatterns bounds the access pattern table.
	MaxPatterns int

	// HotAccessThreshold is the per-key access count within the analysis
	// window above which a key is classified hot.
	HotAccessThreshold int

	// TemporalWindow is the span within which accesses count as clustered.
	TemporalWindow time.Duration

	// SequentialThreshold is the minimum in-order transition ratio for a
	// key to be classified sequential.
	SequentialThreshold float64

	// SequentialGap is the maximum latency between two accesses for the
	// transition to count toward a sequential run.
	SequentialGap time.Duration

	// AnalysisWindow bounds how far back AnalyzePatterns looks.
	AnalysisWindow time.Duration

	// SnapshotHistory bounds the retained snapshot list.
	SnapshotHistory int
}

// DefaultConfig returns the profiler defaults.
func DefaultConfig() Config {
	return Config{
		MaxEvents:           100000,
		MaxPatterns:         10000,
		HotAccessThreshold:  10,
		TemporalWindow:      60 * time.Second,
		SequentialThreshold: 0.8,
		SequentialGap:       time.Second,
		AnalysisWindow:      5 * time.Minute,
		SnapshotHistory:     100,
	}
}

// EventCallback observes every recorded event.
type EventCallback func(Event)

// PatternCallback observes each pattern produced by analysis.
type PatternCallback func(types.AccessPattern)

// Profiler passively observes cache traffic: it keeps a bounded event
// ring, per-cache aggregates, classified access patterns and advisory
// optimization recommendations. It never feeds back into cache behavior.
type Profiler struct {
	mu     sync.Mutex
	config Config

	// events is a fixed-size ring; next is the write cursor, full marks
	// whether the ring has wrapped.
	events []Event
	next   int
	full   bool

	metrics  map[string]*CacheMetrics
	patterns *lru.Cache[string, types.AccessPattern]

	snapshots []Snapshot

	eventCallbacks   []EventCallback
	patternCallbacks []PatternCallback

	clock  clock.Clock
	logger *slog.Logger
}

var _ types.Recorder = (*Profiler)(nil)

// New creates a profiler. Invalid config fields fall back to defaults.
func New(cfg Config) *Profiler {
	def := DefaultConfig()
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = def.MaxEvents
	}
	if cfg.MaxPatterns <= 0 {
		cfg.MaxPatterns = def.MaxPatterns
	}
	if cfg.HotAccessThreshold <= 0 {
		cfg.HotAccessThreshold = def.HotAccessThreshold
	}
	if cfg.TemporalWindow <= 0 {
		cfg.TemporalWindow = def.TemporalWindow
	}
	if cfg.SequentialThreshold <= 0 || cfg.SequentialThreshold > 1 {
		cfg.SequentialThreshold = def.SequentialThreshold
	}
	if cfg.SequentialGap <= 0 {
		cfg.SequentialGap = def.SequentialGap
	}
	if cfg.AnalysisWindow <= 0 {
		cfg.AnalysisWindow = def.AnalysisWindow
	}
	if cfg.SnapshotHistory <= 0 {
		cfg.SnapshotHistory = def.SnapshotHistory
	}

	patterns, _ := lru.New[string, types.AccessPattern](cfg.MaxPatterns)

	return &Profiler{
		config:   cfg,
		events:   make([]Event, cfg.MaxEvents),
		metrics:  make(map[string]*CacheMetrics),
		patterns: patterns,
		clock:    clock.New(),
		logger:   slog.Default().With("component", "profiler"),
	}
}

// RecordHit records a cache hit.
func (p *Profiler) RecordHit(cache, key string, size int64, duration time.Duration) {
	p.record(Event{Type: EventHit, Cache: cache, Key: key, Size: size, Duration: duration})
}

// RecordMiss records a cache miss.
func (p *Profiler) RecordMiss(cache, key string, duration time.Duration) {
	p.record(Event{Type: EventMiss, Cache: cache, Key: key, Duration: duration})
}

// RecordEviction records an eviction.
func (p *Profiler) RecordEviction(cache, key string, size int64, duration time.Duration) {
	p.record(Event{Type: EventEviction, Cache: cache, Key: key, Size: size, Duration: duration})
}

// RecordInsertion records an insertion.
func (p *Profiler) RecordInsertion(cache, key string, size int64, duration time.Duration) {
	p.record(Event{Type: EventInsertion, Cache: cache, Key: key, Size: size, Duration: duration})
}

func (p *Profiler) record(e Event) {
	e.Timestamp = p.clock.Now()

	p.mu.Lock()
	p.events[p.next] = e
	p.next++
	if p.next == len(p.events) {
		p.next = 0
		p.full = true
	}

	m := p.cacheMetricsLocked(e.Cache)
	switch e.Type {
	case EventHit:
		m.Hits++
		m.AvgHitTime = runningAvg(m.AvgHitTime, e.Duration, m.Hits)
		m.BytesProcessed += e.Size
	case EventMiss:
		m.Misses++
		m.AvgMissTime = runningAvg(m.AvgMissTime, e.Duration, m.Misses)
	case EventEviction:
		m.Evictions++
		m.AvgEvictionTime = runningAvg(m.AvgEvictionTime, e.Duration, m.Evictions)
		m.CurrentMemory -= e.Size
		if m.CurrentMemory < 0 {
			m.CurrentMemory = 0
		}
	case EventInsertion:
		m.Insertions++
		m.AvgInsertionTime = runningAvg(m.AvgInsertionTime, e.Duration, m.Insertions)
		m.BytesProcessed += e.Size
		m.CurrentMemory += e.Size
		if m.CurrentMemory > m.PeakMemory {
			m.PeakMemory = m.CurrentMemory
		}
	}

	callbacks := p.eventCallbacks
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(e)
	}
}

func runningAvg(avg, sample time.Duration, n uint64) time.Duration {
	return avg + (sample-avg)/time.Duration(n)
}

func (p *Profiler) cacheMetricsLocked(cache string) *CacheMetrics {
	m, ok := p.metrics[cache]
	if !ok {
		m = &CacheMetrics{}
		p.metrics[cache] = m
	}
	return m
}

// TrackMemoryUsage records a cache's current footprint and capacity, used
// by the memory pressure recommendation.
func (p *Profiler) TrackMemoryUsage(cache string, used, capacity int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := p.cacheMetricsLocked(cache)
	m.CurrentMemory = used
	m.Capacity = capacity
	if used > m.PeakMemory {
		m.PeakMemory = used
	}
}

// CacheMetrics returns a copy of the aggregate for one cache.
func (p *Profiler) CacheMetrics(cache string) CacheMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	if m, ok := p.metrics[cache]; ok {
		return *m
	}
	return CacheMetrics{}
}

// AllCacheMetrics returns a copy of every cache's aggregate.
func (p *Profiler) AllCacheMetrics() map[string]CacheMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]CacheMetrics, len(p.metrics))
	for name, m := range p.metrics {
		out[name] = *m
	}
	return out
}

// Events returns a copy of the retained events in recording order.
func (p *Profiler) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eventsLocked()
}

func (p *Profiler) eventsLocked() []Event {
	if !p.full {
		out := make([]Event, p.next)
		copy(out, p.events[:p.next])
		return out
	}
	out := make([]Event, 0, len(p.events))
	out = append(out, p.events[p.next:]...)
	out = append(out, p.events[:p.next]...)
	return out
}

// OnEvent registers a callback invoked for every recorded event. Callbacks
// run on the recording goroutine and must be fast.
func (p *Profiler) OnEvent(cb EventCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eventCallbacks = append(p.eventCallbacks, cb)
}

// OnPattern registers a callback invoked for each pattern produced by
// AnalyzePatterns.
func (p *Profiler) OnPattern(cb PatternCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.patternCallbacks = append(p.patternCallbacks, cb)
}

// ResetMetrics zeroes all per-cache aggregates; the event ring and pattern
// table are untouched.
func (p *Profiler) ResetMetrics() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = make(map[string]*CacheMetrics)
}

// ClearData drops events, metrics, patterns and snapshots.
func (p *Profiler) ClearData() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.next = 0
	p.full = false
	p.metrics = make(map[string]*CacheMetrics)
	p.patterns.Purge()
	p.snapshots = nil
}
