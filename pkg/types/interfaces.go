package types

import (
	"time"
)

// Cache defines the tiered caching interface
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte, preferred TierID) bool
	Remove(key string) bool
	Clear()
	Evict(targetSize int64)
	Size() int64
	Stats() CacheStats
}

// Recorder receives cache traffic events. The tiered cache reports every
// operation here; the profiler is the canonical implementation.
type Recorder interface {
	RecordHit(cache, key string, size int64, duration time.Duration)
	RecordMiss(cache, key string, duration time.Duration)
	RecordEviction(cache, key string, size int64, duration time.Duration)
	RecordInsertion(cache, key string, size int64, duration time.Duration)
}

// QualitySource exposes the current quality settings to renderers.
// Consumers pull; no change notifications are delivered through this
// interface.
type QualitySource interface {
	Settings() QualitySettings
}

// Loader fetches the payload for a cache key that missed, used by prefetch
// workers.
type Loader func(key string) ([]byte, error)

// MultiRecorder fans every event out to all member recorders in order.
type MultiRecorder []Recorder

var _ Recorder = (MultiRecorder)(nil)

func (m MultiRecorder) RecordHit(cache, key string, size int64, duration time.Duration) {
	for _, r := range m {
		r.RecordHit(cache, key, size, duration)
	}
}

func (m MultiRecorder) RecordMiss(cache, key string, duration time.Duration) {
	for _, r := range m {
		r.RecordMiss(cache, key, duration)
	}
}

func (m MultiRecorder) RecordEviction(cache, key string, size int64, duration time.Duration) {
	for _, r := range m {
		r.RecordEviction(cache, key, size, duration)
	}
}

func (m MultiRecorder) RecordInsertion(cache, key string, size int64, duration time.Duration) {
	for _, r := range m {
		r.RecordInsertion(cache, key, size, duration)
	}
}
