package profiling

import (
	"fmt"
	"sort"
)

// Recommendation thresholds. Advisory output only; nothing acts on these
// automatically.
const (
	lowHitRatio      = 0.5
	highEvictionRate = 0.5
	memoryPressure   = 0.9
	minSamples       = 100
)

// Recommendation is one advisory optimization suggestion for a cache.
type Recommendation struct {
	Cache       string `json:"cache"`
	Kind        string `json:"kind"`
	Description string `json:"description"`

	// ExpectedImprovement is a rough estimate in percent.
	ExpectedImprovement float64 `json:"expected_improvement"`

	// Priority ranges 1 (lowest) to 10 (highest).
	Priority int `json:"priority"`
}

// Recommendations derives advisory suggestions from the current per-cache
// aggregates, highest priority first.
func (p *Profiler) Recommendations() []Recommendation {
	metrics := p.AllCacheMetrics()

	var recs []Recommendation
	for name, m := range metrics {
		if r, ok := analyzeHitRatio(name, m); ok {
			recs = append(recs, r)
		}
		if r, ok := analyzeEvictionRate(name, m); ok {
			recs = append(recs, r)
		}
		if r, ok := analyzeMemoryUsage(name, m); ok {
			recs = append(recs, r)
		}
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority > recs[j].Priority
	})
	return recs
}

func analyzeHitRatio(cache string, m CacheMetrics) (Recommendation, bool) {
	if m.Hits+m.Misses < minSamples {
		return Recommendation{}, false
	}
	ratio := m.HitRatio()
	if ratio >= lowHitRatio {
		return Recommendation{}, false
	}
	return Recommendation{
		Cache: cache,
		Kind:  "low_hit_ratio",
		Description: fmt.Sprintf(
			"hit ratio %.1f%% is below %.0f%%; consider increasing capacity or reviewing key design",
			ratio*100, lowHitRatio*100),
		ExpectedImprovement: (lowHitRatio - ratio) * 100,
		Priority:            scalePriority(lowHitRatio-ratio, lowHitRatio),
	}, true
}

func analyzeEvictionRate(cache string, m CacheMetrics) (Recommendation, bool) {
	if m.Insertions < minSamples {
		return Recommendation{}, false
	}
	rate := m.EvictionRate()
	if rate <= highEvictionRate {
		return Recommendation{}, false
	}
	return Recommendation{
		Cache: cache,
		Kind:  "high_eviction_rate",
		Description: fmt.Sprintf(
			"%.1f%% of insertions end in eviction; consider raising capacity or tuning entry lifetime",
			rate*100),
		ExpectedImprovement: (rate - highEvictionRate) * 50,
		Priority:            scalePriority(rate-highEvictionRate, 1-highEvictionRate),
	}, true
}

func analyzeMemoryUsage(cache string, m CacheMetrics) (Recommendation, bool) {
	if m.Capacity <= 0 {
		return Recommendation{}, false
	}
	utilization := float64(m.CurrentMemory) / float64(m.Capacity)
	if utilization < memoryPressure {
		return Recommendation{}, false
	}
	return Recommendation{
		Cache: cache,
		Kind:  "memory_pressure",
		Description: fmt.Sprintf(
			"memory usage at %.1f%% of capacity; consider scheduling proactive cleanup",
			utilization*100),
		ExpectedImprovement: (utilization - memoryPressure) * 100,
		Priority:            scalePriority(utilization-memoryPressure, 1-memoryPressure),
	}, true
}

// scalePriority maps how far a value crossed its threshold, relative to
// the worst possible excess, onto 1..10.
func scalePriority(excess, worst float64) int {
	if worst <= 0 {
		return 10
	}
	p := 1 + int(excess/worst*9)
	if p < 1 {
		p = 1
	}
	if p > 10 {
		p = 10
	}
	return p
}
