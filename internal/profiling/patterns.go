package profiling

import (
	"time"

	"github.com/framekit/framekit/pkg/types"
)

// AnalyzePatterns classifies every key accessed within the analysis window
// and refreshes the pattern table. Keys that dropped out of the window are
// pruned. Intended to run periodically from the maintenance scheduler.
func (p *Profiler) AnalyzePatterns() {
	p.mu.Lock()

	cutoff := p.clock.Now().Add(-p.config.AnalysisWindow)

	// Accesses are gets: hits and misses, in recording order.
	var accesses []Event
	for _, e := range p.eventsLocked() {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		if e.Type == EventHit || e.Type == EventMiss {
			accesses = append(accesses, e)
		}
	}

	byKey := make(map[string][]time.Time)
	for _, e := range accesses {
		byKey[e.Key] = append(byKey[e.Key], e.Timestamp)
	}

	// Sequential classification looks at adjacent access transitions: a
	// transition counts toward the destination key's run when the keys are
	// in increasing order and close together in time.
	inOrder := make(map[string]int)
	transitions := make(map[string]int)
	for i := 1; i < len(accesses); i++ {
		prev, cur := accesses[i-1], accesses[i]
		if cur.Timestamp.Sub(prev.Timestamp) > p.config.SequentialGap {
			continue
		}
		transitions[cur.Key]++
		if prev.Key <= cur.Key {
			inOrder[cur.Key]++
		}
	}

	var updated []types.AccessPattern
	for key, times := range byKey {
		pattern := types.AccessPattern{
			Key:           key,
			AccessTimes:   times,
			TotalAccesses: uint64(len(times)),
		}

		span := times[len(times)-1].Sub(times[0])
		if len(times) > 1 {
			pattern.AvgInterval = span / time.Duration(len(times)-1)
		}

		pattern.Hot = len(times) >= p.config.HotAccessThreshold
		pattern.Temporal = len(times) > 1 && span <= p.config.TemporalWindow
		if n := transitions[key]; n > 0 {
			pattern.Sequential = float64(inOrder[key])/float64(n) >= p.config.SequentialThreshold
		}

		p.patterns.Add(key, pattern)
		updated = append(updated, pattern)
	}

	// Prune keys no longer seen inside the window.
	for _, key := range p.patterns.Keys() {
		if _, ok := byKey[key]; !ok {
			p.patterns.Remove(key)
		}
	}

	callbacks := p.patternCallbacks
	p.mu.Unlock()

	for _, pattern := range updated {
		for _, cb := range callbacks {
			cb(pattern)
		}
	}
}

// Pattern returns the classified pattern for one key, if present.
func (p *Profiler) Pattern(key string) (types.AccessPattern, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.patterns.Peek(key)
}

// HotPatterns returns all keys currently classified hot.
func (p *Profiler) HotPatterns() []types.AccessPattern {
	return p.filterPatterns(func(a types.AccessPattern) bool { return a.Hot })
}

// TemporalPatterns returns all keys currently classified temporal.
func (p *Profiler) TemporalPatterns() []types.AccessPattern {
	return p.filterPatterns(func(a types.AccessPattern) bool { return a.Temporal })
}

// SequentialPatterns returns all keys currently classified sequential.
func (p *Profiler) SequentialPatterns() []types.AccessPattern {
	return p.filterPatterns(func(a types.AccessPattern) bool { return a.Sequential })
}

func (p *Profiler) filterPatterns(keep func(types.AccessPattern) bool) []types.AccessPattern {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []types.AccessPattern
	for _, key := range p.patterns.Keys() {
		if pattern, ok := p.patterns.Peek(key); ok && keep(pattern) {
			out = append(out, pattern)
		}
	}
	return out
}
