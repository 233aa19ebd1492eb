package profiling

import (
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framekit/framekit/pkg/types"
)

func newTestProfiler(cfg Config) (*Profiler, *clock.Mock) {
	p := New(cfg)
	mock := clock.NewMock()
	p.clock = mock
	return p, mock
}

func TestRecordUpdatesMetrics(t *testing.T) {
	p, _ := newTestProfiler(Config{})

	p.RecordHit("frags", "k1", 100, 2*time.Millisecond)
	p.RecordHit("frags", "k2", 200, 4*time.Millisecond)
	p.RecordMiss("frags", "k3", 1*time.Millisecond)
	p.RecordInsertion("frags", "k3", 300, 5*time.Millisecond)

	m := p.CacheMetrics("frags")
	assert.Equal(t, uint64(2), m.Hits)
	assert.Equal(t, uint64(1), m.Misses)
	assert.Equal(t, uint64(1), m.Insertions)
	assert.Equal(t, 3*time.Millisecond, m.AvgHitTime)
	assert.Equal(t, int64(300), m.CurrentMemory)
	assert.Equal(t, int64(300), m.PeakMemory)
	assert.InDelta(t, 2.0/3.0, m.HitRatio(), 1e-9)
}

func TestEvictionReleasesMemory(t *testing.T) {
	p, _ := newTestProfiler(Config{})

	p.RecordInsertion("frags", "a", 500, 0)
	p.RecordInsertion("frags", "b", 300, 0)
	p.RecordEviction("frags", "a", 500, 0)

	m := p.CacheMetrics("frags")
	assert.Equal(t, int64(300), m.CurrentMemory)
	assert.Equal(t, int64(800), m.PeakMemory)
	assert.InDelta(t, 0.5, m.EvictionRate(), 1e-9)
}

func TestEventRingDropsOldest(t *testing.T) {
	p, _ := newTestProfiler(Config{MaxEvents: 5})

	for i := 0; i < 8; i++ {
		p.RecordHit("frags", fmt.Sprintf("k%d", i), 1, 0)
	}

	events := p.Events()
	require.Len(t, events, 5)
	assert.Equal(t, "k3", events[0].Key)
	assert.Equal(t, "k7", events[4].Key)
}

func TestMetricsForUnknownCache(t *testing.T) {
	p, _ := newTestProfiler(Config{})
	m := p.CacheMetrics("nothing")
	assert.Zero(t, m.Hits)
	assert.Zero(t, m.HitRatio())
}

func TestAnalyzePatternsHot(t *testing.T) {
	p, mock := newTestProfiler(Config{})

	for i := 0; i < 10; i++ {
		p.RecordHit("frags", "hot-key", 1, 0)
		mock.Add(100 * time.Millisecond)
	}
	p.RecordHit("frags", "cold-key", 1, 0)

	p.AnalyzePatterns()

	hot, ok := p.Pattern("hot-key")
	require.True(t, ok)
	assert.True(t, hot.Hot)
	assert.Equal(t, uint64(10), hot.TotalAccesses)

	cold, ok := p.Pattern("cold-key")
	require.True(t, ok)
	assert.False(t, cold.Hot)
}

func TestAnalyzePatternsTemporal(t *testing.T) {
	// Wide analysis window so the spread accesses all stay in view.
	p, mock := newTestProfiler(Config{AnalysisWindow: time.Hour})

	// Burst: three accesses within one second.
	for i := 0; i < 3; i++ {
		p.RecordHit("frags", "burst", 1, 0)
		mock.Add(300 * time.Millisecond)
	}

	// Spread: accesses two minutes apart, outside the temporal window.
	for i := 0; i < 3; i++ {
		p.RecordHit("frags", "spread", 1, 0)
		mock.Add(2 * time.Minute)
	}

	p.AnalyzePatterns()

	burst, ok := p.Pattern("burst")
	require.True(t, ok)
	assert.True(t, burst.Temporal)
	assert.Equal(t, 300*time.Millisecond, burst.AvgInterval)

	spread, ok := p.Pattern("spread")
	require.True(t, ok)
	assert.False(t, spread.Temporal)
}

func TestAnalyzePatternsSequential(t *testing.T) {
	p, mock := newTestProfiler(Config{})

	// Monotonically increasing key run with tight spacing.
	for _, key := range []string{"tile-001", "tile-002", "tile-003", "tile-004"} {
		p.RecordHit("frags", key, 1, 0)
		mock.Add(10 * time.Millisecond)
	}
	p.AnalyzePatterns()

	seq, ok := p.Pattern("tile-003")
	require.True(t, ok)
	assert.True(t, seq.Sequential)

	// Out-of-order run must not classify as sequential.
	p.ClearData()
	for _, key := range []string{"tile-009", "tile-002", "tile-007", "tile-001"} {
		p.RecordHit("frags", key, 1, 0)
		mock.Add(10 * time.Millisecond)
	}
	p.AnalyzePatterns()

	rand, ok := p.Pattern("tile-001")
	require.True(t, ok)
	assert.False(t, rand.Sequential)
}

func TestPatternsPrunedWhenWindowEmpties(t *testing.T) {
	p, mock := newTestProfiler(Config{AnalysisWindow: time.Minute})

	p.RecordHit("frags", "fleeting", 1, 0)
	p.AnalyzePatterns()
	_, ok := p.Pattern("fleeting")
	require.True(t, ok)

	mock.Add(2 * time.Minute)
	p.AnalyzePatterns()

	_, ok = p.Pattern("fleeting")
	assert.False(t, ok, "key outside the window should be pruned")
}

func TestRecommendationsLowHitRatio(t *testing.T) {
	p, _ := newTestProfiler(Config{})

	for i := 0; i < 20; i++ {
		p.RecordHit("weak", "k", 1, 0)
	}
	for i := 0; i < 180; i++ {
		p.RecordMiss("weak", "k", 0)
	}

	recs := p.Recommendations()
	require.NotEmpty(t, recs)
	assert.Equal(t, "weak", recs[0].Cache)
	assert.Equal(t, "low_hit_ratio", recs[0].Kind)
	assert.Greater(t, recs[0].ExpectedImprovement, 0.0)
	assert.GreaterOrEqual(t, recs[0].Priority, 1)
	assert.LessOrEqual(t, recs[0].Priority, 10)
}

func TestRecommendationsRequireSamples(t *testing.T) {
	p, _ := newTestProfiler(Config{})

	// Plenty of misses but below the sample floor; stay quiet.
	for i := 0; i < 10; i++ {
		p.RecordMiss("quiet", "k", 0)
	}
	assert.Empty(t, p.Recommendations())
}

func TestRecommendationsMemoryPressure(t *testing.T) {
	p, _ := newTestProfiler(Config{})

	p.TrackMemoryUsage("full", 950, 1000)

	recs := p.Recommendations()
	require.Len(t, recs, 1)
	assert.Equal(t, "memory_pressure", recs[0].Kind)
}

func TestSnapshotHistoryBounded(t *testing.T) {
	p, _ := newTestProfiler(Config{SnapshotHistory: 3})

	p.RecordInsertion("frags", "k", 100, 0)
	for i := 0; i < 5; i++ {
		p.TakeSnapshot()
	}

	history := p.SnapshotHistory()
	require.Len(t, history, 3)
	assert.Equal(t, int64(100), history[0].TotalCacheSize)
	assert.NotZero(t, history[0].Goroutines)

	p.ClearSnapshotHistory()
	assert.Empty(t, p.SnapshotHistory())
}

func TestObserverCallbacks(t *testing.T) {
	p, mock := newTestProfiler(Config{})

	var events []Event
	p.OnEvent(func(e Event) { events = append(events, e) })

	var patternKeys []string
	p.OnPattern(func(a types.AccessPattern) { patternKeys = append(patternKeys, a.Key) })

	p.RecordHit("frags", "k", 1, 0)
	p.RecordMiss("frags", "k2", 0)
	mock.Add(time.Millisecond)
	p.AnalyzePatterns()

	require.Len(t, events, 2)
	assert.Equal(t, EventHit, events[0].Type)
	assert.Equal(t, EventMiss, events[1].Type)
	assert.ElementsMatch(t, []string{"k", "k2"}, patternKeys)
}
