package render

import (
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/framekit/framekit/pkg/types"
)

func newTestMonitor(cfg MonitorConfig) (*Monitor, *clock.Mock) {
	m := NewMonitor(cfg)
	mock := clock.NewMock()
	m.clock = mock
	return m, mock
}

func runFrame(m *Monitor, mock *clock.Mock, d time.Duration) {
	m.BeginFrame()
	mock.Add(d)
	m.EndFrame()
}

func TestFrameTiming(t *testing.T) {
	m, mock := newTestMonitor(MonitorConfig{})

	runFrame(m, mock, 10*time.Millisecond)

	stats := m.Stats()
	if stats.CurrentFrameTime != 10 {
		t.Errorf("CurrentFrameTime = %v, want 10", stats.CurrentFrameTime)
	}
	if math.Abs(stats.CurrentFPS-100) > 1e-9 {
		t.Errorf("CurrentFPS = %v, want 100", stats.CurrentFPS)
	}
	if stats.TotalFrames != 1 {
		t.Errorf("TotalFrames = %d, want 1", stats.TotalFrames)
	}
}

func TestAggregatesOverWindow(t *testing.T) {
	m, mock := newTestMonitor(MonitorConfig{})

	runFrame(m, mock, 10*time.Millisecond)
	runFrame(m, mock, 20*time.Millisecond)
	runFrame(m, mock, 30*time.Millisecond)

	stats := m.Stats()
	if stats.AverageFrameTime != 20 {
		t.Errorf("AverageFrameTime = %v, want 20", stats.AverageFrameTime)
	}
	if stats.MinFrameTime != 10 || stats.MaxFrameTime != 30 {
		t.Errorf("min/max = %v/%v, want 10/30", stats.MinFrameTime, stats.MaxFrameTime)
	}
	if math.Abs(stats.MaxFPS-100) > 1e-9 {
		t.Errorf("MaxFPS = %v, want 100", stats.MaxFPS)
	}
}

func TestCPUSpansAccumulate(t *testing.T) {
	m, mock := newTestMonitor(MonitorConfig{})

	// Spans attribute into the previous completed frame record.
	runFrame(m, mock, 5*time.Millisecond)

	m.BeginCPUWork("layout")
	mock.Add(2 * time.Millisecond)
	m.EndCPUWork("layout")

	m.BeginCPUWork("paint")
	mock.Add(3 * time.Millisecond)
	m.EndCPUWork("paint")

	m.BeginGPUWork()
	mock.Add(4 * time.Millisecond)
	m.EndGPUWork()

	// Aggregates refresh on the next EndFrame.
	runFrame(m, mock, 5*time.Millisecond)

	stats := m.Stats()
	if stats.AverageCPUTime != 2.5 { // (2+3)/2 frames
		t.Errorf("AverageCPUTime = %v, want 2.5", stats.AverageCPUTime)
	}
	if stats.AverageGPUTime != 2 { // 4/2 frames
		t.Errorf("AverageGPUTime = %v, want 2", stats.AverageGPUTime)
	}
}

func TestEndCPUWorkWithoutBegin(t *testing.T) {
	m, mock := newTestMonitor(MonitorConfig{})
	runFrame(m, mock, 5*time.Millisecond)

	m.EndCPUWork("never-started")

	if got := m.Stats().CurrentCPUTime; got != 0 {
		t.Errorf("CurrentCPUTime = %v, want 0", got)
	}
}

func TestHitchDetection(t *testing.T) {
	m, mock := newTestMonitor(MonitorConfig{})

	var issues int
	m.OnIssue(func(types.FrameStats) { issues++ })

	runFrame(m, mock, 10*time.Millisecond) // fine
	runFrame(m, mock, 40*time.Millisecond) // hitch
	runFrame(m, mock, 50*time.Millisecond) // hitch

	stats := m.Stats()
	if stats.FrameDrops != 2 {
		t.Errorf("FrameDrops = %d, want 2", stats.FrameDrops)
	}
	if issues != 2 {
		t.Errorf("issue callbacks = %d, want 2", issues)
	}
	if math.Abs(stats.FrameDropRate-2.0/3.0) > 1e-9 {
		t.Errorf("FrameDropRate = %v, want 2/3", stats.FrameDropRate)
	}
}

func TestStability(t *testing.T) {
	m, mock := newTestMonitor(MonitorConfig{})

	for i := 0; i < 29; i++ {
		runFrame(m, mock, 10*time.Millisecond)
	}
	if m.IsStable() {
		t.Error("fewer than 30 samples must not be stable")
	}

	runFrame(m, mock, 10*time.Millisecond)
	if !m.IsStable() {
		t.Error("30 uniform frames should be stable")
	}

	// A run of wildly varying frames breaks stability.
	for i := 0; i < 15; i++ {
		runFrame(m, mock, 5*time.Millisecond)
		runFrame(m, mock, 30*time.Millisecond)
	}
	if m.IsStable() {
		t.Error("high variance window should not be stable")
	}
}

func TestHistoryBounded(t *testing.T) {
	m, mock := newTestMonitor(MonitorConfig{HistorySize: 5})

	for i := 0; i < 10; i++ {
		runFrame(m, mock, 40*time.Millisecond)
	}
	runFrame(m, mock, 10*time.Millisecond)

	if len(m.history) != 5 {
		t.Fatalf("history len = %d, want 5", len(m.history))
	}
	// Average reflects only the retained window: four 40ms + one 10ms.
	if got := m.Stats().AverageFrameTime; got != 34 {
		t.Errorf("AverageFrameTime = %v, want 34", got)
	}
}

func TestTrackMemoryUsage(t *testing.T) {
	m, _ := newTestMonitor(MonitorConfig{})

	m.TrackMemoryUsage(500)
	m.TrackMemoryUsage(900)
	m.TrackMemoryUsage(300)

	stats := m.Stats()
	if stats.UsedMemory != 300 {
		t.Errorf("UsedMemory = %d, want 300", stats.UsedMemory)
	}
	if stats.PeakMemory != 900 {
		t.Errorf("PeakMemory = %d, want 900", stats.PeakMemory)
	}
}

func TestResetStats(t *testing.T) {
	m, mock := newTestMonitor(MonitorConfig{})

	runFrame(m, mock, 40*time.Millisecond)
	m.TrackMemoryUsage(1000)
	m.ResetStats()

	stats := m.Stats()
	if stats.TotalFrames != 0 || stats.FrameDrops != 0 || stats.PeakMemory != 0 {
		t.Errorf("stats not reset: %+v", stats)
	}
	if len(m.history) != 0 {
		t.Error("history not cleared")
	}
}

func TestStatsCallback(t *testing.T) {
	m, mock := newTestMonitor(MonitorConfig{})

	var updates int
	m.OnStatsUpdated(func(types.FrameStats) { updates++ })

	runFrame(m, mock, 10*time.Millisecond)
	runFrame(m, mock, 10*time.Millisecond)

	if updates != 2 {
		t.Errorf("stats callbacks = %d, want 2", updates)
	}
}
