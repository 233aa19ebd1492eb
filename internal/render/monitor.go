package render

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/framekit/framekit/pkg/types"
)

const stabilitySamples = 30

// MonitorConfig holds frame monitoring knobs.
type MonitorConfig struct {
	// HistorySize bounds the rolling frame window.
	HistorySize int

	// HitchThreshold in milliseconds; a frame above it counts as a drop.
	HitchThreshold float64
}

// DefaultMonitorConfig keeps 300 frames and flags anything slower
// than 30 FPS.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		HistorySize:    300,
		HitchThreshold: 33.33,
	}
}

// frameRecord is one completed frame's timing, in milliseconds.
type frameRecord struct {
	frameTime float64
	cpuTime   float64
	gpuTime   float64
}

// IssueCallback fires when a frame exceeds the hitch threshold.
type IssueCallback func(types.FrameStats)

// StatsCallback fires after every EndFrame with fresh aggregates.
type StatsCallback func(types.FrameStats)

// Monitor produces rolling frame-time statistics. BeginFrame/EndFrame
// assume a single producer: the active render loop. Aggregates are
// recomputed from the full retained window on every EndFrame rather than
// incrementally, so a dropped sample cannot cause drift.
type Monitor struct {
	mu     sync.Mutex
	config MonitorConfig

	history    []frameRecord
	frameStart time.Time
	cpuTimers  map[string]time.Time
	gpuStart   time.Time

	stats      types.FrameStats
	usedMemory int64
	peakMemory int64

	issueCallbacks []IssueCallback
	statsCallbacks []StatsCallback

	clock clock.Clock
}

// NewMonitor creates a monitor with the given config; zero fields fall
// back to defaults.
func NewMonitor(cfg MonitorConfig) *Monitor {
	def := DefaultMonitorConfig()
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.HitchThreshold <= 0 {
		cfg.HitchThreshold = def.HitchThreshold
	}

	return &Monitor{
		config:    cfg,
		cpuTimers: make(map[string]time.Time),
		clock:     clock.New(),
	}
}

// BeginFrame marks the start of the current frame. Must be paired with
// exactly one EndFrame before the next BeginFrame.
func (m *Monitor) BeginFrame() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frameStart = m.clock.Now()
}

// EndFrame closes the current frame, appends it to the history and
// recomputes the aggregates.
func (m *Monitor) EndFrame() {
	m.mu.Lock()

	elapsed := m.clock.Since(m.frameStart)
	record := frameRecord{frameTime: durationMillis(elapsed)}

	m.history = append(m.history, record)
	if len(m.history) > m.config.HistorySize {
		m.history = m.history[len(m.history)-m.config.HistorySize:]
	}

	hitch := record.frameTime > m.config.HitchThreshold
	if hitch {
		m.stats.FrameDrops++
	}
	m.stats.TotalFrames++

	m.recomputeLocked()
	stats := m.stats
	issueCbs := m.issueCallbacks
	statsCbs := m.statsCallbacks
	m.mu.Unlock()

	if hitch {
		for _, cb := range issueCbs {
			cb(stats)
		}
	}
	for _, cb := range statsCbs {
		cb(stats)
	}
}

// BeginCPUWork starts a named CPU span inside the current frame.
func (m *Monitor) BeginCPUWork(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cpuTimers[name] = m.clock.Now()
}

// EndCPUWork closes a named CPU span; multiple spans in one frame
// accumulate additively.
func (m *Monitor) EndCPUWork(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start, ok := m.cpuTimers[name]
	if !ok || len(m.history) == 0 {
		return
	}
	delete(m.cpuTimers, name)
	m.history[len(m.history)-1].cpuTime += durationMillis(m.clock.Since(start))
}

// BeginGPUWork starts the GPU span for the current frame.
func (m *Monitor) BeginGPUWork() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gpuStart = m.clock.Now()
}

// EndGPUWork closes the GPU span.
func (m *Monitor) EndGPUWork() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return
	}
	m.history[len(m.history)-1].gpuTime = durationMillis(m.clock.Since(m.gpuStart))
}

// TrackMemoryUsage records the renderer's current memory footprint.
func (m *Monitor) TrackMemoryUsage(used int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.usedMemory = used
	if used > m.peakMemory {
		m.peakMemory = used
	}
	m.stats.UsedMemory = m.usedMemory
	m.stats.PeakMemory = m.peakMemory
}

// Stats returns the current aggregates.
func (m *Monitor) Stats() types.FrameStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// IsStable reports whether the last 30 frame times vary by less than 20%
// of their mean. Fewer than 30 samples is never stable.
func (m *Monitor) IsStable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) < stabilitySamples {
		return false
	}

	window := m.history[len(m.history)-stabilitySamples:]
	var sum float64
	for _, r := range window {
		sum += r.frameTime
	}
	mean := sum / float64(len(window))

	var variance float64
	for _, r := range window {
		d := r.frameTime - mean
		variance += d * d
	}
	variance /= float64(len(window))

	return math.Sqrt(variance) < mean*0.2
}

// ResetStats clears the counters and the frame history.
func (m *Monitor) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats = types.FrameStats{}
	m.history = m.history[:0]
	m.usedMemory = 0
	m.peakMemory = 0
}

// OnIssue registers a callback fired when a frame exceeds the hitch
// threshold.
func (m *Monitor) OnIssue(cb IssueCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issueCallbacks = append(m.issueCallbacks, cb)
}

// OnStatsUpdated registers a callback fired after every completed frame.
func (m *Monitor) OnStatsUpdated(cb StatsCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statsCallbacks = append(m.statsCallbacks, cb)
}

func (m *Monitor) recomputeLocked() {
	if len(m.history) == 0 {
		return
	}

	last := m.history[len(m.history)-1]
	m.stats.CurrentFrameTime = last.frameTime
	m.stats.CurrentCPUTime = last.cpuTime
	m.stats.CurrentGPUTime = last.gpuTime
	if last.frameTime > 0 {
		m.stats.CurrentFPS = 1000.0 / last.frameTime
	}

	var totalFrame, totalCPU, totalGPU float64
	minFrame, maxFrame := math.MaxFloat64, 0.0
	for _, r := range m.history {
		totalFrame += r.frameTime
		totalCPU += r.cpuTime
		totalGPU += r.gpuTime
		if r.frameTime < minFrame {
			minFrame = r.frameTime
		}
		if r.frameTime > maxFrame {
			maxFrame = r.frameTime
		}
	}

	count := float64(len(m.history))
	m.stats.AverageFrameTime = totalFrame / count
	m.stats.AverageCPUTime = totalCPU / count
	m.stats.AverageGPUTime = totalGPU / count
	if m.stats.AverageFrameTime > 0 {
		m.stats.AverageFPS = 1000.0 / m.stats.AverageFrameTime
	}

	m.stats.MinFrameTime = minFrame
	m.stats.MaxFrameTime = maxFrame
	if minFrame > 0 {
		m.stats.MaxFPS = 1000.0 / minFrame
	}
	if maxFrame > 0 {
		m.stats.MinFPS = 1000.0 / maxFrame
	}

	if m.stats.TotalFrames > 0 {
		m.stats.FrameDropRate = float64(m.stats.FrameDrops) / float64(m.stats.TotalFrames)
	}
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
