package render

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// SchedulerConfig holds the pacing loop knobs.
type SchedulerConfig struct {
	// TargetFPS is the pacing target for the loop.
	TargetFPS float64

	// MaxFPS caps the effective target.
	MaxFPS float64

	// AdaptiveRefresh enables scalar quality stepping from measured FPS.
	AdaptiveRefresh bool

	// HistorySize bounds the frame time window used for average FPS and
	// jitter.
	HistorySize int
}

// DefaultSchedulerConfig targets high-frequency rendering at 120 FPS.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TargetFPS:       120,
		MaxFPS:          240,
		AdaptiveRefresh: true,
		HistorySize:     60,
	}
}

// SchedulerMetrics is the pacing loop's rolling view of its own timing.
// Times are in milliseconds.
type SchedulerMetrics struct {
	FrameTime  float64 `json:"frame_time"`
	CurrentFPS float64 `json:"current_fps"`
	AverageFPS float64 `json:"average_fps"`
	Jitter     float64 `json:"jitter"`
	Frames     uint64  `json:"frames"`
}

// RenderFunc is invoked once per loop iteration.
type RenderFunc func() error

// ErrorCallback receives render failures; the loop continues regardless.
type ErrorCallback func(error)

// Scheduler runs a dedicated pacing goroutine, distinct from the caller's
// main loop: render, measure, adapt quality, sleep the remainder of the
// frame interval. A slow frame is never "made up" by oversleeping later.
type Scheduler struct {
	mu     sync.Mutex
	config SchedulerConfig

	render  RenderFunc
	quality *Controller

	history []float64
	metrics SchedulerMetrics

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	errCallback    ErrorCallback
	updateCallback func(SchedulerMetrics)

	clock  clock.Clock
	logger *slog.Logger
}

// NewScheduler creates a scheduler driving the given render callback. The
// quality controller is optional; without one adaptive stepping is a no-op.
func NewScheduler(cfg SchedulerConfig, render RenderFunc, quality *Controller) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = def.TargetFPS
	}
	if cfg.MaxFPS > 0 && cfg.TargetFPS > cfg.MaxFPS {
		cfg.TargetFPS = cfg.MaxFPS
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}

	return &Scheduler{
		config:  cfg,
		render:  render,
		quality: quality,
		clock:   clock.New(),
		logger:  slog.Default().With("component", "scheduler"),
	}
}

// OnError registers the callback receiving render failures.
func (s *Scheduler) OnError(cb ErrorCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errCallback = cb
}

// OnUpdate registers a callback fired after each iteration with fresh
// metrics.
func (s *Scheduler) OnUpdate(cb func(SchedulerMetrics)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCallback = cb
}

// Start spawns the pacing loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	s.logger.Info("pacing loop started", "target_fps", s.config.TargetFPS)
	go s.loop(s.stopCh, s.doneCh)
}

// Stop signals the loop and blocks until it has exited. Calling Stop on a
// stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
	s.logger.Info("pacing loop stopped")
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Metrics returns the loop's current rolling metrics.
func (s *Scheduler) Metrics() SchedulerMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func (s *Scheduler) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	interval := time.Duration(float64(time.Second) / s.config.TargetFPS)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		start := s.clock.Now()
		if err := s.safeRender(); err != nil {
			s.forwardError(err)
		}
		elapsed := s.clock.Since(start)

		s.updateMetrics(durationMillis(elapsed))

		if s.config.AdaptiveRefresh {
			s.adjustQuality()
		}

		s.mu.Lock()
		cb := s.updateCallback
		metrics := s.metrics
		s.mu.Unlock()
		if cb != nil {
			cb(metrics)
		}

		if elapsed < interval {
			s.clock.Sleep(interval - elapsed)
		}
	}
}

// safeRender shields the loop from render callback panics.
func (s *Scheduler) safeRender() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render callback panicked: %v", r)
		}
	}()
	if s.render == nil {
		return nil
	}
	return s.render()
}

func (s *Scheduler) forwardError(err error) {
	s.mu.Lock()
	cb := s.errCallback
	s.mu.Unlock()

	if cb != nil {
		cb(err)
	} else {
		s.logger.Warn("render callback failed", "error", err)
	}
}

func (s *Scheduler) updateMetrics(frameTime float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.FrameTime = frameTime
	s.metrics.Frames++
	if frameTime > 0 {
		s.metrics.CurrentFPS = 1000.0 / frameTime
	}

	s.history = append(s.history, frameTime)
	if len(s.history) > s.config.HistorySize {
		s.history = s.history[len(s.history)-s.config.HistorySize:]
	}

	var sum float64
	for _, t := range s.history {
		sum += t
	}
	mean := sum / float64(len(s.history))
	if mean > 0 {
		s.metrics.AverageFPS = 1000.0 / mean
	}

	if len(s.history) > 1 {
		var variance float64
		for _, t := range s.history {
			d := t - mean
			variance += d * d
		}
		variance /= float64(len(s.history))
		s.metrics.Jitter = math.Sqrt(variance)
	}
}

// adjustQuality steps the controller's scalar level: a large step down
// when falling behind, a small step up when comfortably ahead. The
// asymmetry biases toward stability over fidelity.
func (s *Scheduler) adjustQuality() {
	if s.quality == nil {
		return
	}

	s.mu.Lock()
	fps := s.metrics.CurrentFPS
	target := s.config.TargetFPS
	s.mu.Unlock()

	switch {
	case fps < target*0.8:
		level := s.quality.ScalarLevel() - 0.1
		if level < 0.1 {
			level = 0.1
		}
		s.quality.SetScalarLevel(level)
	case fps > target*1.1:
		s.quality.SetScalarLevel(s.quality.ScalarLevel() + 0.05)
	}
}
