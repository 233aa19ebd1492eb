package render

import (
	"log/slog"
	"sync"

	"github.com/framekit/framekit/pkg/types"
)

// Adaptive thresholds. Degrade triggers the moment any ceiling is crossed;
// improve requires every metric below improveHeadroom of its ceiling, a
// wide dead band that keeps the two directions from oscillating.
const (
	improveHeadroom = 0.7

	minTextureSize = 2048
	maxTextureStep = 8192
)

// ControllerConfig holds the adaptive quality ceilings.
type ControllerConfig struct {
	// MaxFrameTime is the frame time ceiling in milliseconds.
	MaxFrameTime float64

	// MaxCPUUsage and MaxGPUUsage are utilization ceilings in percent.
	MaxCPUUsage float64
	MaxGPUUsage float64
}

// DefaultControllerConfig targets 60 FPS.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		MaxFrameTime: 16.67,
		MaxCPUUsage:  80.0,
		MaxGPUUsage:  85.0,
	}
}

// QualityObserver is notified after every settings change.
type QualityObserver func(types.QualitySettings)

// Controller owns the process-wide quality settings. Readers pull immutable
// snapshots via Settings; only the controller mutates. The adaptive path
// moves one notch per update in a single direction, never both.
type Controller struct {
	mu       sync.Mutex
	config   ControllerConfig
	settings types.QualitySettings
	adaptive bool

	// scalar is the coarse 0..1 quality knob driven by the frame
	// scheduler, independent of the discrete settings.
	scalar float64

	lastInfo  types.PerformanceInfo
	observers []QualityObserver

	logger *slog.Logger
}

var _ types.QualitySource = (*Controller)(nil)

// NewController starts at the medium preset with a full scalar level.
func NewController(cfg ControllerConfig) *Controller {
	def := DefaultControllerConfig()
	if cfg.MaxFrameTime <= 0 {
		cfg.MaxFrameTime = def.MaxFrameTime
	}
	if cfg.MaxCPUUsage <= 0 {
		cfg.MaxCPUUsage = def.MaxCPUUsage
	}
	if cfg.MaxGPUUsage <= 0 {
		cfg.MaxGPUUsage = def.MaxGPUUsage
	}

	return &Controller{
		config:   cfg,
		settings: PresetFor(types.QualityMedium),
		scalar:   1.0,
		logger:   slog.Default().With("component", "quality"),
	}
}

// PresetFor returns the fixed settings bundle for a discrete level.
func PresetFor(level types.QualityLevel) types.QualitySettings {
	s := types.QualitySettings{
		Level:            level,
		Mipmaps:          true,
		TextureFiltering: true,
	}

	switch level {
	case types.QualityLow:
		s.AntiAliasing = types.AANone
		s.MaxTextureSize = 2048
	case types.QualityMedium:
		s.AntiAliasing = types.AA2x
		s.Shadows = true
		s.Blur = true
		s.MaxTextureSize = 4096
	case types.QualityHigh:
		s.AntiAliasing = types.AA4x
		s.HDR = true
		s.WideColorGamut = true
		s.Shadows = true
		s.Blur = true
		s.MaxTextureSize = 8192
	case types.QualityUltra:
		s.AntiAliasing = types.AA8x
		s.HDR = true
		s.WideColorGamut = true
		s.Shadows = true
		s.Blur = true
		s.MaxTextureSize = 16384
	}
	return s
}

// SetLevel applies the preset for level atomically.
func (c *Controller) SetLevel(level types.QualityLevel) {
	c.mu.Lock()
	c.settings = PresetFor(level)
	snapshot := c.settings
	observers := c.observers
	c.mu.Unlock()

	c.logger.Info("quality level applied", "level", level.String())
	notify(observers, snapshot)
}

// SetSettings applies an arbitrary settings bundle outside the preset
// table.
func (c *Controller) SetSettings(s types.QualitySettings) {
	c.mu.Lock()
	c.settings = s
	observers := c.observers
	c.mu.Unlock()

	notify(observers, s)
}

// Settings returns the current settings snapshot.
func (c *Controller) Settings() types.QualitySettings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// SetAdaptive toggles automatic adaptation on performance updates.
func (c *Controller) SetAdaptive(enable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adaptive = enable
}

// Adaptive reports whether automatic adaptation is enabled.
func (c *Controller) Adaptive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adaptive
}

// UpdatePerformanceInfo feeds one telemetry sample; when adaptation is
// enabled the settings step at most one notch in one direction.
func (c *Controller) UpdatePerformanceInfo(info types.PerformanceInfo) {
	c.mu.Lock()
	c.lastInfo = info
	if !c.adaptive {
		c.mu.Unlock()
		return
	}

	changed := c.adaptLocked(info)
	snapshot := c.settings
	observers := c.observers
	c.mu.Unlock()

	if changed {
		notify(observers, snapshot)
	}
}

func (c *Controller) adaptLocked(info types.PerformanceInfo) bool {
	degrade := info.FrameTime > c.config.MaxFrameTime ||
		info.CPUTime > c.config.MaxCPUUsage ||
		info.GPUTime > c.config.MaxGPUUsage ||
		info.Throttling

	improve := info.FrameTime < c.config.MaxFrameTime*improveHeadroom &&
		info.CPUTime < c.config.MaxCPUUsage*improveHeadroom &&
		info.GPUTime < c.config.MaxGPUUsage*improveHeadroom &&
		!info.Throttling

	switch {
	case degrade:
		return c.degradeLocked()
	case improve:
		return c.improveLocked()
	}
	return false
}

func (c *Controller) degradeLocked() bool {
	before := c.settings

	switch c.settings.AntiAliasing {
	case types.AA8x:
		c.settings.AntiAliasing = types.AA4x
	case types.AA4x:
		c.settings.AntiAliasing = types.AA2x
	case types.AA2x:
		c.settings.AntiAliasing = types.AANone
	}

	if c.settings.MaxTextureSize > minTextureSize {
		c.settings.MaxTextureSize /= 2
	}

	c.settings.Blur = false
	c.settings.Shadows = false

	return c.settings != before
}

func (c *Controller) improveLocked() bool {
	before := c.settings

	switch c.settings.AntiAliasing {
	case types.AANone:
		c.settings.AntiAliasing = types.AA2x
	case types.AA2x:
		c.settings.AntiAliasing = types.AA4x
	case types.AA4x:
		c.settings.AntiAliasing = types.AA8x
	}

	if c.settings.MaxTextureSize < maxTextureStep {
		c.settings.MaxTextureSize *= 2
	}

	c.settings.Blur = true
	c.settings.Shadows = true

	return c.settings != before
}

// SetScalarLevel sets the coarse quality knob, clamped to [0, 1].
func (c *Controller) SetScalarLevel(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.scalar = level
}

// ScalarLevel returns the coarse quality knob.
func (c *Controller) ScalarLevel() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scalar
}

// OnChange registers an observer for settings changes.
func (c *Controller) OnChange(obs QualityObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, obs)
}

func notify(observers []QualityObserver, s types.QualitySettings) {
	for _, obs := range observers {
		obs(s)
	}
}
