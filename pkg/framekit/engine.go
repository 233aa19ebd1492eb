// Package framekit assembles the core into one explicitly constructed
// engine: tiered fragment cache, cache profiler, performance monitor,
// adaptive quality controller, frame scheduler and the maintenance jobs
// that tie them together. Nothing in here is a global; tests and embedders
// can run any number of isolated engines.
package framekit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/framekit/framekit/internal/cache"
	"github.com/framekit/framekit/internal/config"
	"github.com/framekit/framekit/internal/logging"
	"github.com/framekit/framekit/internal/maintenance"
	"github.com/framekit/framekit/internal/metrics"
	"github.com/framekit/framekit/internal/profiling"
	"github.com/framekit/framekit/internal/render"
	"github.com/framekit/framekit/pkg/types"
)

// RenderFunc is the embedder's per-frame callback.
type RenderFunc = render.RenderFunc

// Engine owns one instance of every core component.
type Engine struct {
	config *config.Configuration
	logger *slog.Logger

	cache     *cache.TieredCache
	profiler  *profiling.Profiler
	monitor   *render.Monitor
	quality   *render.Controller
	scheduler *render.Scheduler
	exporter  *metrics.Exporter
	jobs      *maintenance.Scheduler

	started bool
}

// New builds an engine from the given configuration. The render callback
// runs once per frame on the scheduler's goroutine; pass nil to drive
// frames manually through Monitor.
func New(cfg *config.Configuration, renderFn RenderFunc) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.Setup(cfg.Global)

	cacheCfg, err := cacheConfig(cfg.Cache)
	if err != nil {
		return nil, err
	}
	// Sweeps run on the shared maintenance scheduler instead of a
	// per-cache goroutine.
	cacheCfg.SweepInterval = 0

	store, err := cache.New(cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	profiler := profiling.New(profiling.Config{
		MaxEvents:           cfg.Profiler.MaxEvents,
		MaxPatterns:         cfg.Profiler.MaxPatterns,
		HotAccessThreshold:  cfg.Profiler.HotAccessThreshold,
		TemporalWindow:      cfg.Profiler.TemporalWindow,
		SequentialThreshold: cfg.Profiler.SequentialThreshold,
		SnapshotHistory:     cfg.Profiler.SnapshotHistory,
	})

	exporter, err := metrics.NewExporter(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Listen:  cfg.Metrics.Listen,
		Path:    cfg.Metrics.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	if cfg.Profiler.Enabled {
		store.SetRecorder(types.MultiRecorder{profiler, exporter})
	} else {
		store.SetRecorder(exporter)
	}

	quality := render.NewController(render.ControllerConfig{
		MaxFrameTime: cfg.Quality.MaxFrameTime,
		MaxCPUUsage:  cfg.Quality.MaxCPUUsage,
		MaxGPUUsage:  cfg.Quality.MaxGPUUsage,
	})
	level, err := config.ParseQualityLevel(cfg.Quality.InitialLevel)
	if err != nil {
		return nil, err
	}
	quality.SetLevel(level)
	quality.SetAdaptive(cfg.Quality.Adaptive)
	quality.OnChange(func(s types.QualitySettings) {
		exporter.SetQualityLevel(s.Level)
	})

	monitor := render.NewMonitor(render.MonitorConfig{
		HistorySize:    cfg.Monitor.HistorySize,
		HitchThreshold: cfg.Monitor.HitchThreshold,
	})
	monitor.OnStatsUpdated(func(stats types.FrameStats) {
		exporter.ObserveFrame(stats)
	})
	monitor.OnIssue(func(types.FrameStats) {
		exporter.RecordFrameDrop()
	})

	scheduler := render.NewScheduler(render.SchedulerConfig{
		TargetFPS:       cfg.Scheduler.TargetFPS,
		MaxFPS:          cfg.Scheduler.MaxFPS,
		AdaptiveRefresh: cfg.Scheduler.AdaptiveRefresh,
		HistorySize:     cfg.Scheduler.HistorySize,
	}, renderFn, quality)

	e := &Engine{
		config:    cfg,
		logger:    logger,
		cache:     store,
		profiler:  profiler,
		monitor:   monitor,
		quality:   quality,
		scheduler: scheduler,
		exporter:  exporter,
		jobs:      maintenance.NewScheduler(),
	}

	if err := e.registerJobs(); err != nil {
		return nil, err
	}

	return e, nil
}

func cacheConfig(cfg config.CacheConfig) (cache.Config, error) {
	gpu, err := config.ParseSize(cfg.GPUSize)
	if err != nil {
		return cache.Config{}, fmt.Errorf("invalid gpu_size: %w", err)
	}
	ram, err := config.ParseSize(cfg.RAMSize)
	if err != nil {
		return cache.Config{}, fmt.Errorf("invalid ram_size: %w", err)
	}
	disk, err := config.ParseSize(cfg.DiskSize)
	if err != nil {
		return cache.Config{}, fmt.Errorf("invalid disk_size: %w", err)
	}
	threshold, err := config.ParseSize(cfg.CompressionThreshold)
	if err != nil {
		return cache.Config{}, fmt.Errorf("invalid compression_threshold: %w", err)
	}

	return cache.Config{
		Name:                 "fragments",
		MaxGPUSize:           gpu,
		MaxRAMSize:           ram,
		MaxDiskSize:          disk,
		Directory:            cfg.Directory,
		EnableCompression:    cfg.CompressionEnabled,
		CompressionThreshold: threshold,
		CompressionLevel:     cfg.CompressionLevel,
		MaxAge:               cfg.MaxAge,
		SweepInterval:        cfg.SweepInterval,
		PrefetchWorkers:      cfg.PrefetchWorkers,
	}, nil
}

func (e *Engine) registerJobs() error {
	sweep := e.config.Cache.SweepInterval
	if sweep <= 0 {
		sweep = 30 * time.Second
	}
	if err := e.jobs.Every(sweep, "cache-sweep", e.cache.Sweep); err != nil {
		return err
	}
	if err := e.jobs.Every(sweep, "tier-export", e.exportTierSizes); err != nil {
		return err
	}

	if e.config.Profiler.Enabled {
		analysis := e.config.Profiler.AnalysisInterval
		if analysis <= 0 {
			analysis = 30 * time.Second
		}
		if err := e.jobs.Every(analysis, "pattern-analysis", e.profiler.AnalyzePatterns); err != nil {
			return err
		}

		snapshot := e.config.Profiler.SnapshotInterval
		if snapshot <= 0 {
			snapshot = 10 * time.Second
		}
		if err := e.jobs.Every(snapshot, "performance-snapshot", func() {
			e.profiler.TakeSnapshot()
		}); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) exportTierSizes() {
	for _, tier := range types.Tiers {
		stats := e.cache.TierStats(tier)
		e.exporter.UpdateTierSize("fragments", tier, stats.Size, stats.Capacity)
	}
}

// Start launches the maintenance jobs, the metrics endpoint and, when a
// render callback was supplied, the pacing loop.
func (e *Engine) Start(ctx context.Context) error {
	if e.started {
		return nil
	}
	e.started = true

	if err := e.exporter.Start(ctx); err != nil {
		return err
	}
	e.jobs.Start()
	e.scheduler.Start()

	e.logger.Info("engine started",
		"target_fps", e.config.Scheduler.TargetFPS,
		"quality", e.quality.Settings().Level.String())
	return nil
}

// Stop halts the pacing loop, maintenance jobs and metrics endpoint, then
// closes the cache.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.started {
		return nil
	}
	e.started = false

	e.scheduler.Stop()
	e.jobs.Stop()
	if err := e.exporter.Stop(ctx); err != nil {
		e.logger.Warn("metrics exporter shutdown failed", "error", err)
	}

	if err := e.cache.Close(); err != nil {
		return err
	}
	e.logger.Info("engine stopped")
	return nil
}

// Cache returns the tiered fragment cache.
func (e *Engine) Cache() *cache.TieredCache { return e.cache }

// Profiler returns the cache profiler.
func (e *Engine) Profiler() *profiling.Profiler { return e.profiler }

// Monitor returns the performance monitor. Frame timing calls assume a
// single producer; serialize them if multiple loops render.
func (e *Engine) Monitor() *render.Monitor { return e.monitor }

// Quality returns the quality controller.
func (e *Engine) Quality() *render.Controller { return e.quality }

// Scheduler returns the frame scheduler.
func (e *Engine) Scheduler() *render.Scheduler { return e.scheduler }
