// Package metrics exposes cache and frame telemetry to Prometheus. The
// exporter observes, it never feeds back into cache or quality decisions.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/framekit/framekit/pkg/types"
)

// Config represents the exporter configuration
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// Exporter registers framekit metrics on a private registry and serves
// them over HTTP. A disabled exporter accepts all calls as no-ops.
type Exporter struct {
	config   Config
	registry *prometheus.Registry

	cacheTraffic     *prometheus.CounterVec
	cacheSizeGauge   *prometheus.GaugeVec
	cacheUtilization *prometheus.GaugeVec

	frameTime    prometheus.Histogram
	fpsGauge     prometheus.Gauge
	frameDrops   prometheus.Counter
	qualityLevel prometheus.Gauge

	server *http.Server
	logger *slog.Logger
}

var _ types.Recorder = (*Exporter)(nil)

// NewExporter creates an exporter with a private registry.
func NewExporter(cfg Config) (*Exporter, error) {
	if cfg.Listen == "" {
		cfg.Listen = ":9090"
	}
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "framekit"
	}

	e := &Exporter{
		config: cfg,
		logger: slog.Default().With("component", "metrics"),
	}
	if !cfg.Enabled {
		return e, nil
	}

	e.registry = prometheus.NewRegistry()
	e.initMetrics()
	if err := e.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return e, nil
}

func (e *Exporter) initMetrics() {
	e.cacheTraffic = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: e.config.Namespace,
			Name:      "cache_events_total",
			Help:      "Cache traffic events by cache and event type",
		},
		[]string{"cache", "event"},
	)

	e.cacheSizeGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: e.config.Namespace,
			Name:      "cache_size_bytes",
			Help:      "Current cache tier size in bytes",
		},
		[]string{"cache", "tier"},
	)

	e.cacheUtilization = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: e.config.Namespace,
			Name:      "cache_utilization_ratio",
			Help:      "Cache tier size relative to capacity",
		},
		[]string{"cache", "tier"},
	)

	e.frameTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: e.config.Namespace,
			Name:      "frame_time_seconds",
			Help:      "Frame production time",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
	)

	e.fpsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: e.config.Namespace,
			Name:      "frames_per_second",
			Help:      "Current frames per second",
		},
	)

	e.frameDrops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: e.config.Namespace,
			Name:      "frame_drops_total",
			Help:      "Frames exceeding the hitch threshold",
		},
	)

	e.qualityLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: e.config.Namespace,
			Name:      "quality_level",
			Help:      "Current discrete quality level (0=low .. 3=ultra)",
		},
	)
}

func (e *Exporter) registerMetrics() error {
	collectors := []prometheus.Collector{
		e.cacheTraffic,
		e.cacheSizeGauge,
		e.cacheUtilization,
		e.frameTime,
		e.fpsGauge,
		e.frameDrops,
		e.qualityLevel,
	}
	for _, c := range collectors {
		if err := e.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Start serves the metrics endpoint in the background.
func (e *Exporter) Start(ctx context.Context) error {
	if !e.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(e.config.Path, promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	e.server = &http.Server{
		Addr:              e.config.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logger.Error("metrics server failed", "error", err)
		}
	}()

	e.logger.Info("metrics exporter started", "listen", e.config.Listen, "path", e.config.Path)
	return nil
}

// Stop shuts the metrics server down.
func (e *Exporter) Stop(ctx context.Context) error {
	if e.server == nil {
		return nil
	}
	return e.server.Shutdown(ctx)
}

// RecordHit counts a cache hit.
func (e *Exporter) RecordHit(cache, key string, size int64, duration time.Duration) {
	e.count(cache, "hit")
}

// RecordMiss counts a cache miss.
func (e *Exporter) RecordMiss(cache, key string, duration time.Duration) {
	e.count(cache, "miss")
}

// RecordEviction counts an eviction.
func (e *Exporter) RecordEviction(cache, key string, size int64, duration time.Duration) {
	e.count(cache, "eviction")
}

// RecordInsertion counts an insertion.
func (e *Exporter) RecordInsertion(cache, key string, size int64, duration time.Duration) {
	e.count(cache, "insertion")
}

func (e *Exporter) count(cache, event string) {
	if !e.config.Enabled {
		return
	}
	e.cacheTraffic.With(prometheus.Labels{"cache": cache, "event": event}).Inc()
}

// UpdateTierSize publishes one tier's size and utilization.
func (e *Exporter) UpdateTierSize(cache string, tier types.TierID, size, capacity int64) {
	if !e.config.Enabled {
		return
	}

	labels := prometheus.Labels{"cache": cache, "tier": tier.String()}
	e.cacheSizeGauge.With(labels).Set(float64(size))
	if capacity > 0 {
		e.cacheUtilization.With(labels).Set(float64(size) / float64(capacity))
	}
}

// ObserveFrame publishes one completed frame's timing.
func (e *Exporter) ObserveFrame(stats types.FrameStats) {
	if !e.config.Enabled {
		return
	}

	e.frameTime.Observe(stats.CurrentFrameTime / 1000.0)
	e.fpsGauge.Set(stats.CurrentFPS)
}

// RecordFrameDrop counts one hitched frame.
func (e *Exporter) RecordFrameDrop() {
	if !e.config.Enabled {
		return
	}
	e.frameDrops.Inc()
}

// SetQualityLevel publishes the current discrete quality level.
func (e *Exporter) SetQualityLevel(level types.QualityLevel) {
	if !e.config.Enabled {
		return
	}
	e.qualityLevel.Set(float64(level))
}

// Registry exposes the private registry for tests and embedding.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
