package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global    GlobalConfig    `yaml:"global"`
	Cache     CacheConfig     `yaml:"cache"`
	Profiler  ProfilerConfig  `yaml:"profiler"`
	Quality   QualityConfig   `yaml:"quality"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel   string `yaml:"log_level"`
	LogFile    string `yaml:"log_file"`
	LogMaxSize int    `yaml:"log_max_size_mb"`
	LogBackups int    `yaml:"log_backups"`
}

// CacheConfig represents tiered cache settings
type CacheConfig struct {
	GPUSize              string        `yaml:"gpu_size"`
	RAMSize              string        `yaml:"ram_size"`
	DiskSize             string        `yaml:"disk_size"`
	Directory            string        `yaml:"directory"`
	CompressionEnabled   bool          `yaml:"compression_enabled"`
	CompressionThreshold string        `yaml:"compression_threshold"`
	CompressionLevel     int           `yaml:"compression_level"`
	MaxAge               time.Duration `yaml:"max_age"`
	SweepInterval        time.Duration `yaml:"sweep_interval"`
	PrefetchWorkers      int           `yaml:"prefetch_workers"`
}

// ProfilerConfig represents cache profiler settings
type ProfilerConfig struct {
	Enabled             bool          `yaml:"enabled"`
	MaxEvents           int           `yaml:"max_events"`
	MaxPatterns         int           `yaml:"max_patterns"`
	HotAccessThreshold  int           `yaml:"hot_access_threshold"`
	TemporalWindow      time.Duration `yaml:"temporal_window"`
	SequentialThreshold float64       `yaml:"sequential_threshold"`
	AnalysisInterval    time.Duration `yaml:"analysis_interval"`
	SnapshotInterval    time.Duration `yaml:"snapshot_interval"`
	SnapshotHistory     int           `yaml:"snapshot_history"`
}

// QualityConfig represents adaptive quality settings
type QualityConfig struct {
	InitialLevel string  `yaml:"initial_level"`
	Adaptive     bool    `yaml:"adaptive"`
	MaxFrameTime float64 `yaml:"max_frame_time_ms"`
	MaxCPUUsage  float64 `yaml:"max_cpu_usage"`
	MaxGPUUsage  float64 `yaml:"max_gpu_usage"`
}

// SchedulerConfig represents frame pacing loop settings
type SchedulerConfig struct {
	TargetFPS       float64 `yaml:"target_fps"`
	MaxFPS          float64 `yaml:"max_fps"`
	AdaptiveRefresh bool    `yaml:"adaptive_refresh"`
	HistorySize     int     `yaml:"history_size"`
}

// MonitorConfig represents performance monitor settings
type MonitorConfig struct {
	HistorySize    int     `yaml:"history_size"`
	HitchThreshold float64 `yaml:"hitch_threshold_ms"`
}

// MetricsConfig represents the Prometheus exporter settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:   "INFO",
			LogFile:    "",
			LogMaxSize: 50,
			LogBackups: 3,
		},
		Cache: CacheConfig{
			GPUSize:              "256MB",
			RAMSize:              "1GB",
			DiskSize:             "4GB",
			Directory:            defaultCacheDir(),
			CompressionEnabled:   true,
			CompressionThreshold: "64KB",
			CompressionLevel:     6,
			MaxAge:               time.Hour,
			SweepInterval:        30 * time.Second,
			PrefetchWorkers:      4,
		},
		Profiler: ProfilerConfig{
			Enabled:             true,
			MaxEvents:           100000,
			MaxPatterns:         10000,
			HotAccessThreshold:  10,
			TemporalWindow:      60 * time.Second,
			SequentialThreshold: 0.8,
			AnalysisInterval:    30 * time.Second,
			SnapshotInterval:    10 * time.Second,
			SnapshotHistory:     100,
		},
		Quality: QualityConfig{
			InitialLevel: "medium",
			Adaptive:     true,
			MaxFrameTime: 16.67,
			MaxCPUUsage:  80.0,
			MaxGPUUsage:  85.0,
		},
		Scheduler: SchedulerConfig{
			TargetFPS:       120,
			MaxFPS:          240,
			AdaptiveRefresh: true,
			HistorySize:     60,
		},
		Monitor: MonitorConfig{
			HistorySize:    300,
			HitchThreshold: 33.33,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  ":9090",
			Path:    "/metrics",
		},
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "framekit")
	}
	return filepath.Join(os.TempDir(), "framekit-cache")
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from environment variables
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("FRAMEKIT_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("FRAMEKIT_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}

	if val := os.Getenv("FRAMEKIT_CACHE_GPU_SIZE"); val != "" {
		c.Cache.GPUSize = val
	}
	if val := os.Getenv("FRAMEKIT_CACHE_RAM_SIZE"); val != "" {
		c.Cache.RAMSize = val
	}
	if val := os.Getenv("FRAMEKIT_CACHE_DISK_SIZE"); val != "" {
		c.Cache.DiskSize = val
	}
	if val := os.Getenv("FRAMEKIT_CACHE_DIR"); val != "" {
		c.Cache.Directory = val
	}
	if val := os.Getenv("FRAMEKIT_COMPRESSION_ENABLED"); val != "" {
		c.Cache.CompressionEnabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("FRAMEKIT_CACHE_MAX_AGE"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Cache.MaxAge = duration
		}
	}

	if val := os.Getenv("FRAMEKIT_PROFILER_ENABLED"); val != "" {
		c.Profiler.Enabled = strings.ToLower(val) == "true"
	}

	if val := os.Getenv("FRAMEKIT_QUALITY_LEVEL"); val != "" {
		c.Quality.InitialLevel = strings.ToLower(val)
	}
	if val := os.Getenv("FRAMEKIT_QUALITY_ADAPTIVE"); val != "" {
		c.Quality.Adaptive = strings.ToLower(val) == "true"
	}

	if val := os.Getenv("FRAMEKIT_TARGET_FPS"); val != "" {
		if fps, err := strconv.ParseFloat(val, 64); err == nil {
			c.Scheduler.TargetFPS = fps
		}
	}

	if val := os.Getenv("FRAMEKIT_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("FRAMEKIT_METRICS_LISTEN"); val != "" {
		c.Metrics.Listen = val
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	for _, size := range []struct {
		name  string
		value string
	}{
		{"gpu_size", c.Cache.GPUSize},
		{"ram_size", c.Cache.RAMSize},
		{"disk_size", c.Cache.DiskSize},
		{"compression_threshold", c.Cache.CompressionThreshold},
	} {
		if _, err := ParseSize(size.value); err != nil {
			return fmt.Errorf("invalid %s: %w", size.name, err)
		}
	}

	if c.Cache.Directory == "" {
		return fmt.Errorf("cache directory must be set")
	}
	if c.Cache.PrefetchWorkers <= 0 {
		return fmt.Errorf("prefetch_workers must be greater than 0")
	}

	if c.Profiler.SequentialThreshold <= 0 || c.Profiler.SequentialThreshold > 1 {
		return fmt.Errorf("sequential_threshold must be in (0, 1]")
	}

	if _, err := ParseQualityLevel(c.Quality.InitialLevel); err != nil {
		return err
	}

	if c.Scheduler.TargetFPS <= 0 {
		return fmt.Errorf("target_fps must be greater than 0")
	}
	if c.Scheduler.MaxFPS > 0 && c.Scheduler.MaxFPS < c.Scheduler.TargetFPS {
		return fmt.Errorf("max_fps cannot be below target_fps")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.ToUpper(c.Global.LogLevel) == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}

// ParseSize converts a human-readable size string like "256MB" to bytes.
// Plain numbers are taken as bytes.
func ParseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(sizeStr)
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	if val, err := strconv.ParseInt(sizeStr, 10, 64); err == nil {
		return val, nil
	}

	units := []struct {
		suffix     string
		multiplier int64
	}{
		{"KB", 1024},
		{"MB", 1024 * 1024},
		{"GB", 1024 * 1024 * 1024},
		{"TB", 1024 * 1024 * 1024 * 1024},
		{"B", 1},
	}

	upper := strings.ToUpper(sizeStr)
	for _, unit := range units {
		if strings.HasSuffix(upper, unit.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(upper, unit.suffix))
			if val, err := strconv.ParseFloat(numStr, 64); err == nil {
				return int64(val * float64(unit.multiplier)), nil
			}
		}
	}

	return 0, fmt.Errorf("invalid size format: %s", sizeStr)
}
