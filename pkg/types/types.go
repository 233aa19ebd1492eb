package types

import (
	"time"
)

// TierID identifies one level of the cache hierarchy, ordered from
// fastest/smallest to slowest/largest.
type TierID int

const (
	TierGPU  TierID = iota // GPU-resident memory, fastest
	TierRAM                // system memory
	TierDisk               // persistent storage, compressed
)

// Tiers lists all tiers in probe order (fastest first).
var Tiers = []TierID{TierGPU, TierRAM, TierDisk}

func (t TierID) String() string {
	switch t {
	case TierGPU:
		return "gpu"
	case TierRAM:
		return "ram"
	case TierDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Insertions  uint64  `json:"insertions"`
	Size        int64   `json:"size"`
	Capacity    int64   `json:"capacity"`
	EntryCount  int     `json:"entry_count"`
	HitRatio    float64 `json:"hit_ratio"`
	Utilization float64 `json:"utilization"`
}

// AccessPattern describes the observed access behavior of a single cache key.
// The three classifications are independent: a key may be both hot and
// sequential.
type AccessPattern struct {
	Key           string        `json:"key"`
	AccessTimes   []time.Time   `json:"access_times"`
	TotalAccesses uint64        `json:"total_accesses"`
	AvgInterval   time.Duration `json:"avg_interval"`
	Hot           bool          `json:"hot"`
	Temporal      bool          `json:"temporal"`
	Sequential    bool          `json:"sequential"`
}

// QualityLevel is a discrete rendering quality preset.
type QualityLevel int

const (
	QualityLow QualityLevel = iota
	QualityMedium
	QualityHigh
	QualityUltra
)

func (q QualityLevel) String() string {
	switch q {
	case QualityLow:
		return "low"
	case QualityMedium:
		return "medium"
	case QualityHigh:
		return "high"
	case QualityUltra:
		return "ultra"
	default:
		return "unknown"
	}
}

// AntiAliasing is the multisampling mode applied by the renderer.
type AntiAliasing int

const (
	AANone AntiAliasing = iota
	AA2x
	AA4x
	AA8x
)

func (a AntiAliasing) String() string {
	switch a {
	case AANone:
		return "none"
	case AA2x:
		return "msaa2x"
	case AA4x:
		return "msaa4x"
	case AA8x:
		return "msaa8x"
	default:
		return "unknown"
	}
}

// QualitySettings is the bundle of rendering fidelity knobs consumed by the
// renderer. Each QualityLevel maps to one fixed bundle; adaptive stepping
// moves individual fields one notch at a time instead.
type QualitySettings struct {
	Level            QualityLevel `json:"level"`
	AntiAliasing     AntiAliasing `json:"anti_aliasing"`
	HDR              bool         `json:"hdr"`
	WideColorGamut   bool         `json:"wide_color_gamut"`
	Shadows          bool         `json:"shadows"`
	Blur             bool         `json:"blur"`
	Mipmaps          bool         `json:"mipmaps"`
	TextureFiltering bool         `json:"texture_filtering"`
	MaxTextureSize   int          `json:"max_texture_size"`
	LODBias          float64      `json:"lod_bias"`
}

// PerformanceInfo is one telemetry sample supplied by the windowing layer.
// Times are in milliseconds; CPU/GPU values are utilization percentages or
// span times depending on the source, compared against the controller's
// configured ceilings either way.
type PerformanceInfo struct {
	FrameTime   float64 `json:"frame_time_ms"`
	CPUTime     float64 `json:"cpu_time"`
	GPUTime     float64 `json:"gpu_time"`
	MemoryUsage float64 `json:"memory_usage"`
	Throttling  bool    `json:"throttling"`
}

// FrameStats is the rolling frame-timing statistics produced by the
// performance monitor. Times are in milliseconds.
type FrameStats struct {
	CurrentFPS       float64 `json:"current_fps"`
	CurrentFrameTime float64 `json:"current_frame_time"`
	CurrentCPUTime   float64 `json:"current_cpu_time"`
	CurrentGPUTime   float64 `json:"current_gpu_time"`

	AverageFPS       float64 `json:"average_fps"`
	AverageFrameTime float64 `json:"average_frame_time"`
	AverageCPUTime   float64 `json:"average_cpu_time"`
	AverageGPUTime   float64 `json:"average_gpu_time"`

	MinFrameTime float64 `json:"min_frame_time"`
	MaxFrameTime float64 `json:"max_frame_time"`
	MinFPS       float64 `json:"min_fps"`
	MaxFPS       float64 `json:"max_fps"`

	UsedMemory int64 `json:"used_memory"`
	PeakMemory int64 `json:"peak_memory"`

	FrameDrops    uint64  `json:"frame_drops"`
	TotalFrames   uint64  `json:"total_frames"`
	FrameDropRate float64 `json:"frame_drop_rate"`
}
