/*
Package types provides the core interfaces, data structures, and type definitions for framekit.

This package serves as the foundation for the library, defining the contracts
between components and the data structures shared across the codebase.

# Architecture Overview

framekit follows a layered architecture with well-defined interfaces between components:

	┌─────────────────────────────────────────────┐
	│          Windowing / Render Layer           │
	│        (external, supplies callbacks)       │
	└─────────────────────────────────────────────┘
	          │           │            │
	┌─────────┴───┐ ┌─────┴─────┐ ┌────┴────────┐
	│  Scheduler  │ │  Quality  │ │ Performance │
	│ (pacing)    │ │ Controller│ │   Monitor   │
	└─────────────┘ └───────────┘ └─────────────┘
	          │           │            │
	┌─────────┴───────────┴────────────┴────────┐
	│            Tiered Cache + Profiler        │
	│         (internal/cache, profiling)       │
	└───────────────────────────────────────────┘

# Core Interfaces

Cache Interface:
Three-tier (GPU/RAM/Disk) byte-blob caching with LRU eviction, promotion,
and statistics tracking.

Recorder Interface:
Decouples cache traffic observation from the cache itself; implemented by
the profiler and consumed by any cache instance.

QualitySource Interface:
Pull-model access to the current rendering quality settings for any number
of renderer goroutines.

# Data Structures

CacheStats, AccessPattern, QualitySettings, PerformanceInfo and FrameStats
are plain value types with JSON tags so they can be exported in reports and
snapshots without further conversion.

This package has no dependencies beyond the standard library so that every
internal package can import it without cycles.
*/
package types
