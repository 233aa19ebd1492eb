package framekit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/framekit/framekit/internal/config"
	"github.com/framekit/framekit/pkg/types"
)

func testConfiguration(t *testing.T) *config.Configuration {
	t.Helper()

	cfg := config.NewDefault()
	cfg.Cache.Directory = t.TempDir()
	cfg.Cache.GPUSize = "4KB"
	cfg.Cache.RAMSize = "16KB"
	cfg.Cache.DiskSize = "64KB"
	cfg.Metrics.Enabled = false
	return cfg
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfiguration(t)
	cfg.Cache.GPUSize = "lots"

	if _, err := New(cfg, nil); err == nil {
		t.Error("expected error for unparseable gpu_size")
	}

	cfg = testConfiguration(t)
	cfg.Quality.InitialLevel = "cinematic"
	if _, err := New(cfg, nil); err == nil {
		t.Error("expected error for unknown quality level")
	}
}

func TestComponentsAreWired(t *testing.T) {
	cfg := testConfiguration(t)
	cfg.Quality.InitialLevel = "high"

	e, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if e.Cache() == nil || e.Profiler() == nil || e.Monitor() == nil ||
		e.Quality() == nil || e.Scheduler() == nil {
		t.Fatal("engine is missing a component")
	}

	if got := e.Quality().Settings().Level; got != types.QualityHigh {
		t.Errorf("initial quality level = %v, want %v", got, types.QualityHigh)
	}
	if !e.Quality().Adaptive() {
		t.Error("adaptive quality should follow the configuration default")
	}

	jobs := e.jobs.Jobs()
	want := map[string]bool{
		"cache-sweep":          false,
		"tier-export":          false,
		"pattern-analysis":     false,
		"performance-snapshot": false,
	}
	for _, name := range jobs {
		want[name] = true
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("maintenance job %q not registered", name)
		}
	}
}

func TestCacheTrafficReachesProfiler(t *testing.T) {
	e, err := New(testConfiguration(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Cache().Close()

	e.Cache().Put("frag-1", []byte("payload"), types.TierGPU)
	if _, ok := e.Cache().Get("frag-1"); !ok {
		t.Fatal("expected hit for frag-1")
	}
	e.Cache().Get("frag-missing")

	m := e.Profiler().CacheMetrics("fragments")
	if m.Hits != 1 {
		t.Errorf("profiler hits = %d, want 1", m.Hits)
	}
	if m.Misses != 1 {
		t.Errorf("profiler misses = %d, want 1", m.Misses)
	}
	if m.Insertions != 1 {
		t.Errorf("profiler insertions = %d, want 1", m.Insertions)
	}
}

func TestProfilerDisabledStillExports(t *testing.T) {
	cfg := testConfiguration(t)
	cfg.Profiler.Enabled = false

	e, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Cache().Close()

	e.Cache().Put("frag-1", []byte("payload"), types.TierGPU)
	e.Cache().Get("frag-1")

	if m := e.Profiler().CacheMetrics("fragments"); m.Hits != 0 {
		t.Errorf("disabled profiler recorded %d hits, want 0", m.Hits)
	}

	for _, name := range e.jobs.Jobs() {
		if name == "pattern-analysis" || name == "performance-snapshot" {
			t.Errorf("profiler job %q registered while disabled", name)
		}
	}
}

func TestEngineLifecycle(t *testing.T) {
	cfg := testConfiguration(t)

	var frames atomic.Int64
	e, err := New(cfg, func() error {
		frames.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Start on a running engine is a no-op.
	if err := e.Start(ctx); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for frames.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("render callback never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if !e.Scheduler().Running() {
		t.Error("scheduler should be running after Start")
	}

	if err := e.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if e.Scheduler().Running() {
		t.Error("scheduler still running after Stop")
	}
	if err := e.Stop(ctx); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}

	stopped := frames.Load()
	time.Sleep(50 * time.Millisecond)
	if got := frames.Load(); got != stopped {
		t.Errorf("render callback ran after Stop: %d -> %d", stopped, got)
	}
}
