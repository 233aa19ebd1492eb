package cache

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/benbjohnson/clock"
)

func newTestDiskTier(t *testing.T) *diskTier {
	t.Helper()
	tier, err := newDiskTier(t.TempDir(), 10000, 64, NewCompressor(DefaultCompressionLevel), clock.New(), slog.Default())
	if err != nil {
		t.Fatalf("newDiskTier failed: %v", err)
	}
	return tier
}

func TestDiskTierPutGet(t *testing.T) {
	tier := newTestDiskTier(t)

	data := []byte("small payload")
	if err := tier.put("k", data); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, ok := tier.get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestDiskTierCorruptFileDegradesToMiss(t *testing.T) {
	tier := newTestDiskTier(t)

	data := bytes.Repeat([]byte("frame "), 100)
	if err := tier.put("k", data); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	tier.mu.Lock()
	path := tier.index["k"].FilePath
	tier.mu.Unlock()
	if err := os.WriteFile(path, []byte("garbage"), 0600); err != nil {
		t.Fatalf("corrupting file failed: %v", err)
	}

	if _, ok := tier.get("k"); ok {
		t.Fatal("corrupt payload should read as a miss")
	}
	// The entry is dropped, not retried.
	if tier.contains("k") {
		t.Error("corrupt entry should be removed from the index")
	}
	if tier.size() != 0 {
		t.Errorf("size after drop = %d, want 0", tier.size())
	}
}

func TestDiskTierMissingFileDegradesToMiss(t *testing.T) {
	tier := newTestDiskTier(t)

	if err := tier.put("k", []byte("payload")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	tier.mu.Lock()
	path := tier.index["k"].FilePath
	tier.mu.Unlock()
	if err := os.Remove(path); err != nil {
		t.Fatalf("removing file failed: %v", err)
	}

	if _, ok := tier.get("k"); ok {
		t.Fatal("missing backing file should read as a miss")
	}
	if tier.contains("k") {
		t.Error("orphaned entry should be removed from the index")
	}
}

func TestDiskTierReplaceAccounting(t *testing.T) {
	tier := newTestDiskTier(t)

	if err := tier.put("k", bytes.Repeat([]byte{1}, 50)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := tier.put("k", bytes.Repeat([]byte{2}, 30)); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	if tier.count() != 1 {
		t.Errorf("count = %d, want 1", tier.count())
	}
	if tier.size() != 30 {
		t.Errorf("size = %d, want 30", tier.size())
	}
}

func TestDiskTierIndexSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	clk := clock.New()
	comp := NewCompressor(DefaultCompressionLevel)

	tier, err := newDiskTier(dir, 10000, 64, comp, clk, slog.Default())
	if err != nil {
		t.Fatalf("newDiskTier failed: %v", err)
	}
	if err := tier.put("keep", []byte("keep")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := tier.put("lost", []byte("lost")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := tier.syncIndex(); err != nil {
		t.Fatalf("syncIndex failed: %v", err)
	}

	// Simulate a file deleted behind the index between runs.
	tier.mu.Lock()
	lostPath := tier.index["lost"].FilePath
	tier.mu.Unlock()
	if err := os.Remove(lostPath); err != nil {
		t.Fatalf("removing file failed: %v", err)
	}

	restored, err := newDiskTier(dir, 10000, 64, comp, clk, slog.Default())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if !restored.contains("keep") {
		t.Error("surviving entry should be restored")
	}
	if restored.contains("lost") {
		t.Error("entry without a backing file should be skipped")
	}
}

func TestDiskTierClearPurgesDirectory(t *testing.T) {
	dir := t.TempDir()
	tier, err := newDiskTier(dir, 10000, 64, NewCompressor(DefaultCompressionLevel), clock.New(), slog.Default())
	if err != nil {
		t.Fatalf("newDiskTier failed: %v", err)
	}
	for _, key := range []string{"a", "b", "c"} {
		if err := tier.put(key, []byte(key)); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	if err := tier.syncIndex(); err != nil {
		t.Fatalf("syncIndex failed: %v", err)
	}

	tier.clear()

	if tier.count() != 0 || tier.size() != 0 {
		t.Errorf("tier not empty after clear: count=%d size=%d", tier.count(), tier.size())
	}
	files, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("directory not purged, leftover files: %v", files)
	}
}
