package cache

import (
	"bytes"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	comp := NewCompressor(DefaultCompressionLevel)

	data := bytes.Repeat([]byte("fragment payload "), 1024)
	compressed, ok := comp.Compress(data)
	if !ok {
		t.Fatal("expected repetitive payload to compress")
	}
	if len(compressed) >= len(data) {
		t.Fatalf("compressed size %d not smaller than original %d", len(compressed), len(data))
	}

	restored, err := comp.Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(restored, data) {
		t.Error("round trip did not restore original payload")
	}
}

func TestCompressIncompressiblePayload(t *testing.T) {
	comp := NewCompressor(DefaultCompressionLevel)

	// Tiny payloads grow under zlib framing; Compress must hand back the
	// original bytes and report false.
	data := []byte{0x01, 0x02, 0x03}
	out, ok := comp.Compress(data)
	if ok {
		t.Fatal("expected incompressible payload to be stored raw")
	}
	if !bytes.Equal(out, data) {
		t.Error("raw fallback altered the payload")
	}
}

func TestCompressInvalidLevelFallsBack(t *testing.T) {
	comp := NewCompressor(42)

	data := bytes.Repeat([]byte("x"), 4096)
	compressed, ok := comp.Compress(data)
	if !ok {
		t.Fatal("expected compression to succeed at fallback level")
	}
	restored, err := comp.Decompress(compressed)
	if err != nil {
		t.Fatalf("decompress failed: %v", err)
	}
	if !bytes.Equal(restored, data) {
		t.Error("round trip mismatch")
	}
}

func TestDecompressCorruptPayload(t *testing.T) {
	comp := NewCompressor(DefaultCompressionLevel)

	if _, err := comp.Decompress([]byte("not a zlib stream")); err == nil {
		t.Error("expected error for corrupt payload")
	}
}
