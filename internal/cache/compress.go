package cache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// DefaultCompressionLevel balances ratio against CPU cost for cache
// payloads written on the render path.
const DefaultCompressionLevel = 6

// Compressor provides reversible byte-stream compression for the disk tier.
// It is stateless and safe for concurrent use.
type Compressor struct {
	level int
}

// NewCompressor creates a compressor with the given zlib level. Levels
// outside the valid range fall back to the default.
func NewCompressor(level int) *Compressor {
	if level < zlib.HuffmanOnly || level > zlib.BestCompression {
		level = DefaultCompressionLevel
	}
	return &Compressor{level: level}
}

// Compress returns the compressed representation of data and true, or the
// original bytes and false when compression fails or does not shrink the
// payload. Callers store the boolean alongside the entry; it is the single
// source of truth for whether Decompress is needed on read.
func (c *Compressor) Compress(data []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, c.level)
	if err != nil {
		return data, false
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return data, false
	}
	if err := w.Close(); err != nil {
		return data, false
	}
	if buf.Len() >= len(data) {
		return data, false
	}
	return buf.Bytes(), true
}

// Decompress inflates data previously produced by Compress.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed payload: %w", err)
	}
	defer func() { _ = r.Close() }()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to inflate payload: %w", err)
	}
	return out, nil
}
