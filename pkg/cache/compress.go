package cache

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// CompressionThreshold is the serialized payload size in bytes above
// which Set attempts gzip compression.
const CompressionThreshold = 1024

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, &CompressionError{Op: "compress", Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &CompressionError{Op: "compress", Err: err}
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &CompressionError{Op: "decompress", Err: err}
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &CompressionError{Op: "decompress", Err: err}
	}
	return raw, nil
}
