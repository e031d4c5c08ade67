package ingest

// streaming.go prepares the raw object stream for the CSV reader without
// loading the file into memory:
//
//   - CountingReader tracks raw bytes read for results and metrics
//   - the x/text UTF-8 BOM decoder drops a leading byte order mark written
//     by Windows tools and replaces invalid UTF-8 with U+FFFD
//
// Use WrapForStreaming to apply both in the correct order.

import (
	"io"

	"golang.org/x/text/encoding/unicode"
)

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader over r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// WrapForStreaming returns a reader yielding clean UTF-8 and the counter
// observing the raw bytes underneath it.
//
// Counting wraps the raw stream so BytesRead matches the object size once
// the file has been fully consumed.
func WrapForStreaming(r io.Reader) (io.Reader, *CountingReader) {
	counter := NewCountingReader(r)
	return unicode.UTF8BOM.NewDecoder().Reader(counter), counter
}
