// Package iohelper reads and releases HTTP bodies.
package iohelper

import (
	"io"
)

// Body size limits.
const (
	// SmallMaxBodySize is for error payloads from external services (8KB)
	SmallMaxBodySize int64 = 8 * 1024

	// DefaultMaxBodySize is for external API responses (1MB)
	DefaultMaxBodySize int64 = 1024 * 1024

	// Unlimited reads the whole body. Target responses are captured in full
	// so size and diff reflect what the server actually sent.
	Unlimited int64 = 0
)

// ReadBody reads r up to maxSize bytes. maxSize <= 0 reads everything.
// A nil reader yields an empty slice.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	if maxSize <= 0 {
		return io.ReadAll(r)
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadBodySmall reads r with the 8KB limit.
func ReadBodySmall(r io.Reader) ([]byte, error) {
	return ReadBody(r, SmallMaxBodySize)
}

// DrainAndClose discards up to 64KB of remaining data so the connection can
// be reused, then closes r when it is a ReadCloser. It always returns nil so
// it can be deferred.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))
	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}
