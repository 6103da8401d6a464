// Package duration provides canonical time constants for greenapi.
//
// Usage:
//
//	cfg.Timeout = duration.HTTPFuzzing
//	ctx, cancel := context.WithTimeout(ctx, duration.ContextShort)
package duration

import "time"

// HTTP client timeouts.
const (
	// HTTPProbing is for health checks (5s)
	HTTPProbing = 5 * time.Second

	// HTTPFuzzing is for payload requests against the target (30s) - the default
	HTTPFuzzing = 30 * time.Second

	// HTTPAPI is for external API calls like AI services (60s)
	HTTPAPI = 60 * time.Second

	// DialTimeout bounds connection establishment (10s)
	DialTimeout = 10 * time.Second

	// TLSHandshake bounds the TLS handshake (10s)
	TLSHandshake = 10 * time.Second

	// IdleConn is how long idle connections stay pooled (90s)
	IdleConn = 90 * time.Second

	// KeepAlive is the TCP keep-alive period (30s)
	KeepAlive = 30 * time.Second
)

// Context and server timeouts.
const (
	// ContextShort is for quick operations (30s)
	ContextShort = 30 * time.Second

	// ContextLong bounds a full suite run started from the CLI (15min)
	ContextLong = 15 * time.Minute

	// ReadHeader bounds header reads on the API server (10s)
	ReadHeader = 10 * time.Second

	// ShutdownGrace is the graceful shutdown window for servers (10s)
	ShutdownGrace = 10 * time.Second

	// SignalGrace is how long a second interrupt is awaited before exit (5s)
	SignalGrace = 5 * time.Second

	// ExportTimeout bounds trace exporter flushes (5s)
	ExportTimeout = 5 * time.Second
)
