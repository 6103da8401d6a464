// Package httpclient builds the HTTP clients greenapi sends requests with.
//
// Clients built here never follow redirects: a 3xx from the target is
// evidence and must reach the caller as-is. TLS verification is an explicit
// per-client setting so weakening it for test targets never leaks into
// clients that talk to external services.
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/waftester/greenapi/pkg/duration"
)

// Config holds HTTP client configuration options.
type Config struct {
	// Timeout is the total request timeout (default: 30s)
	Timeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification.
	InsecureSkipVerify bool

	// Proxy is an optional http, https, socks4, socks5 or socks5h proxy URL.
	Proxy string

	// UserAgent is set on requests that carry no User-Agent header.
	UserAgent string

	// FollowRedirects lets the client follow 3xx responses. Off for
	// target traffic.
	FollowRedirects bool

	MaxIdleConns        int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
}

// DefaultConfig returns the settings used for payload traffic.
func DefaultConfig() Config {
	return Config{
		Timeout:             duration.HTTPFuzzing,
		InsecureSkipVerify:  true,
		MaxIdleConns:        20,
		MaxConnsPerHost:     4,
		IdleConnTimeout:     duration.IdleConn,
		DialTimeout:         duration.DialTimeout,
		TLSHandshakeTimeout: duration.TLSHandshake,
	}
}

// APIConfig returns settings for calls to external services: verified TLS,
// redirects followed, longer timeout.
func APIConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = duration.HTTPAPI
	cfg.InsecureSkipVerify = false
	cfg.FollowRedirects = true
	return cfg
}

// New creates an HTTP client for cfg. Zero values fall back to DefaultConfig.
// An invalid proxy URL is an error.
func New(cfg Config) (*http.Client, error) {
	def := DefaultConfig()
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = def.MaxConnsPerHost
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = def.IdleConnTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.TLSHandshakeTimeout == 0 {
		cfg.TLSHandshakeTimeout = def.TLSHandshakeTimeout
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: duration.KeepAlive,
	}

	transport := &http.Transport{
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		DialContext:           dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for test targets
		},
	}

	if err := applyProxy(transport, cfg); err != nil {
		return nil, err
	}

	var rt http.RoundTripper = transport
	if cfg.UserAgent != "" {
		rt = &userAgentTransport{base: transport, userAgent: cfg.UserAgent}
	}

	client := &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}
	if !cfg.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client, nil
}

func applyProxy(transport *http.Transport, cfg Config) error {
	pc, err := ParseProxyURL(cfg.Proxy)
	if err != nil {
		return fmt.Errorf("httpclient: %w", err)
	}
	if pc == nil {
		return nil
	}
	if pc.IsSOCKS {
		d, err := CreateSOCKSDialer(pc, cfg.DialTimeout)
		if err != nil {
			return fmt.Errorf("httpclient: %w", err)
		}
		transport.DialContext = d.DialContext
		return nil
	}
	transport.Proxy = http.ProxyURL(pc.URL)
	return nil
}
