package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

var supportedProxySchemes = map[string]bool{
	"http":    true,
	"https":   true,
	"socks4":  true,
	"socks5":  true,
	"socks5h": true, // SOCKS5 with DNS resolved by the proxy
}

// ProxyConfig is a parsed proxy URL.
type ProxyConfig struct {
	URL      *url.URL
	Scheme   string
	Host     string
	Port     string
	Username string
	Password string
	IsSOCKS  bool
}

// ParseProxyURL validates a proxy URL. An empty string yields nil, nil.
// A missing scheme defaults to http.
func ParseProxyURL(raw string) (*ProxyConfig, error) {
	if raw == "" {
		return nil, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !supportedProxySchemes[scheme] {
		return nil, fmt.Errorf("unsupported proxy scheme %q, supported: http, https, socks4, socks5, socks5h", scheme)
	}
	host := parsed.Hostname()
	if host == "" {
		return nil, fmt.Errorf("proxy URL missing host")
	}
	port := parsed.Port()
	if port == "" {
		switch scheme {
		case "http":
			port = "8080"
		case "https":
			port = "8443"
		default:
			port = "1080"
		}
	}

	pc := &ProxyConfig{
		URL:     parsed,
		Scheme:  scheme,
		Host:    host,
		Port:    port,
		IsSOCKS: strings.HasPrefix(scheme, "socks"),
	}
	if parsed.User != nil {
		pc.Username = parsed.User.Username()
		pc.Password, _ = parsed.User.Password()
	}
	return pc, nil
}

// Address returns the proxy address in host:port form.
func (p *ProxyConfig) Address() string {
	if p == nil {
		return ""
	}
	return net.JoinHostPort(p.Host, p.Port)
}

// ContextDialer dials with a context.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// socksDialer adds a dial timeout and error tagging to a proxy.Dialer.
type socksDialer struct {
	dialer  proxy.Dialer
	timeout time.Duration
}

func (d *socksDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var (
		conn net.Conn
		err  error
	)
	if cd, ok := d.dialer.(proxy.ContextDialer); ok {
		conn, err = cd.DialContext(ctx, network, address)
	} else {
		conn, err = d.dialer.Dial(network, address)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProxyConnect, err)
	}
	return conn, nil
}

// CreateSOCKSDialer returns a dialer that tunnels through the SOCKS proxy in pc.
func CreateSOCKSDialer(pc *ProxyConfig, timeout time.Duration) (ContextDialer, error) {
	if pc == nil {
		return nil, fmt.Errorf("proxy config is nil")
	}

	scheme := pc.Scheme
	if scheme == "socks5h" {
		// Hostnames are passed through, so the proxy resolves them.
		scheme = "socks5"
	}
	u := &url.URL{Scheme: scheme, Host: pc.Address()}
	if pc.Username != "" {
		u.User = url.UserPassword(pc.Username, pc.Password)
	}

	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS dialer: %w", err)
	}
	return &socksDialer{dialer: d, timeout: timeout}, nil
}
