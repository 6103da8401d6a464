// Package executor sends structured requests and normalizes what comes back.
//
// Redirects are never followed, bodies are read in full and the elapsed
// time covers sending the request through reading the last body byte.
// Failures are returned as *RequestError carrying a short cause code.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/waftester/greenapi/pkg/curl"
	"github.com/waftester/greenapi/pkg/httpclient"
	"github.com/waftester/greenapi/pkg/iohelper"
)

// Config holds executor settings.
type Config struct {
	// HTTP configures the underlying client. InsecureSkipVerify applies to
	// this executor only.
	HTTP httpclient.Config

	// MaxBodySize caps how much of a body is kept. Zero keeps everything.
	MaxBodySize int64
}

// DefaultConfig returns the settings used for payload traffic.
func DefaultConfig() Config {
	return Config{
		HTTP:        httpclient.DefaultConfig(),
		MaxBodySize: iohelper.Unlimited,
	}
}

// Executor sends requests to test targets. It is safe for concurrent use.
type Executor struct {
	client  *http.Client
	maxBody int64
	logger  *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClient replaces the HTTP client built from Config.
func WithClient(c *http.Client) Option {
	return func(e *Executor) {
		if c != nil {
			e.client = c
		}
	}
}

// New creates an Executor.
func New(cfg Config, opts ...Option) (*Executor, error) {
	client, err := httpclient.New(cfg.HTTP)
	if err != nil {
		return nil, err
	}
	e := &Executor{
		client:  client,
		maxBody: cfg.MaxBodySize,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute sends req and returns the normalized response.
func (e *Executor) Execute(ctx context.Context, req *curl.Request) (*Response, error) {
	if req == nil {
		return nil, &RequestError{Reason: "no request", Code: CodeInvalid}
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	if !strings.HasPrefix(req.URL, "http") {
		return nil, &RequestError{Method: method, URL: req.URL, Reason: "a valid URL is required", Code: CodeInvalid}
	}

	httpReq, err := buildRequest(ctx, method, req)
	if err != nil {
		re := newRequestError(method, req.URL, err)
		re.Code = CodeInvalid
		return nil, re
	}

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		re := newRequestError(method, req.URL, err)
		e.logger.Debug("request failed",
			slog.String("method", method),
			slog.String("url", req.URL),
			slog.String("code", re.Code),
			slog.String("error", re.Reason),
		)
		return nil, re
	}
	defer iohelper.DrainAndClose(resp.Body)

	body, err := iohelper.ReadBody(resp.Body, e.maxBody)
	elapsed := time.Since(start)
	if err != nil {
		return nil, newRequestError(method, req.URL, err)
	}

	out := &Response{
		Status:     Status(resp.StatusCode),
		StatusText: statusText(resp),
		Duration:   elapsed.Milliseconds(),
		Size:       len(body),
		Headers:    flattenHeaders(resp.Header),
		Body:       string(body),
	}
	e.logger.Debug("request completed",
		slog.String("method", method),
		slog.String("url", req.URL),
		slog.Int("status", resp.StatusCode),
		slog.Int64("duration_ms", out.Duration),
		slog.Int("size", out.Size),
	)
	return out, nil
}

func buildRequest(ctx context.Context, method string, req *curl.Request) (*http.Request, error) {
	var body *strings.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	var (
		httpReq *http.Request
		err     error
	)
	if body != nil {
		httpReq, err = http.NewRequestWithContext(ctx, method, req.URL, body)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, method, req.URL, nil)
	}
	if err != nil {
		return nil, err
	}
	if httpReq.URL.Host == "" {
		return nil, errors.New("URL has no host")
	}
	httpReq.URL.RawQuery = escapeQuery(httpReq.URL.RawQuery)

	for name, value := range req.Headers {
		switch strings.ToLower(name) {
		case "host":
			httpReq.Host = value
		case "content-length", "transfer-encoding":
			// The transport computes these from the body.
		default:
			httpReq.Header.Set(name, value)
		}
	}
	return httpReq, nil
}

func statusText(resp *http.Response) string {
	prefix := strconv.Itoa(resp.StatusCode) + " "
	if text := strings.TrimPrefix(resp.Status, prefix); text != resp.Status {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	return out
}

// escapeQuery percent-encodes bytes that cannot appear raw in a request
// line: controls, space, quotes, angle brackets and non-ASCII. Existing
// escapes are left alone so encoded payloads reach the target unchanged.
func escapeQuery(raw string) string {
	if strings.IndexFunc(raw, func(r rune) bool { return r > 0x7e || r <= 0x20 || strings.ContainsRune(queryUnsafe, r) }) < 0 {
		return raw
	}
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(raw) + 16)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c <= 0x20 || c >= 0x7f || strings.IndexByte(queryUnsafe, c) >= 0 {
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

const queryUnsafe = "\"'<>`"
