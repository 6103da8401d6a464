// Package ai talks to external language-model services.
//
// Classification only needs one primitive: send a prompt, get text back.
// Generator is that primitive; GeminiClient and OpenAIClient implement it
// against their REST APIs. Both clients verify TLS and pace themselves with
// a token-bucket limiter.
package ai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/waftester/greenapi/pkg/defaults"
	"github.com/waftester/greenapi/pkg/httpclient"
	"github.com/waftester/greenapi/pkg/iohelper"
	"github.com/waftester/greenapi/pkg/jsonutil"
)

// Provider names a supported service.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// Generator produces a completion for a prompt.
type Generator interface {
	// Name is the display name used in analysis mode labels.
	Name() string

	// Generate returns the model's text answer to prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider Provider
	APIKey   string
	Model    string

	// BaseURL overrides the service endpoint. Useful for proxies and
	// OpenAI-compatible local servers.
	BaseURL string

	// RequestsPerMinute paces calls. Zero uses the default budget.
	RequestsPerMinute int

	// HTTP configures the client. Defaults to httpclient.APIConfig().
	HTTP *httpclient.Config
}

// Option configures a client.
type Option func(*restClient)

// WithLogger sets the logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *restClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *restClient) {
		if h != nil {
			c.http = h
		}
	}
}

// New builds the Generator for cfg.Provider.
func New(cfg Config, opts ...Option) (Generator, error) {
	switch cfg.Provider {
	case ProviderGemini, "":
		return NewGeminiClient(cfg, opts...)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// restClient is the transport shared by the provider clients.
type restClient struct {
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func newRestClient(cfg Config, opts ...Option) (*restClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	hc := httpclient.APIConfig()
	if cfg.HTTP != nil {
		hc = *cfg.HTTP
	}
	client, err := httpclient.New(hc)
	if err != nil {
		return nil, err
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = defaults.AIRequestsPerMinute
	}
	c := &restClient{
		http:    client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// postJSON sends in as JSON and decodes a 2xx reply into out.
func (c *restClient) postJSON(ctx context.Context, url string, header http.Header, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := jsonutil.Marshal(in)
	if err != nil {
		return fmt.Errorf("ai: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ai: build request: %w", err)
	}
	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ai: %w", err)
	}
	defer iohelper.DrainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := iohelper.ReadBodySmall(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	data, err := iohelper.ReadBody(resp.Body, iohelper.DefaultMaxBodySize)
	if err != nil {
		return fmt.Errorf("ai: read response: %w", err)
	}
	c.logger.Debug("ai call completed",
		slog.Int("status", resp.StatusCode),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		slog.Int("size", len(data)),
	)
	if err := jsonutil.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}
