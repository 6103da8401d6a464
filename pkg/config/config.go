// Package config resolves greenapi settings.
//
// Values are layered, later layers winning:
//
//	defaults < YAML file (-config) < environment (.env included) < flags
//
// The resolved Config hands each component its own settings struct through
// the accessor methods, so packages below cmd never read the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/waftester/greenapi/pkg/ai"
	"github.com/waftester/greenapi/pkg/core"
	"github.com/waftester/greenapi/pkg/defaults"
	"github.com/waftester/greenapi/pkg/duration"
	"github.com/waftester/greenapi/pkg/executor"
	"github.com/waftester/greenapi/pkg/httpclient"
	"github.com/waftester/greenapi/pkg/iohelper"
	"github.com/waftester/greenapi/pkg/server"
	"github.com/waftester/greenapi/pkg/telemetry"
)

// Config holds every greenapi setting.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	HTTP      HTTPConfig      `yaml:"http"`
	Engine    EngineConfig    `yaml:"engine"`
	AI        AIConfig        `yaml:"ai"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Metrics         bool          `yaml:"metrics"`
}

// HTTPConfig configures traffic to test targets.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`

	// InsecureSkipVerify disables certificate checks for targets only.
	// AI traffic always verifies.
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	Proxy              string `yaml:"proxy"`
	UserAgent          string `yaml:"user_agent"`

	// MaxResponseBody caps captured bodies. Zero keeps everything.
	MaxResponseBody int64 `yaml:"max_response_body"`
}

// EngineConfig configures suite runs.
type EngineConfig struct {
	RateLimit       float64 `yaml:"rate_limit"`
	TimeThresholdMs int64   `yaml:"time_threshold_ms"`
	DiffLines       int     `yaml:"diff_lines"`

	// Catalog is an optional payload catalog file replacing the embedded one.
	Catalog string `yaml:"catalog"`
}

// AIConfig configures the reasoning service.
type AIConfig struct {
	Provider          string `yaml:"provider"`
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	BaseURL           string `yaml:"base_url"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	Endpoint    string            `yaml:"endpoint"`
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers"`
	SampleRatio float64           `yaml:"sample_ratio"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Log formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            defaults.ListenAddr,
			MaxBodyBytes:    defaults.MaxRequestBody,
			ShutdownTimeout: duration.ShutdownGrace,
			Metrics:         true,
		},
		HTTP: HTTPConfig{
			Timeout:            duration.HTTPFuzzing,
			InsecureSkipVerify: true,
			UserAgent:          defaults.UserAgent,
			MaxResponseBody:    iohelper.Unlimited,
		},
		Engine: EngineConfig{
			TimeThresholdMs: defaults.TimeBasedThresholdMs,
			DiffLines:       defaults.DiffLineCap,
		},
		AI: AIConfig{
			Provider:          string(ai.ProviderGemini),
			RequestsPerMinute: defaults.AIRequestsPerMinute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: FormatJSON,
		},
	}
}

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load resolves the configuration: defaults, then the YAML file at path
// (skipped when empty), then the environment through lookup (skipped when
// nil), then flag overrides (skipped when nil). The result is validated.
func Load(path string, lookup LookupFunc, flags *Overrides) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if lookup != nil {
		if err := cfg.ApplyEnv(lookup); err != nil {
			return nil, err
		}
	}
	if flags != nil {
		if err := flags.Apply(cfg); err != nil {
			return nil, err
		}
	}
	if lookup != nil {
		cfg.applyVendorEnv(lookup)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return c.decodeYAML(data, path)
}

func (c *Config) decodeYAML(data []byte, source string) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, source, err)
	}
	return nil
}

// LoadDotEnv loads the first .env file found among paths into the process
// environment without overriding variables that are already set. It returns
// the path loaded, or "" when none exists.
func LoadDotEnv(paths ...string) string {
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("%w: server.addr", ErrMissingRequired))
	}
	if c.Server.MaxBodyBytes <= 0 {
		invalid("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		invalid("server.shutdown_timeout must not be negative")
	}
	if c.HTTP.Timeout <= 0 {
		invalid("http.timeout must be positive, got %s", c.HTTP.Timeout)
	}
	if c.HTTP.MaxResponseBody < 0 {
		invalid("http.max_response_body must not be negative")
	}
	if c.HTTP.Proxy != "" {
		if _, err := httpclient.ParseProxyURL(c.HTTP.Proxy); err != nil {
			invalid("http.proxy: %v", err)
		}
	}
	if c.Engine.RateLimit < 0 {
		invalid("engine.rate_limit must not be negative")
	}
	if c.Engine.TimeThresholdMs <= 0 {
		invalid("engine.time_threshold_ms must be positive")
	}
	if c.Engine.DiffLines <= 0 {
		invalid("engine.diff_lines must be positive")
	}
	switch ai.Provider(strings.ToLower(c.AI.Provider)) {
	case ai.ProviderGemini, ai.ProviderOpenAI:
	default:
		invalid("ai.provider %q is not one of gemini, openai", c.AI.Provider)
	}
	if c.AI.RequestsPerMinute < 0 {
		invalid("ai.requests_per_minute must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		invalid("telemetry.sample_ratio must be between 0 and 1")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		invalid("log.level: %v", err)
	}
	switch c.Log.Format {
	case FormatJSON, FormatText:
	default:
		invalid("log.format %q is not one of json, text", c.Log.Format)
	}
	return errors.Join(errs...)
}

// AIEnabled reports whether an API key is configured.
func (c *Config) AIEnabled() bool {
	return c.AI.APIKey != ""
}

// ExecutorConfig returns the settings for target traffic.
func (c *Config) ExecutorConfig() executor.Config {
	cfg := executor.DefaultConfig()
	cfg.HTTP.Timeout = c.HTTP.Timeout
	cfg.HTTP.InsecureSkipVerify = c.HTTP.InsecureSkipVerify
	cfg.HTTP.Proxy = c.HTTP.Proxy
	cfg.HTTP.UserAgent = c.HTTP.UserAgent
	cfg.MaxBodySize = c.HTTP.MaxResponseBody
	return cfg
}

// EngineConfig returns the orchestrator settings.
func (c *Config) EngineConfig() core.EngineConfig {
	return core.EngineConfig{
		RateLimit:       c.Engine.RateLimit,
		TimeThresholdMs: c.Engine.TimeThresholdMs,
		DiffLines:       c.Engine.DiffLines,
	}
}

// AIConfig returns the reasoning service settings. The client always
// verifies TLS regardless of HTTP.InsecureSkipVerify.
func (c *Config) AIConfig() ai.Config {
	return ai.Config{
		Provider:          ai.Provider(strings.ToLower(c.AI.Provider)),
		APIKey:            c.AI.APIKey,
		Model:             c.AI.Model,
		BaseURL:           c.AI.BaseURL,
		RequestsPerMinute: c.AI.RequestsPerMinute,
	}
}

// TelemetryConfig returns the trace export settings.
func (c *Config) TelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Endpoint:    c.Telemetry.Endpoint,
		Insecure:    c.Telemetry.Insecure,
		Headers:     c.Telemetry.Headers,
		ServiceName: defaults.ToolName,
		SampleRatio: c.Telemetry.SampleRatio,
	}
}

// ServerConfig returns the HTTP API settings.
func (c *Config) ServerConfig() server.Config {
	return server.Config{
		Addr:            c.Server.Addr,
		MaxBodyBytes:    c.Server.MaxBodyBytes,
		ShutdownTimeout: c.Server.ShutdownTimeout,
	}
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	lvl, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return lvl, nil
}
