package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// setting is one scalar option reachable from the environment and the
// command line. env lists variable names in priority order.
type setting struct {
	flag  string
	env   []string
	usage string
	set   func(c *Config, v string) error
}

var settings = []setting{
	{"addr", []string{"GREENAPI_ADDR", "PORT"}, "API listen address", func(c *Config, v string) error {
		c.Server.Addr = listenAddr(v)
		return nil
	}},
	{"max-body", []string{"GREENAPI_MAX_BODY"}, "Max API request body in bytes", func(c *Config, v string) error {
		return setInt64(&c.Server.MaxBodyBytes, v)
	}},
	{"shutdown-timeout", []string{"GREENAPI_SHUTDOWN_TIMEOUT"}, "Graceful shutdown window", func(c *Config, v string) error {
		return setDuration(&c.Server.ShutdownTimeout, v)
	}},
	{"metrics", []string{"GREENAPI_METRICS"}, "Serve Prometheus metrics on /metrics", func(c *Config, v string) error {
		return setBool(&c.Server.Metrics, v)
	}},
	{"timeout", []string{"GREENAPI_TIMEOUT"}, "Per-request timeout for target traffic", func(c *Config, v string) error {
		return setDuration(&c.HTTP.Timeout, v)
	}},
	{"insecure", []string{"GREENAPI_INSECURE"}, "Skip TLS verification for targets", func(c *Config, v string) error {
		return setBool(&c.HTTP.InsecureSkipVerify, v)
	}},
	{"proxy", []string{"GREENAPI_PROXY"}, "HTTP/SOCKS5 proxy URL for target traffic", func(c *Config, v string) error {
		c.HTTP.Proxy = v
		return nil
	}},
	{"user-agent", []string{"GREENAPI_USER_AGENT"}, "User-Agent for templates that set none", func(c *Config, v string) error {
		c.HTTP.UserAgent = v
		return nil
	}},
	{"max-response-body", []string{"GREENAPI_MAX_RESPONSE_BODY"}, "Max captured response body in bytes (0 = all)", func(c *Config, v string) error {
		return setInt64(&c.HTTP.MaxResponseBody, v)
	}},
	{"rate-limit", []string{"GREENAPI_RATE_LIMIT"}, "Requests per second during a run (0 = unpaced)", func(c *Config, v string) error {
		return setFloat(&c.Engine.RateLimit, v)
	}},
	{"time-threshold", []string{"GREENAPI_TIME_THRESHOLD_MS"}, "Time-based SQLi threshold in ms", func(c *Config, v string) error {
		return setInt64(&c.Engine.TimeThresholdMs, v)
	}},
	{"diff-lines", []string{"GREENAPI_DIFF_LINES"}, "Max diff lines sent to the AI service", func(c *Config, v string) error {
		return setInt(&c.Engine.DiffLines, v)
	}},
	{"catalog", []string{"GREENAPI_CATALOG"}, "Payload catalog JSON file", func(c *Config, v string) error {
		c.Engine.Catalog = v
		return nil
	}},
	{"ai-provider", []string{"GREENAPI_AI_PROVIDER"}, "AI service: gemini or openai", func(c *Config, v string) error {
		c.AI.Provider = strings.ToLower(v)
		return nil
	}},
	{"ai-key", []string{"GREENAPI_AI_KEY"}, "AI service API key", func(c *Config, v string) error {
		c.AI.APIKey = v
		return nil
	}},
	{"ai-model", []string{"GREENAPI_AI_MODEL"}, "AI model name", func(c *Config, v string) error {
		c.AI.Model = v
		return nil
	}},
	{"ai-base-url", []string{"GREENAPI_AI_BASE_URL"}, "AI service base URL", func(c *Config, v string) error {
		c.AI.BaseURL = v
		return nil
	}},
	{"ai-rpm", []string{"GREENAPI_AI_RPM"}, "AI requests per minute", func(c *Config, v string) error {
		return setInt(&c.AI.RequestsPerMinute, v)
	}},
	{"otel-endpoint", []string{"GREENAPI_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"}, "OTLP/gRPC collector address", func(c *Config, v string) error {
		c.Telemetry.Endpoint = v
		return nil
	}},
	{"otel-insecure", []string{"GREENAPI_OTEL_INSECURE"}, "Disable TLS to the collector", func(c *Config, v string) error {
		return setBool(&c.Telemetry.Insecure, v)
	}},
	{"otel-sample", []string{"GREENAPI_OTEL_SAMPLE_RATIO"}, "Fraction of runs traced (0 = all)", func(c *Config, v string) error {
		return setFloat(&c.Telemetry.SampleRatio, v)
	}},
	{"log-level", []string{"GREENAPI_LOG_LEVEL"}, "Log level: debug, info, warn, error", func(c *Config, v string) error {
		c.Log.Level = strings.ToLower(v)
		return nil
	}},
	{"log-format", []string{"GREENAPI_LOG_FORMAT"}, "Log format: json or text", func(c *Config, v string) error {
		c.Log.Format = strings.ToLower(v)
		return nil
	}},
}

// boolSettings are registered as flags that need no value.
var boolSettings = map[string]bool{
	"metrics":       true,
	"insecure":      true,
	"otel-insecure": true,
}

// providerKeys are the vendor variables consulted when no key is set
// explicitly. Only the active provider's variables apply.
var providerKeys = map[string]struct{ key, model string }{
	"gemini": {"GEMINI_API_KEY", "GEMINI_MODEL"},
	"openai": {"OPENAI_API_KEY", "OPENAI_MODEL"},
}

// ApplyEnv overlays environment variables on c.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	for _, s := range settings {
		for _, name := range s.env {
			v, ok := lookup(name)
			if !ok || v == "" {
				continue
			}
			if err := s.set(c, v); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
			}
			break
		}
	}
	return nil
}

// applyVendorEnv fills the AI key and model from the active provider's own
// variables when nothing more specific set them.
func (c *Config) applyVendorEnv(lookup LookupFunc) {
	if vendor, ok := providerKeys[c.AI.Provider]; ok {
		if c.AI.APIKey == "" {
			if v, ok := lookup(vendor.key); ok {
				c.AI.APIKey = v
			}
		}
		if c.AI.Model == "" {
			if v, ok := lookup(vendor.model); ok {
				c.AI.Model = v
			}
		}
	}
}

// Overrides collects command-line values until the lower layers are loaded.
type Overrides struct {
	configPath string
	set        []pendingValue
}

type pendingValue struct {
	setting *setting
	value   string
}

// RegisterFlags adds -config and one flag per setting to fs.
func RegisterFlags(fs *flag.FlagSet) *Overrides {
	o := &Overrides{}
	fs.StringVar(&o.configPath, "config", "", "YAML configuration file")
	for i := range settings {
		s := &settings[i]
		record := func(v string) error {
			o.set = append(o.set, pendingValue{setting: s, value: v})
			return nil
		}
		usage := s.usage + " (env " + s.env[0] + ")"
		if boolSettings[s.flag] {
			fs.BoolFunc(s.flag, usage, record)
		} else {
			fs.Func(s.flag, usage, record)
		}
	}
	return o
}

// ConfigPath returns the -config value.
func (o *Overrides) ConfigPath() string { return o.configPath }

// Apply writes the recorded flags to c in command-line order.
func (o *Overrides) Apply(c *Config) error {
	for _, p := range o.set {
		if err := p.setting.set(c, p.value); err != nil {
			return fmt.Errorf("%w: -%s: %w", ErrInvalidConfig, p.setting.flag, err)
		}
	}
	return nil
}

// listenAddr accepts a bare port, as platforms that set PORT do.
func listenAddr(v string) string {
	if _, err := strconv.Atoi(v); err == nil {
		return ":" + v
	}
	return v
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, v string) error {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

// setDuration accepts Go durations ("30s") or plain seconds ("30").
func setDuration(dst *time.Duration, v string) error {
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
