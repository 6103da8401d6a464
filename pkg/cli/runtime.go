package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/waftester/greenapi/pkg/ai"
	"github.com/waftester/greenapi/pkg/config"
	"github.com/waftester/greenapi/pkg/core"
	"github.com/waftester/greenapi/pkg/executor"
	"github.com/waftester/greenapi/pkg/metrics"
	"github.com/waftester/greenapi/pkg/payloads"
	"github.com/waftester/greenapi/pkg/telemetry"
)

// errUsage marks invalid command-line arguments.
var errUsage = errors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errUsage}, args...)...)
}

// NewLogger builds the process logger for cfg, writing to w.
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.Log.Format == config.FormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// runtime is the wired engine and its supporting services for one command.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	telemetry *telemetry.Provider
	engine    *core.Engine
}

// setup wires the engine from cfg. Callers must call close.
func (r *Runner) setup(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{
		cfg:    cfg,
		logger: NewLogger(r.stderr, cfg),
	}
	if cfg.HTTP.InsecureSkipVerify {
		rt.logger.Warn("TLS certificate verification is disabled for target requests")
	}
	if cfg.Server.Metrics {
		rt.metrics = metrics.New()
	}

	tp, err := telemetry.Setup(ctx, cfg.TelemetryConfig())
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	rt.telemetry = tp

	sender, err := executor.New(cfg.ExecutorConfig(), executor.WithLogger(rt.logger))
	if err != nil {
		rt.close()
		return nil, err
	}

	opts := []core.EngineOption{
		core.WithLogger(rt.logger),
		core.WithMetrics(rt.metrics),
		core.WithTelemetry(tp),
	}
	if cfg.Engine.Catalog != "" {
		catalog, err := payloads.LoadFile(cfg.Engine.Catalog)
		if err != nil {
			rt.close()
			return nil, err
		}
		opts = append(opts, core.WithCatalog(catalog))
	}
	if cfg.AIEnabled() {
		gen, err := ai.New(cfg.AIConfig(), ai.WithLogger(rt.logger))
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("%w: ai: %w", config.ErrInvalidConfig, err)
		}
		opts = append(opts, core.WithGenerator(gen))
		rt.logger.Info("ai classification enabled", slog.String("service", gen.Name()))
	}

	rt.engine, err = core.NewEngine(sender, cfg.EngineConfig(), opts...)
	if err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

// close flushes pending spans.
func (rt *runtime) close() {
	if err := rt.telemetry.Shutdown(context.Background()); err != nil {
		rt.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
	}
}
