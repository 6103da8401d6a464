// Package core orchestrates a suite run: it validates the template, executes
// the baseline request, injects each payload in catalog order, and classifies
// every response.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/waftester/greenapi/pkg/ai"
	"github.com/waftester/greenapi/pkg/classify"
	"github.com/waftester/greenapi/pkg/curl"
	"github.com/waftester/greenapi/pkg/defaults"
	"github.com/waftester/greenapi/pkg/evidence"
	"github.com/waftester/greenapi/pkg/executor"
	"github.com/waftester/greenapi/pkg/finding"
	"github.com/waftester/greenapi/pkg/metrics"
	"github.com/waftester/greenapi/pkg/payloads"
	"github.com/waftester/greenapi/pkg/telemetry"
)

// Sender executes one parsed request.
type Sender interface {
	Execute(ctx context.Context, req *curl.Request) (*executor.Response, error)
}

// EngineConfig holds run settings
type EngineConfig struct {
	// RateLimit paces requests per second, baseline included. Zero is unpaced.
	RateLimit float64

	// TimeThresholdMs is the strict lower bound for the time-based SQLi rule.
	TimeThresholdMs int64

	// DiffLines bounds the diff handed to the AI service.
	DiffLines int
}

// Engine runs payload suites against a request template.
type Engine struct {
	config    EngineConfig
	sender    Sender
	catalog   *payloads.Catalog
	heuristic classify.Heuristic
	ai        *classify.AI
	builder   *evidence.Builder
	observer  Observer
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
	gen       ai.Generator
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithCatalog replaces the built-in payload catalog.
func WithCatalog(c *payloads.Catalog) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.catalog = c
		}
	}
}

// WithGenerator enables AI classification through gen.
func WithGenerator(gen ai.Generator) EngineOption {
	return func(e *Engine) { e.gen = gen }
}

// WithMetrics records run counters on m.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithTelemetry traces runs through p.
func WithTelemetry(p *telemetry.Provider) EngineOption {
	return func(e *Engine) { e.tracer = p.Tracer() }
}

// WithObserver streams states and results to o.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// WithEvidenceBuilder replaces the evidence builder.
func WithEvidenceBuilder(b *evidence.Builder) EngineOption {
	return func(e *Engine) {
		if b != nil {
			e.builder = b
		}
	}
}

// NewEngine creates an engine that sends requests through sender.
func NewEngine(sender Sender, cfg EngineConfig, opts ...EngineOption) (*Engine, error) {
	if sender == nil {
		return nil, fmt.Errorf("core: sender is required")
	}
	if cfg.TimeThresholdMs <= 0 {
		cfg.TimeThresholdMs = defaults.TimeBasedThresholdMs
	}
	if cfg.DiffLines <= 0 {
		cfg.DiffLines = defaults.DiffLineCap
	}
	if cfg.RateLimit < 0 {
		cfg.RateLimit = 0
	}

	e := &Engine{
		config:  cfg,
		sender:  sender,
		catalog: payloads.Default(),
		builder: evidence.NewBuilder(),
		tracer:  telemetry.Noop().Tracer(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.heuristic = classify.Heuristic{TimeThresholdMs: cfg.TimeThresholdMs}
	if e.gen != nil {
		e.ai = classify.NewAI(e.gen,
			classify.WithFallback(e.heuristic),
			classify.WithDiffLines(cfg.DiffLines),
			classify.WithAILogger(e.logger),
		)
	}
	return e, nil
}

// Catalog returns the payload catalog in use.
func (e *Engine) Catalog() *payloads.Catalog {
	return e.catalog
}

// AIEnabled reports whether a reasoning service is configured.
func (e *Engine) AIEnabled() bool {
	return e.ai != nil
}

// run carries per-run state through the payload loop.
type run struct {
	id       string
	suite    string
	template string
	point    curl.InjectionPoint
	baseline *executor.Response
	cls      classify.Classifier
	useAI    bool
	limiter  *rate.Limiter
	logger   *slog.Logger
	watchers []Observer
}

// RunSuite executes every payload of req.Suite against req.Template and
// returns one result per payload, in catalog order.
//
// Input problems are reported before any network I/O. A failed baseline
// aborts the run with a *BaselineError and no results. Failures of
// individual payloads never abort the run; they are recorded as results
// with the Error analysis mode.
func (e *Engine) RunSuite(ctx context.Context, req RunRequest) ([]TestResult, error) {
	start := time.Now()
	r := &run{
		id:       uuid.NewString(),
		suite:    req.Suite,
		template: req.Template,
	}
	r.logger = e.logger.With(slog.String("run_id", r.id), slog.String("suite", req.Suite))
	for _, o := range []Observer{e.observer, req.Observer} {
		if o != nil {
			r.watchers = append(r.watchers, o)
		}
	}

	ctx, span := e.tracer.Start(ctx, "greenapi.run", trace.WithAttributes(
		attribute.String("greenapi.run_id", r.id),
		attribute.String("greenapi.suite", req.Suite),
		attribute.Bool("greenapi.use_ai", req.UseAI),
	))
	defer span.End()

	list, err := e.prepare(r, req)
	if err != nil {
		r.logger.Warn("run rejected", slog.String("error", err.Error()))
		e.metrics.RunFinished(req.Suite, metrics.OutcomeRejected, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "rejected")
		return nil, err
	}

	if e.config.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(e.config.RateLimit), 1)
	}

	e.setState(r, StateBaselineExecuting)
	baseline, err := e.executeBaseline(ctx, r)
	if err != nil {
		e.setState(r, StateBaselineFailed)
		r.logger.Error("baseline request failed", slog.String("error", err.Error()))
		e.metrics.RunFinished(req.Suite, metrics.OutcomeBaselineFailed, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "baseline failed")
		return nil, err
	}
	r.baseline = baseline
	r.logger.Info("baseline established",
		slog.Int("status", int(baseline.Status)),
		slog.Int("size", baseline.Size),
		slog.Int64("duration_ms", baseline.Duration),
		slog.String("body_hash", fmt.Sprintf("%016x", evidence.Fingerprint(baseline.Body))),
	)

	e.setState(r, StatePayloadLoop)
	results := make([]TestResult, 0, len(list))
	for i, payload := range list {
		res := e.runPayload(ctx, r, i, payload)
		results = append(results, res)
		for _, o := range r.watchers {
			o.OnResult(r.id, i, len(list), &results[len(results)-1])
		}
	}
	e.setState(r, StateDone)

	elapsed := time.Since(start)
	sum := Summarize(results)
	r.logger.Info("run finished",
		slog.Int("payloads", sum.Total),
		slog.Int("detected", sum.Detected),
		slog.Int("errors", sum.Errors),
		slog.Duration("elapsed", elapsed),
	)
	e.metrics.RunFinished(req.Suite, metrics.OutcomeCompleted, elapsed)
	span.SetAttributes(
		attribute.Int("greenapi.payloads", sum.Total),
		attribute.Int("greenapi.detected", sum.Detected),
		telemetry.Elapsed("greenapi.elapsed_ms", elapsed),
	)
	return results, nil
}

// prepare validates the run inputs and selects the classifier.
func (e *Engine) prepare(r *run, req RunRequest) ([]string, error) {
	list, ok := e.catalog.ListFor(req.Suite)
	if !ok {
		return nil, ErrUnknownSuite
	}
	if strings.TrimSpace(req.Template) == "" || !curl.HasMarker(req.Template) {
		return nil, ErrMissingMarker
	}
	_, point, err := curl.ParseCommand(req.Template, true)
	if err != nil {
		return nil, err
	}
	if !point.Found() {
		return nil, ErrMissingMarker
	}
	r.point = point

	switch {
	case req.UseAI && e.ai != nil:
		r.cls = e.ai
		r.useAI = true
	case req.UseAI:
		r.logger.Warn("AI analysis requested but no service is configured, using heuristic rules")
		r.cls = e.heuristic
	default:
		r.cls = e.heuristic
	}
	return list, nil
}

func (e *Engine) executeBaseline(ctx context.Context, r *run) (*executor.Response, error) {
	ctx, span := e.tracer.Start(ctx, "greenapi.baseline")
	defer span.End()

	req, _, err := curl.ParseCommand(curl.StripMarker(r.template), false)
	if err != nil {
		span.RecordError(err)
		return nil, &BaselineError{Err: err}
	}
	resp, err := e.send(ctx, r, req)
	if err != nil {
		span.RecordError(err)
		return nil, &BaselineError{Err: err}
	}
	span.SetAttributes(attribute.Int("http.response.status_code", int(resp.Status)))
	return resp, nil
}

func (e *Engine) runPayload(ctx context.Context, r *run, index int, payload string) TestResult {
	ctx, span := e.tracer.Start(ctx, "greenapi.payload", trace.WithAttributes(
		attribute.Int("greenapi.payload_index", index),
		attribute.String("greenapi.injection_point", r.point.String()),
	))
	defer span.End()

	req, _, err := curl.ParseCommand(curl.Substitute(r.template, payload), false)
	if err != nil {
		span.RecordError(err)
		return e.failedResult(r, payload, nil, err)
	}
	resp, err := e.send(ctx, r, req)
	if err != nil {
		span.RecordError(err)
		return e.failedResult(r, payload, req, err)
	}
	e.metrics.PayloadExecuted(r.suite, true, resp.Duration)

	in := classify.Input{Suite: r.suite, Payload: payload, Response: resp}
	if r.useAI {
		in.Evidence = e.builder.Build(r.baseline, resp, evidence.Context{
			Suite:          r.suite,
			Payload:        payload,
			InjectionPoint: r.point,
		})
	}
	verdict := r.cls.Classify(ctx, in)
	if verdict.FallbackReason != "" {
		e.metrics.AIFallback(r.suite)
	}
	e.metrics.Verdict(r.suite, verdict.Vulnerability.Name, string(verdict.Vulnerability.Severity), verdict.Mode)

	span.SetAttributes(
		attribute.Int("http.response.status_code", int(resp.Status)),
		attribute.String("greenapi.verdict", verdict.Vulnerability.Name),
		attribute.String("greenapi.mode", verdict.Mode),
	)
	if verdict.Vulnerability.Detected() {
		r.logger.Info("vulnerability detected",
			slog.Int("index", index),
			slog.String("payload", payload),
			slog.String("name", verdict.Vulnerability.Name),
			slog.String("severity", string(verdict.Vulnerability.Severity)),
			slog.String("mode", verdict.Mode),
		)
	}

	return TestResult{
		Payload:       payload,
		Request:       req,
		Response:      resp,
		Vulnerability: verdict.Vulnerability,
		AnalysisMode:  verdict.Mode,
	}
}

// failedResult records a payload that could not be executed. req is nil when
// the injected template did not parse.
func (e *Engine) failedResult(r *run, payload string, req *curl.Request, err error) TestResult {
	e.metrics.PayloadExecuted(r.suite, false, 0)

	reason := err.Error()
	if re, ok := executor.AsRequestError(err); ok {
		reason = re.Details()
	}
	r.logger.Error("payload execution failed",
		slog.String("payload", payload),
		slog.String("error", reason),
	)
	return TestResult{
		Payload:       payload,
		Request:       req,
		Response:      executor.ErrorResponse(err),
		Vulnerability: classify.ExecutionError(reason),
		AnalysisMode:  finding.ModeError,
	}
}

func (e *Engine) send(ctx context.Context, r *run, req *curl.Request) (*executor.Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return e.sender.Execute(ctx, req)
}

func (e *Engine) setState(r *run, s State) {
	r.logger.Debug("run state", slog.String("state", s.String()))
	for _, o := range r.watchers {
		o.OnState(r.id, s)
	}
}

// ExecuteOne sends a single parsed request without any payload handling.
func (e *Engine) ExecuteOne(ctx context.Context, req *curl.Request) (*Exchange, error) {
	if req == nil || strings.TrimSpace(req.URL) == "" {
		return nil, ErrMissingURL
	}
	req = req.Clone()
	req.Method = strings.ToUpper(strings.TrimSpace(req.Method))
	if req.Method == "" {
		req.Method = "GET"
	}
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}

	ctx, span := e.tracer.Start(ctx, "greenapi.execute", trace.WithAttributes(
		attribute.String("http.request.method", req.Method),
	))
	defer span.End()

	resp, err := e.sender.Execute(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		e.logger.Warn("request failed",
			slog.String("method", req.Method),
			slog.String("url", req.URL),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", int(resp.Status)))
	return &Exchange{Request: req, Response: resp}, nil
}
