package classify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/waftester/greenapi/pkg/ai"
	"github.com/waftester/greenapi/pkg/defaults"
	"github.com/waftester/greenapi/pkg/finding"
	"github.com/waftester/greenapi/pkg/jsonutil"
	"github.com/waftester/greenapi/pkg/payloads"
)

// AI classifies through a language-model service with the rule-based
// strategy as fallback.
type AI struct {
	gen       ai.Generator
	fallback  Heuristic
	diffLines int
	logger    *slog.Logger
}

// AIOption configures an AI classifier.
type AIOption func(*AI)

// WithAILogger sets the logger. Default is slog.Default().
func WithAILogger(l *slog.Logger) AIOption {
	return func(a *AI) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithFallback sets the rule-based strategy used on failure.
func WithFallback(h Heuristic) AIOption {
	return func(a *AI) { a.fallback = h }
}

// WithDiffLines bounds the diff included in prompts.
func WithDiffLines(n int) AIOption {
	return func(a *AI) { a.diffLines = n }
}

// NewAI creates an AI classifier backed by gen.
func NewAI(gen ai.Generator, opts ...AIOption) *AI {
	a := &AI{
		gen:       gen,
		diffLines: defaults.DiffLineCap,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Mode is the label attached to verdicts from the service.
func (a *AI) Mode() string {
	return finding.AIMode(a.gen.Name())
}

// Classify implements Classifier.
func (a *AI) Classify(ctx context.Context, in Input) Verdict {
	ev := in.Evidence
	if ev == nil {
		return a.fallbackVerdict(in, "no evidence")
	}

	// SQL injection is always sent: blind injections rarely change the body.
	if ev.Trivial() && in.Suite != payloads.SQLInjection {
		return Verdict{
			Vulnerability: finding.Vulnerability{
				Name:        finding.NameNoneDetected,
				Severity:    finding.Info,
				Confidence:  finding.ConfidenceHigh,
				Explanation: "The response is indistinguishable from the baseline response.",
				Remediation: "No action required.",
			},
			Mode: a.Mode(),
		}
	}

	prompt, err := BuildPrompt(ev, a.diffLines)
	if err != nil {
		return a.fallbackVerdict(in, fmt.Sprintf("build prompt: %v", err))
	}
	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return a.fallbackVerdict(in, err.Error())
	}

	var v finding.Vulnerability
	if err := jsonutil.Unmarshal([]byte(ai.ExtractJSON(text)), &v); err != nil {
		return a.fallbackVerdict(in, fmt.Sprintf("decode verdict: %v", err))
	}
	if err := v.Validate(); err != nil {
		return a.fallbackVerdict(in, err.Error())
	}
	return Verdict{Vulnerability: v, Mode: a.Mode()}
}

// fallbackVerdict applies the rules to the evidence. Duration is not part
// of the evidence, so the time-based rule cannot fire here.
func (a *AI) fallbackVerdict(in Input, reason string) Verdict {
	a.logger.Warn("AI classification failed, using heuristic rules",
		slog.String("service", a.gen.Name()),
		slog.String("suite", in.Suite),
		slog.String("payload", in.Payload),
		slog.String("reason", reason),
	)

	obs := Observation{DurationMs: 0}
	switch {
	case in.Evidence != nil:
		obs.Body = in.Evidence.TestBody
		obs.Status = in.Evidence.TestStatus
	case in.Response != nil:
		obs.Body = in.Response.Body
		obs.Status = in.Response.Status
	}
	return Verdict{
		Vulnerability:  a.fallback.Analyze(in.Payload, obs, in.Suite),
		Mode:           finding.ModeHeuristic,
		FallbackReason: reason,
	}
}
