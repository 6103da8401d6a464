package classify

import (
	"context"
	"strings"

	"github.com/waftester/greenapi/pkg/defaults"
	"github.com/waftester/greenapi/pkg/executor"
	"github.com/waftester/greenapi/pkg/finding"
	"github.com/waftester/greenapi/pkg/payloads"
	"github.com/waftester/greenapi/pkg/regexcache"
)

// sqlErrorPatterns match database error messages leaking into a body.
// The Oracle code pattern is case-sensitive.
var sqlErrorPatterns = []string{
	`(?i)SQL syntax.*?MySQL`,
	`(?i)valid OCI function`,
	`ORA-\d{5}`,
	`(?i)Microsoft OLE DB Provider for SQL Server`,
	`(?i)Unclosed quotation mark after the character string`,
	`(?i)syntax error at or near`,
}

// Observation is the part of a response the rules read.
type Observation struct {
	Body       string
	Status     executor.Status
	DurationMs int64
}

// Observe extracts an Observation from a response.
func Observe(r *executor.Response) Observation {
	return Observation{Body: r.Body, Status: r.Status, DurationMs: r.Duration}
}

// Heuristic is the rule-based strategy. The zero value uses the default
// time-based threshold.
type Heuristic struct {
	// TimeThresholdMs is the strict lower bound for time-based SQLi.
	TimeThresholdMs int64
}

// Classify implements Classifier.
func (h Heuristic) Classify(_ context.Context, in Input) Verdict {
	return Verdict{
		Vulnerability: h.Analyze(in.Payload, Observe(in.Response), in.Suite),
		Mode:          finding.ModeHeuristic,
	}
}

// Analyze applies the rules in order; the first match wins.
func (h Heuristic) Analyze(payload string, obs Observation, suite string) finding.Vulnerability {
	threshold := h.TimeThresholdMs
	if threshold <= 0 {
		threshold = defaults.TimeBasedThresholdMs
	}

	switch {
	case !obs.Status.IsError() && obs.Status >= 500:
		return unhandledException
	case matchesSQLError(obs.Body):
		return sqliErrorBased
	case suite == payloads.SQLInjection && obs.DurationMs > threshold:
		return sqliTimeBased
	case suite == payloads.XSS && strings.Contains(obs.Body, payload) && strings.ContainsAny(payload, `<>"'`):
		return reflectedXSS
	}
	return noneDetected
}

// Analyze runs the default rules.
func Analyze(payload string, obs Observation, suite string) finding.Vulnerability {
	return Heuristic{}.Analyze(payload, obs, suite)
}

func matchesSQLError(body string) bool {
	_, ok := regexcache.FirstMatch(sqlErrorPatterns, body)
	return ok
}

var (
	unhandledException = finding.Vulnerability{
		Name:        finding.NameUnhandledException,
		Severity:    finding.High,
		Confidence:  finding.ConfidenceMedium,
		Explanation: "The server answered with a 5xx status, which suggests the payload triggered an error the application does not handle.",
		Remediation: "Validate and sanitize input before it reaches application logic, and return generic error responses without internal details.",
	}
	sqliErrorBased = finding.Vulnerability{
		Name:        finding.NameSQLiErrorBased,
		Severity:    finding.High,
		Confidence:  finding.ConfidenceHigh,
		Explanation: "The response contains a database error message, which indicates the payload reached a SQL query unescaped.",
		Remediation: "Use parameterized queries or prepared statements for every database access and suppress database errors in responses.",
	}
	sqliTimeBased = finding.Vulnerability{
		Name:        finding.NameSQLiTimeBased,
		Severity:    finding.Medium,
		Confidence:  finding.ConfidenceMedium,
		Explanation: "The response took more than four seconds, which is consistent with a time-delay SQL payload being executed.",
		Remediation: "Use parameterized queries and confirm manually by comparing response times with different delay values.",
	}
	reflectedXSS = finding.Vulnerability{
		Name:        finding.NameReflectedXSS,
		Severity:    finding.High,
		Confidence:  finding.ConfidenceHigh,
		Explanation: "The payload, including HTML-significant characters, is reflected verbatim in the response body.",
		Remediation: "Encode output for the context it is rendered in and apply a restrictive Content-Security-Policy.",
	}
	noneDetected = finding.Vulnerability{
		Name:        finding.NameNoneDetected,
		Severity:    finding.Info,
		Confidence:  finding.ConfidenceNA,
		Explanation: "No rule matched this response.",
		Remediation: "No action required.",
	}
)

// ExecutionError is the verdict recorded when a payload could not be sent.
func ExecutionError(reason string) finding.Vulnerability {
	return finding.Vulnerability{
		Name:        finding.NameExecutionError,
		Severity:    finding.High,
		Confidence:  finding.ConfidenceNA,
		Explanation: reason,
		Remediation: "Check that the target is reachable and that the request template is valid.",
	}
}
