package finding

import "strings"

// Verdict names produced by the rule-based classifier and the orchestrator.
const (
	NameNoneDetected       = "None Detected"
	NameUnhandledException = "Potential Unhandled Exception"
	NameSQLiErrorBased     = "Potential SQLi (Error-Based)"
	NameSQLiTimeBased      = "Potential SQLi (Time-Based)"
	NameReflectedXSS       = "Reflected XSS"
	NameExecutionError     = "Execution Error"
)

// Vulnerability is the verdict for one response.
type Vulnerability struct {
	Name        string     `json:"name"`
	Severity    Severity   `json:"severity"`
	Confidence  Confidence `json:"confidence"`
	Explanation string     `json:"explanation"`
	Remediation string     `json:"remediation"`
}

// Detected reports whether the verdict is a finding. Any named verdict other
// than "None Detected" counts, including "Execution Error".
func (v Vulnerability) Detected() bool {
	return v.Name != "" && v.Name != NameNoneDetected
}

// Validate checks the fields an external verdict must carry: a non-empty
// name and a valid severity. Severity case is normalized in place and an
// unrecognized confidence becomes N/A.
func (v *Vulnerability) Validate() error {
	v.Name = strings.TrimSpace(v.Name)
	if v.Name == "" {
		return ErrMissingName
	}
	sev, err := ParseSeverity(string(v.Severity))
	if err != nil {
		return err
	}
	v.Severity = sev
	v.Confidence = ParseConfidence(string(v.Confidence))
	return nil
}

// Analysis mode labels attached to every result.
const (
	ModeHeuristic = "Heuristic"
	ModeError     = "Error"
)

// AIMode returns the label for verdicts produced by the named service,
// e.g. "AI (Gemini)".
func AIMode(service string) string {
	return "AI (" + service + ")"
}
