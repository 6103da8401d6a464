package core

import (
	"github.com/waftester/greenapi/pkg/curl"
	"github.com/waftester/greenapi/pkg/executor"
	"github.com/waftester/greenapi/pkg/finding"
)

// TestResult is the outcome of one payload.
type TestResult struct {
	Payload       string                `json:"payload"`
	Request       *curl.Request         `json:"request"`
	Response      *executor.Response    `json:"response"`
	Vulnerability finding.Vulnerability `json:"vulnerability"`
	AnalysisMode  string                `json:"analysisMode"`
}

// Failed reports whether the payload could not be executed.
func (r *TestResult) Failed() bool {
	return r.AnalysisMode == finding.ModeError
}

// Exchange is a single request and its response.
type Exchange struct {
	Request  *curl.Request      `json:"request"`
	Response *executor.Response `json:"response"`
}

// RunRequest describes a suite run.
type RunRequest struct {
	// Template is a curl command containing the $PAYLOAD$ marker.
	Template string

	// Suite names the payload list.
	Suite string

	// UseAI selects the AI classifier when a service is configured.
	UseAI bool

	// Observer receives progress for this run only, in addition to the
	// engine's observer.
	Observer Observer
}

// Summary counts verdicts in a result set.
type Summary struct {
	Total    int            `json:"total"`
	Detected int            `json:"detected"`
	Errors   int            `json:"errors"`
	ByName   map[string]int `json:"byName"`
}

// Summarize counts results.
func Summarize(results []TestResult) Summary {
	s := Summary{Total: len(results), ByName: map[string]int{}}
	for i := range results {
		r := &results[i]
		s.ByName[r.Vulnerability.Name]++
		if r.Failed() {
			s.Errors++
		}
		if r.Vulnerability.Detected() {
			s.Detected++
		}
	}
	return s
}
