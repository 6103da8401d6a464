// Package classify decides whether a test response indicates a
// vulnerability.
//
// Two strategies implement Classifier. Heuristic applies fixed rules to the
// response alone. AI sends the baseline comparison to a language-model
// service and falls back to the heuristic rules whenever the service cannot
// produce a usable verdict, so classification itself never fails.
package classify

import (
	"context"

	"github.com/waftester/greenapi/pkg/evidence"
	"github.com/waftester/greenapi/pkg/executor"
	"github.com/waftester/greenapi/pkg/finding"
)

// Input is everything a strategy may look at for one payload.
type Input struct {
	Suite    string
	Payload  string
	Response *executor.Response
	Evidence *evidence.Evidence
}

// Verdict is a classification result with the label of the strategy that
// produced it.
type Verdict struct {
	Vulnerability finding.Vulnerability
	Mode          string

	// FallbackReason is set when the AI strategy had to use the rules.
	FallbackReason string
}

// Classifier classifies one test response.
type Classifier interface {
	Classify(ctx context.Context, in Input) Verdict
}
