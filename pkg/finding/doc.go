// Package finding provides the verdict types shared by the classifier, the
// orchestrator and every output surface.
//
// A Vulnerability is what a classifier decides about one response. Its
// Severity and Confidence are closed vocabularies so verdicts coming back
// from an external reasoning service can be validated before use.
package finding
