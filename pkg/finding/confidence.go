package finding

import "strings"

// Confidence is how sure a classifier is of its verdict.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"

	// ConfidenceNA is used when no vulnerability was asserted.
	ConfidenceNA Confidence = "N/A"
)

// IsValid reports whether c is a recognized confidence value.
func (c Confidence) IsValid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh, ConfidenceNA:
		return true
	}
	return false
}

// ParseConfidence normalizes case. Anything unrecognized becomes N/A.
func ParseConfidence(raw string) Confidence {
	v := strings.TrimSpace(raw)
	if strings.EqualFold(v, string(ConfidenceNA)) {
		return ConfidenceNA
	}
	c := Confidence(strings.ToLower(v))
	if !c.IsValid() {
		return ConfidenceNA
	}
	return c
}
