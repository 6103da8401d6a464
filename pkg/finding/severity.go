package finding

import "strings"

// Severity represents the severity level of a verdict.
type Severity string

const (
	// Critical represents immediate system compromise.
	Critical Severity = "critical"

	// High represents significant impact requiring prompt fix.
	High Severity = "high"

	// Medium represents moderate impact.
	Medium Severity = "medium"

	// Low represents limited impact.
	Low Severity = "low"

	// Info represents no direct security impact.
	Info Severity = "info"
)

// Ordered returns all severities from most to least severe.
func Ordered() []Severity {
	return []Severity{Critical, High, Medium, Low, Info}
}

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case Critical, High, Medium, Low, Info:
		return true
	}
	return false
}

// Score returns a numeric score for sorting and comparison.
// Critical=5, High=4, Medium=3, Low=2, Info=1, Unknown=0.
func (s Severity) Score() int {
	switch s {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

// ParseSeverity normalizes case and surrounding space. It returns
// ErrInvalidSeverity for values outside the vocabulary.
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", ErrInvalidSeverity
	}
	return s, nil
}
