package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/waftester/greenapi/pkg/executor"
	"github.com/waftester/greenapi/pkg/finding"
)

// Color palette
var (
	Primary   = lipgloss.Color("#2E7D32") // Green - brand color
	Secondary = lipgloss.Color("#00D4AA") // Teal

	Critical = lipgloss.Color("#FF0000")
	High     = lipgloss.Color("#FF6B6B")
	Medium   = lipgloss.Color("#FFD93D")
	Low      = lipgloss.Color("#6BCB77")
	Info     = lipgloss.Color("#4D96FF")

	Success = lipgloss.Color("#00D26A")
	Warning = lipgloss.Color("#FFB800")
	Error   = lipgloss.Color("#FF3838")
	Muted   = lipgloss.Color("#6B7280")

	Status2xx = lipgloss.Color("#00D26A")
	Status3xx = lipgloss.Color("#4D96FF")
	Status4xx = lipgloss.Color("#FFD93D")
	Status5xx = lipgloss.Color("#FF3838")
)

// Pre-configured styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(Primary).
			Padding(0, 1)

	BannerStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true).
			MarginTop(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(Muted)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	HeaderStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	ProgressFullStyle = lipgloss.NewStyle().
				Foreground(Primary)

	ProgressEmptyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#3B3B4F"))

	DetectedStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	CleanStyle = lipgloss.NewStyle().
			Foreground(Success)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	DividerStyle = lipgloss.NewStyle().
			Foreground(Muted)

	URLStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Underline(true)
)

// SeverityStyle returns the badge style for a severity level.
func SeverityStyle(s finding.Severity) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch s {
	case finding.Critical:
		return base.Foreground(Critical)
	case finding.High:
		return base.Foreground(High)
	case finding.Medium:
		return base.Foreground(Medium)
	case finding.Low:
		return base.Foreground(Low)
	case finding.Info:
		return base.Foreground(Info)
	default:
		return base.Foreground(Muted)
	}
}

// StatusStyle returns the style for an HTTP status or the error sentinel.
func StatusStyle(s executor.Status) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch {
	case s.IsError():
		return base.Foreground(Warning)
	case s >= 200 && s < 300:
		return base.Foreground(Status2xx)
	case s >= 300 && s < 400:
		return base.Foreground(Status3xx)
	case s >= 400 && s < 500:
		return base.Foreground(Status4xx)
	case s >= 500:
		return base.Foreground(Status5xx)
	default:
		return base.Foreground(Muted)
	}
}

// VerdictStyle colors a vulnerability name by outcome.
func VerdictStyle(v finding.Vulnerability) lipgloss.Style {
	switch {
	case v.Name == finding.NameExecutionError:
		return ErrorStyle
	case v.Detected():
		return DetectedStyle
	default:
		return CleanStyle
	}
}
