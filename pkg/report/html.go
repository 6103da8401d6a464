package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"unicode/utf8"

	"github.com/Masterminds/sprig/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/waftester/greenapi/pkg/finding"
)

//go:embed templates/report.html.tmpl
var htmlTemplate string

// MaxBodyChars bounds each HTTP message printed in a document.
const MaxBodyChars = 20000

var htmlTmpl = template.Must(template.New("report").Funcs(funcMap()).Parse(htmlTemplate))

type htmlData struct {
	*Report
	MaxBody int
}

func funcMap() template.FuncMap {
	fm := sprig.FuncMap()
	fm["titleCase"] = titleCase
	fm["severityColor"] = severityColor
	fm["truncate"] = truncate
	return fm
}

// WriteHTML renders r as a standalone HTML page.
func WriteHTML(w io.Writer, r *Report) error {
	if err := htmlTmpl.Execute(w, htmlData{Report: r, MaxBody: MaxBodyChars}); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

// titleCase builds a Caser per call; Casers are not safe for concurrent use.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// severityColor is the badge color for a severity.
func severityColor(s finding.Severity) string {
	switch s {
	case finding.Critical, finding.High:
		return "#c62828"
	case finding.Medium:
		return "#f57f17"
	case finding.Low:
		return "#1e88e5"
	default:
		return "#43a047"
	}
}

// truncate cuts s to at most n runes and marks the cut.
func truncate(n int, s string) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "\n... (truncated)"
}
