package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/waftester/greenapi/pkg/core"
	"github.com/waftester/greenapi/pkg/executor"
)

// Fixed column widths; the payload column takes what is left.
const (
	colIndex    = 4
	colStatus   = 7
	colTime     = 9
	colSize     = 9
	colVerdict  = 32
	colSeverity = 9
	minPayload  = 16
)

// PrintResults writes one row per result, in order, sized to width columns.
func PrintResults(w io.Writer, results []core.TestResult, width int) {
	payloadWidth := width - (colIndex + colStatus + colTime + colSize + colVerdict + colSeverity + 6)
	payloadWidth = max(payloadWidth, minPayload)

	cell := func(s string, n int) string {
		return s + strings.Repeat(" ", max(n-lipgloss.Width(s), 0))
	}

	header := strings.Join([]string{
		cell("#", colIndex),
		cell("PAYLOAD", payloadWidth),
		cell("STATUS", colStatus),
		cell("TIME", colTime),
		cell("SIZE", colSize),
		cell("VERDICT", colVerdict),
		cell("SEVERITY", colSeverity),
	}, " ")
	fmt.Fprintln(w, HeaderStyle.Render(header))

	for i, r := range results {
		status, took, size := "-", "-", "-"
		if r.Response != nil {
			status = StatusStyle(r.Response.Status).Render(r.Response.Status.String())
			if !r.Response.Status.IsError() {
				took = FormatLatency(r.Response.Duration)
				size = FormatSize(r.Response.Size)
			}
		}
		v := r.Vulnerability
		row := strings.Join([]string{
			cell(fmt.Sprintf("%d", i+1), colIndex),
			cell(Truncate(Printable(r.Payload), payloadWidth), payloadWidth),
			cell(status, colStatus),
			cell(took, colTime),
			cell(size, colSize),
			cell(VerdictStyle(v).Render(Truncate(v.Name, colVerdict)), colVerdict),
			cell(SeverityStyle(v.Severity).Render(string(v.Severity)), colSeverity),
		}, " ")
		fmt.Fprintln(w, row)
	}
}

// PrintFindings writes explanation and remediation for every detected
// vulnerability and execution error.
func PrintFindings(w io.Writer, results []core.TestResult) {
	printed := false
	for i, r := range results {
		v := r.Vulnerability
		if !v.Detected() {
			continue
		}
		if !printed {
			PrintSection(w, "Findings")
			printed = true
		}
		fmt.Fprintf(w, "%s %s %s\n",
			LabelStyle.Render(fmt.Sprintf("#%d", i+1)),
			VerdictStyle(v).Render(v.Name),
			SeverityStyle(v.Severity).Render("["+string(v.Severity)+"]"),
		)
		fmt.Fprintf(w, "    %s     %s\n", LabelStyle.Render("Payload:"), Printable(r.Payload))
		if v.Confidence != "" {
			fmt.Fprintf(w, "    %s  %s\n", LabelStyle.Render("Confidence:"), v.Confidence)
		}
		fmt.Fprintf(w, "    %s         %s\n", LabelStyle.Render("Why:"), v.Explanation)
		if v.Remediation != "" {
			fmt.Fprintf(w, "    %s         %s\n", LabelStyle.Render("Fix:"), v.Remediation)
		}
	}
}

// PrintSummary writes totals and the per-verdict breakdown.
func PrintSummary(w io.Writer, s core.Summary, mode string) {
	PrintSection(w, "Summary")
	fmt.Fprintf(w, "  %s  %s\n", LabelStyle.Render("Analysis:"), ValueStyle.Render(mode))
	fmt.Fprintf(w, "  %s  %d\n", LabelStyle.Render("Payloads:"), s.Total)

	detected := fmt.Sprintf("%d", s.Detected)
	if s.Detected > 0 {
		detected = DetectedStyle.Render(detected)
	} else {
		detected = CleanStyle.Render(detected)
	}
	fmt.Fprintf(w, "  %s  %s\n", LabelStyle.Render("Detected:"), detected)

	errs := fmt.Sprintf("%d", s.Errors)
	if s.Errors > 0 {
		errs = ErrorStyle.Render(errs)
	}
	fmt.Fprintf(w, "  %s    %s\n", LabelStyle.Render("Errors:"), errs)

	names := make([]string, 0, len(s.ByName))
	for name := range s.ByName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "    %-36s %d\n", name, s.ByName[name])
	}
	fmt.Fprintln(w)
}

// PrintExchange writes a single request and its response.
func PrintExchange(w io.Writer, ex *core.Exchange) {
	fmt.Fprintf(w, "%s %s\n", HeaderStyle.Render(ex.Request.Method), URLStyle.Render(ex.Request.URL))
	resp := ex.Response
	fmt.Fprintf(w, "%s %s  %s  %s\n\n",
		StatusStyle(resp.Status).Render(resp.Status.String()),
		resp.StatusText,
		LabelStyle.Render(FormatLatency(resp.Duration)),
		LabelStyle.Render(FormatSize(resp.Size)),
	)
	printHeaders(w, resp)
	fmt.Fprintln(w)
	fmt.Fprintln(w, resp.Body)
}

func printHeaders(w io.Writer, resp *executor.Response) {
	names := make([]string, 0, len(resp.Headers))
	for name := range resp.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s %s\n", LabelStyle.Render(name+":"), resp.Headers[name])
	}
}

// FormatLatency renders milliseconds compactly.
func FormatLatency(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.2fs", float64(ms)/1000)
}

// FormatSize renders a byte count compactly.
func FormatSize(n int) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1fMB", float64(n)/(1024*1024))
	}
}

// Truncate shortens s to at most n display columns, marking the cut with
// "...".
func Truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	if n <= 3 {
		return strings.Repeat(".", max(n, 0))
	}
	var b strings.Builder
	width := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if width+rw > n-3 {
			break
		}
		b.WriteRune(r)
		width += rw
	}
	return b.String() + "..."
}

// Printable escapes line breaks and drops other control characters so a
// payload fits on one line.
func Printable(s string) string {
	if !strings.ContainsFunc(s, unicode.IsControl) && utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteByte(' ')
		case r == utf8.RuneError, unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
