package report

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/waftester/greenapi/pkg/core"
	"github.com/waftester/greenapi/pkg/curl"
	"github.com/waftester/greenapi/pkg/defaults"
	"github.com/waftester/greenapi/pkg/evidence"
	"github.com/waftester/greenapi/pkg/executor"
	"github.com/waftester/greenapi/pkg/finding"
	"github.com/waftester/greenapi/pkg/jsonutil"
)

// DefaultTitle is used when no title is configured.
const DefaultTitle = "GreenAPI Test Results"

// Report is a result set prepared for rendering.
type Report struct {
	Title        string
	ToolName     string
	ToolVersion  string
	GeneratedAt  time.Time
	AnalysisMode string

	Summary           core.Summary
	Severities        []SeverityCount
	DistinctResponses int

	Entries []Entry
}

// SeverityCount is the number of detected findings at one severity.
type SeverityCount struct {
	Severity finding.Severity
	Count    int
}

// Entry is one payload as shown in a report.
type Entry struct {
	Index         int
	Payload       string
	Vulnerability finding.Vulnerability
	AnalysisMode  string
	Status        string
	Size          int
	DurationMs    int64
	Request       string
	Response      string
	// Replay is a curl command that resends the request, empty when the
	// payload never produced one.
	Replay string
}

// Detected reports whether the entry carries a finding.
func (e Entry) Detected() bool {
	return e.Vulnerability.Detected()
}

// Option configures a Report.
type Option func(*Report)

// WithTitle sets the document title.
func WithTitle(title string) Option {
	return func(r *Report) {
		if title != "" {
			r.Title = title
		}
	}
}

// WithGeneratedAt fixes the generation timestamp.
func WithGeneratedAt(t time.Time) Option {
	return func(r *Report) { r.GeneratedAt = t }
}

// New prepares results for rendering.
func New(results []core.TestResult, opts ...Option) *Report {
	r := &Report{
		Title:        DefaultTitle,
		ToolName:     defaults.ToolName,
		ToolVersion:  defaults.Version,
		GeneratedAt:  time.Now(),
		AnalysisMode: "N/A",
		Summary:      core.Summarize(results),
	}
	for _, opt := range opts {
		opt(r)
	}

	if len(results) > 0 {
		r.AnalysisMode = results[0].AnalysisMode
		if r.AnalysisMode == "" {
			r.AnalysisMode = finding.ModeHeuristic
		}
	}

	counts := make(map[finding.Severity]int)
	bodies := make(map[uint64]struct{})
	for i := range results {
		res := &results[i]
		if res.Vulnerability.Detected() {
			counts[res.Vulnerability.Severity]++
		}
		if res.Response != nil && !res.Response.Status.IsError() {
			bodies[evidence.Fingerprint(res.Response.Body)] = struct{}{}
		}
		r.Entries = append(r.Entries, newEntry(i+1, res))
	}
	r.DistinctResponses = len(bodies)
	for _, sev := range finding.Ordered() {
		if counts[sev] > 0 {
			r.Severities = append(r.Severities, SeverityCount{Severity: sev, Count: counts[sev]})
		}
	}
	return r
}

func newEntry(index int, res *core.TestResult) Entry {
	e := Entry{
		Index:         index,
		Payload:       res.Payload,
		Vulnerability: res.Vulnerability,
		AnalysisMode:  res.AnalysisMode,
		Request:       RequestMessage(res.Request),
		Response:      ResponseMessage(res.Response),
		Replay:        curl.Build(res.Request),
		Status:        "N/A",
	}
	if res.Response != nil {
		e.Status = res.Response.Status.String()
		e.Size = res.Response.Size
		e.DurationMs = res.Response.Duration
	}
	return e
}

// RequestMessage formats req as an HTTP/1.1 request message.
func RequestMessage(req *curl.Request) string {
	if req == nil || req.URL == "" {
		return "N/A"
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return "Error building request."
	}
	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}

	lines := []string{
		fmt.Sprintf("%s %s HTTP/1.1", req.Method, target),
		"Host: " + u.Host,
	}
	for _, name := range req.HeaderNames() {
		if strings.EqualFold(name, "host") {
			continue
		}
		lines = append(lines, name+": "+req.Headers[name])
	}
	return joinMessage(lines, req.Body)
}

// ResponseMessage formats resp as an HTTP/1.1 response message.
func ResponseMessage(resp *executor.Response) string {
	if resp == nil {
		return "N/A"
	}
	if resp.Status.IsError() {
		return "Error: " + resp.StatusText
	}

	lines := []string{fmt.Sprintf("HTTP/1.1 %d %s", int(resp.Status), resp.StatusText)}
	names := make([]string, 0, len(resp.Headers))
	for name := range resp.Headers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		lines = append(lines, name+": "+resp.Headers[name])
	}
	return joinMessage(lines, resp.Body)
}

// joinMessage appends body, pretty-printed when it is JSON.
func joinMessage(lines []string, body string) string {
	msg := strings.Join(lines, "\n")
	if pretty, err := jsonutil.Indent([]byte(body), "  "); err == nil {
		body = string(pretty)
	}
	if body != "" {
		msg += "\n\n" + body
	}
	return msg
}
