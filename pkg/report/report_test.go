package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/greenapi/pkg/classify"
	"github.com/waftester/greenapi/pkg/core"
	"github.com/waftester/greenapi/pkg/curl"
	"github.com/waftester/greenapi/pkg/executor"
	"github.com/waftester/greenapi/pkg/finding"
)

func sampleResults() []core.TestResult {
	return []core.TestResult{
		{
			Payload: "<script>alert(1)</script>",
			Request: &curl.Request{
				Method:  "POST",
				URL:     "https://api.example.com/v1/search?q=x",
				Headers: map[string]string{"Content-Type": "application/json", "Host": "override.example.com"},
				Body:    `{"q":"<script>alert(1)</script>","n":1}`,
			},
			Response: &executor.Response{
				Status:     200,
				StatusText: "OK",
				Size:       38,
				Duration:   12,
				Headers:    map[string]string{"content-type": "text/html", "server": "nginx"},
				Body:       "<p>you searched <script>alert(1)</script></p>",
			},
			Vulnerability: finding.Vulnerability{
				Name:        finding.NameReflectedXSS,
				Severity:    finding.High,
				Confidence:  finding.ConfidenceHigh,
				Explanation: "Reflected verbatim.",
				Remediation: "Encode output.",
			},
			AnalysisMode: finding.ModeHeuristic,
		},
		{
			Payload: "plain",
			Request: &curl.Request{Method: "GET", URL: "https://api.example.com/v1/search?q=plain", Headers: map[string]string{}},
			Response: &executor.Response{
				Status: 200, StatusText: "OK", Size: 2, Headers: map[string]string{}, Body: "ok",
			},
			Vulnerability: finding.Vulnerability{Name: finding.NameNoneDetected, Severity: finding.Info, Confidence: finding.ConfidenceNA},
			AnalysisMode:  finding.ModeHeuristic,
		},
		{
			Payload:       "broken",
			Response:      executor.ErrorResponse(&executor.RequestError{Reason: "connection refused", Code: executor.CodeConnRefused}),
			Vulnerability: classify.ExecutionError("Failed to fetch."),
			AnalysisMode:  finding.ModeError,
		},
	}
}

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	r := New(sampleResults(), WithGeneratedAt(fixedTime), WithTitle("Nightly"))

	assert.Equal(t, "Nightly", r.Title)
	assert.Equal(t, finding.ModeHeuristic, r.AnalysisMode)
	assert.Equal(t, 3, r.Summary.Total)
	assert.Equal(t, 1, r.Summary.Errors)
	assert.Equal(t, 2, r.Summary.Detected)
	assert.True(t, r.Entries[2].Detected())
	assert.Equal(t, 2, r.DistinctResponses)
	assert.Equal(t, []SeverityCount{{Severity: finding.High, Count: 2}}, r.Severities)
	require.Len(t, r.Entries, 3)
	assert.Equal(t, 1, r.Entries[0].Index)
	assert.Equal(t, "Error", r.Entries[2].Status)
	assert.True(t, strings.HasPrefix(r.Entries[0].Replay, `curl -X 'POST' 'https://api.example.com/v1/search?q=x' -H 'Content-Type: application/json'`))
	assert.Empty(t, r.Entries[2].Replay)
}

func TestNew_Empty(t *testing.T) {
	r := New(nil)
	assert.Equal(t, "N/A", r.AnalysisMode)
	assert.Equal(t, DefaultTitle, r.Title)
	assert.Empty(t, r.Entries)
}

func TestRequestMessage(t *testing.T) {
	msg := RequestMessage(sampleResults()[0].Request)
	lines := strings.Split(msg, "\n")
	assert.Equal(t, "POST /v1/search?q=x HTTP/1.1", lines[0])
	assert.Equal(t, "Host: api.example.com", lines[1])
	assert.Equal(t, "Content-Type: application/json", lines[2])
	assert.NotContains(t, msg, "override.example.com")
	assert.Contains(t, msg, "\n\n{\n  \"q\": \"<script>alert(1)</script>\",\n  \"n\": 1\n}")

	assert.Equal(t, "N/A", RequestMessage(nil))
	assert.Equal(t, "GET / HTTP/1.1\nHost: example.com", RequestMessage(&curl.Request{Method: "GET", URL: "http://example.com"}))
}

func TestResponseMessage(t *testing.T) {
	msg := ResponseMessage(sampleResults()[0].Response)
	assert.True(t, strings.HasPrefix(msg, "HTTP/1.1 200 OK\ncontent-type: text/html\nserver: nginx\n\n"))

	errMsg := ResponseMessage(sampleResults()[2].Response)
	assert.Equal(t, "Error: Fetch Error: connection refused (Cause: ECONNREFUSED)", errMsg)
	assert.Equal(t, "N/A", ResponseMessage(nil))
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, New(sampleResults(), WithGeneratedAt(fixedTime))))
	html := buf.String()

	assert.Contains(t, html, "<h1>GreenAPI Test Results</h1>")
	assert.Contains(t, html, "Analysis Mode: Heuristic")
	assert.Contains(t, html, "2026-03-01 12:00:00 UTC")
	assert.Contains(t, html, "Reflected XSS (Confidence: high)")
	assert.Contains(t, html, "Execution Error (Confidence: N/A)")
	assert.Equal(t, 1, strings.Count(html, "None Detected"))
	assert.Contains(t, html, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "Remediation Advice")
	assert.Equal(t, 2, strings.Count(html, "<h5>Replay</h5>"))
	assert.Contains(t, html, "None Detected")
	assert.Contains(t, html, "#c62828")
	assert.Contains(t, html, ">High</span>")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héllo", truncate(5, "héllo"))
	assert.Equal(t, "hé\n... (truncated)", truncate(2, "héllo"))
	assert.Equal(t, "abc", truncate(0, "abc"))
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, New(sampleResults(), WithGeneratedAt(fixedTime))))

	raw := buf.Bytes()
	require.True(t, bytes.HasPrefix(raw, []byte("%PDF-")))
	require.NoError(t, pdfapi.Validate(bytes.NewReader(raw), nil))

	pages, err := pdfapi.PageCount(bytes.NewReader(raw), nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pages, 1)
}

func TestWritePDF_ManyEntriesAndOddText(t *testing.T) {
	var results []core.TestResult
	for i := 0; i < 40; i++ {
		r := sampleResults()[i%3]
		r.Payload = "tab\there ctrl\x01 ünïcödé ✓ " + strings.Repeat("x", 300)
		results = append(results, r)
	}
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, New(results)))
	require.NoError(t, pdfapi.Validate(bytes.NewReader(buf.Bytes()), nil))

	pages, err := pdfapi.PageCount(bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)
	assert.Greater(t, pages, 1)
}

func TestPrintable(t *testing.T) {
	assert.Equal(t, "a b\nc", printable("a\tb\n\x00c"))
}
