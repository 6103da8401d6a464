package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/greenapi/pkg/config"
	"github.com/waftester/greenapi/pkg/core"
	"github.com/waftester/greenapi/pkg/curl"
	"github.com/waftester/greenapi/pkg/defaults"
	"github.com/waftester/greenapi/pkg/executor"
	"github.com/waftester/greenapi/pkg/finding"
	"github.com/waftester/greenapi/pkg/jsonutil"
	"github.com/waftester/greenapi/pkg/payloads"
)

const testCatalog = `{"suites":[{"name":"sqlInjection","label":"SQL Injection","payloads":["'","safe"]}]}`

type harness struct {
	runner *Runner
	stdout bytes.Buffer
	stderr bytes.Buffer
}

// newHarness returns a runner isolated from the process environment, using
// a two-payload catalog.
func newHarness(t *testing.T, env map[string]string) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o600))

	vars := map[string]string{
		"GREENAPI_CATALOG":   path,
		"GREENAPI_LOG_LEVEL": "error",
		"GREENAPI_METRICS":   "false",
	}
	for k, v := range env {
		vars[k] = v
	}
	lookup := func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}

	h := &harness{}
	h.runner = NewRunner(&h.stdout, &h.stderr, WithLookup(lookup), WithDotEnv())
	return h
}

func (h *harness) run(args ...string) int {
	return h.runner.Run(context.Background(), args)
}

func target(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("q"), "'") {
			_, _ = w.Write([]byte("You have an error in your SQL syntax; check the manual for your MySQL server"))
			return
		}
		w.Header().Set("X-Test", "yes")
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func closedURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr
}

func TestCommands(t *testing.T) {
	assert.Equal(t, []Command{CommandMCP, CommandRun, CommandSend, CommandServe, CommandSuites, CommandVersion}, Commands())
}

func TestRun_Dispatch(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, defaults.ExitUserError, h.run())
	assert.Contains(t, h.stderr.String(), "Usage: greenapi <command>")

	h = newHarness(t, nil)
	assert.Equal(t, defaults.ExitSuccess, h.run("help"))

	h = newHarness(t, nil)
	assert.Equal(t, defaults.ExitUserError, h.run("scan"))
	assert.Contains(t, h.stderr.String(), `unknown command "scan"`)
}

func TestVersion(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, defaults.ExitSuccess, h.run("version"))
	assert.Equal(t, "greenapi "+defaults.Version+"\n", h.stdout.String())

	h = newHarness(t, nil)
	require.Equal(t, defaults.ExitSuccess, h.run("--version"))
	assert.Contains(t, h.stdout.String(), defaults.Version)
}

func TestSubcommandHelp(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, defaults.ExitSuccess, h.run("run", "-h"))
	assert.Contains(t, h.stderr.String(), "-suite")
	assert.Contains(t, h.stderr.String(), "-timeout")
}

func TestSuites(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, defaults.ExitSuccess, h.run("suites", "-payloads", "-no-color"))
	out := h.stdout.String()
	assert.Contains(t, out, "sqlInjection")
	assert.Contains(t, out, "SQL Injection")
	assert.Contains(t, out, "2 payloads")
	assert.Contains(t, out, "    safe")
	assert.NotContains(t, out, "\x1b[")

	h = newHarness(t, nil)
	require.Equal(t, defaults.ExitSuccess, h.run("suites", "-json"))
	var infos []payloads.Info
	require.NoError(t, jsonutil.Unmarshal(h.stdout.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "sqlInjection", infos[0].Name)
	assert.Equal(t, 2, infos[0].Count)
}

func TestRunSuite_Findings(t *testing.T) {
	srv := target(t)
	h := newHarness(t, nil)

	code := h.run("run", "-suite", "sqlInjection", "-no-color", "curl", fmt.Sprintf("'%s/search?q=$PAYLOAD$'", srv.URL))
	require.Equal(t, defaults.ExitFindings, code, h.stderr.String())

	out := h.stdout.String()
	assert.Contains(t, out, finding.NameSQLiErrorBased)
	assert.Contains(t, out, finding.NameNoneDetected)
	assert.Contains(t, out, "Detected:  1")
	assert.Contains(t, h.stderr.String(), "[2/2]")
}

func TestRunSuite_CleanTargetExitsZero(t *testing.T) {
	srv := target(t)
	h := newHarness(t, nil)

	template := fmt.Sprintf("curl -H 'X-Check: $PAYLOAD$' '%s/'", srv.URL)
	code := h.run("run", "-suite", "sqlInjection", "-quiet", "-template", template)
	assert.Equal(t, defaults.ExitSuccess, code, h.stderr.String())
	assert.NotContains(t, h.stderr.String(), "[1/2]")
}

func TestRunSuite_JSON(t *testing.T) {
	srv := target(t)
	h := newHarness(t, nil)

	code := h.run("run", "-suite", "sqlInjection", "-json", "-quiet", fmt.Sprintf("curl '%s/?q=$PAYLOAD$'", srv.URL))
	require.Equal(t, defaults.ExitFindings, code, h.stderr.String())

	var out struct {
		Suite   string       `json:"suite"`
		Summary core.Summary `json:"summary"`
	}
	require.NoError(t, jsonutil.Unmarshal(h.stdout.Bytes(), &out))
	assert.Equal(t, "sqlInjection", out.Suite)
	assert.Equal(t, 2, out.Summary.Total)
	assert.Equal(t, 1, out.Summary.Detected)
	assert.Equal(t, 1, out.Summary.ByName[finding.NameSQLiErrorBased])
}

func TestRunSuite_Report(t *testing.T) {
	srv := target(t)
	dir := t.TempDir()

	for _, name := range []string{"report.html", "report.pdf"} {
		h := newHarness(t, nil)
		path := filepath.Join(dir, name)
		code := h.run("run", "-suite", "sqlInjection", "-quiet", "-report", path, fmt.Sprintf("curl '%s/?q=$PAYLOAD$'", srv.URL))
		require.Equal(t, defaults.ExitFindings, code, h.stderr.String())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		if strings.HasSuffix(name, ".pdf") {
			assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "not a PDF")
		} else {
			assert.Contains(t, string(data), "<!DOCTYPE html>")
			assert.Contains(t, string(data), "GreenAPI Security Report: sqlInjection")
		}
	}
}

func TestRunSuite_Errors(t *testing.T) {
	srv := target(t)
	good := fmt.Sprintf("curl '%s/?q=$PAYLOAD$'", srv.URL)

	tests := []struct {
		name string
		args []string
		code int
		msg  string
	}{
		{"no template", []string{"run", "-suite", "sqlInjection"}, defaults.ExitUserError, "template is required"},
		{"unknown suite", []string{"run", "-suite", "nope", good}, defaults.ExitUserError, "valid suites: sqlInjection"},
		{"no marker", []string{"run", "-suite", "sqlInjection", "curl " + srv.URL}, defaults.ExitUserError, "$PAYLOAD$"},
		{"bad report", []string{"run", "-suite", "sqlInjection", "-report", "out.txt", good}, defaults.ExitUserError, ".html or .pdf"},
		{"bad flag", []string{"run", "-bogus"}, defaults.ExitUserError, "-bogus"},
		{"bad config", []string{"run", "-timeout", "soon", good}, defaults.ExitUserError, "-timeout"},
		{"baseline", []string{"run", "-suite", "sqlInjection", "-quiet", fmt.Sprintf("curl '%s/?q=$PAYLOAD$'", closedURL(t))}, defaults.ExitNetworkError, "baseline request failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			assert.Equal(t, tt.code, h.run(tt.args...))
			assert.Contains(t, h.stderr.String(), tt.msg)
			assert.Empty(t, h.stdout.String())
		})
	}
}

func TestSend(t *testing.T) {
	srv := target(t)

	h := newHarness(t, nil)
	require.Equal(t, defaults.ExitSuccess, h.run("send", "-no-color", "curl", srv.URL+"/ping"), h.stderr.String())
	out := h.stdout.String()
	assert.True(t, strings.HasPrefix(out, "GET "+srv.URL+"/ping"), out)
	assert.Contains(t, out, "x-test: yes")
	assert.True(t, strings.HasSuffix(out, "ok\n"), out)

	h = newHarness(t, nil)
	require.Equal(t, defaults.ExitSuccess, h.run("send", "-json", "-command", "curl -X POST -d 'a=1' "+srv.URL))
	var ex core.Exchange
	require.NoError(t, jsonutil.Unmarshal(h.stdout.Bytes(), &ex))
	assert.Equal(t, "POST", ex.Request.Method)
	assert.Equal(t, executor.Status(200), ex.Response.Status)
}

func TestSend_Errors(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, defaults.ExitUserError, h.run("send"))

	h = newHarness(t, nil)
	assert.Equal(t, defaults.ExitUserError, h.run("send", "curl -H"))

	h = newHarness(t, nil)
	assert.Equal(t, defaults.ExitNetworkError, h.run("send", "curl "+closedURL(t)))
	assert.Contains(t, h.stderr.String(), "Underlying cause: ECONNREFUSED")
}

func TestServe_StopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, defaults.ExitSuccess, h.runner.Run(ctx, []string{"serve", "-addr", "127.0.0.1:0"}), h.stderr.String())
}

func TestServe_BadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"suites":[]}`), 0o600))
	h := newHarness(t, map[string]string{"GREENAPI_CATALOG": path})
	assert.Equal(t, defaults.ExitUserError, h.run("serve"))
}

func TestMCP_HTTPStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, defaults.ExitSuccess, h.runner.Run(ctx, []string{"mcp", "-http", "127.0.0.1:0"}), h.stderr.String())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, defaults.ExitSuccess},
		{core.ErrUnknownSuite, defaults.ExitUserError},
		{fmt.Errorf("wrapped: %w", core.ErrMissingMarker), defaults.ExitUserError},
		{&curl.ParseError{Reason: "bad"}, defaults.ExitUserError},
		{config.ErrInvalidConfig, defaults.ExitUserError},
		{payloads.ErrInvalidCatalog, defaults.ExitUserError},
		{usageError("x"), defaults.ExitUserError},
		{&core.BaselineError{Err: errors.New("refused")}, defaults.ExitNetworkError},
		{&executor.RequestError{Reason: "refused"}, defaults.ExitNetworkError},
		{errors.New("boom"), defaults.ExitInternalError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}

func TestAnalysisMode(t *testing.T) {
	assert.Equal(t, finding.ModeHeuristic, analysisMode(nil))
	assert.Equal(t, "AI (Gemini)", analysisMode([]core.TestResult{
		{AnalysisMode: finding.ModeError},
		{AnalysisMode: "AI (Gemini)"},
	}))
}

func TestRateLabel(t *testing.T) {
	assert.Equal(t, "unlimited", rateLabel(0))
	assert.Equal(t, "2.5 req/s", rateLabel(2.5))
}
