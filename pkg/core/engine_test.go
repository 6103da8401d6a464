package core

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/waftester/greenapi/pkg/curl"
	"github.com/waftester/greenapi/pkg/executor"
	"github.com/waftester/greenapi/pkg/finding"
	"github.com/waftester/greenapi/pkg/metrics"
	"github.com/waftester/greenapi/pkg/payloads"
	"github.com/waftester/greenapi/pkg/telemetry"
)

// fakeSender records requests and answers through fn.
type fakeSender struct {
	mu    sync.Mutex
	calls []*curl.Request
	fn    func(*curl.Request) (*executor.Response, error)
}

func (f *fakeSender) Execute(_ context.Context, req *curl.Request) (*executor.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.fn == nil {
		return okResponse("ok"), nil
	}
	return f.fn(req)
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func okResponse(body string) *executor.Response {
	return &executor.Response{
		Status:     200,
		StatusText: "OK",
		Size:       len(body),
		Headers:    map[string]string{"content-type": "text/plain"},
		Body:       body,
	}
}

func testCatalog(t *testing.T) *payloads.Catalog {
	t.Helper()
	c, err := payloads.Parse([]byte(`{"suites":[
		{"name":"custom","label":"Custom","payloads":["one","BOOM","three"]},
		{"name":"xss","label":"Cross-Site Scripting","payloads":["plain","<b>x</b>"]}
	]}`))
	require.NoError(t, err)
	return c
}

func newTestEngine(t *testing.T, s Sender, opts ...EngineOption) *Engine {
	t.Helper()
	opts = append([]EngineOption{WithCatalog(testCatalog(t))}, opts...)
	e, err := NewEngine(s, EngineConfig{}, opts...)
	require.NoError(t, err)
	return e
}

const template = "curl 'http://target.test/search?q=$PAYLOAD$'"

func TestNewEngine_RequiresSender(t *testing.T) {
	_, err := NewEngine(nil, EngineConfig{})
	assert.Error(t, err)
}

func TestRunSuite_InputErrorsBeforeNetwork(t *testing.T) {
	tests := []struct {
		name     string
		req      RunRequest
		sentinel error
	}{
		{"unknown suite", RunRequest{Template: template, Suite: "nope"}, ErrUnknownSuite},
		{"empty template", RunRequest{Template: "  ", Suite: "custom"}, ErrMissingMarker},
		{"no marker", RunRequest{Template: "curl http://target.test/", Suite: "custom"}, ErrMissingMarker},
		{"marker outside request", RunRequest{Template: "curl -X $PAYLOAD$ http://target.test/", Suite: "custom"}, ErrMissingMarker},
		{"no url", RunRequest{Template: "curl -H 'X-A: $PAYLOAD$'", Suite: "custom"}, curl.ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSender{}
			results, err := newTestEngine(t, s).RunSuite(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Nil(t, results)
			assert.Zero(t, s.count(), "no request may be sent")
		})
	}
	assert.ErrorIs(t, ErrUnknownSuite, ErrInput)
	assert.ErrorIs(t, ErrMissingMarker, ErrInput)
}

func TestRunSuite_BaselineFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	exec, err := executor.New(executor.DefaultConfig())
	require.NoError(t, err)
	e, err := NewEngine(exec, EngineConfig{}, WithCatalog(testCatalog(t)))
	require.NoError(t, err)

	results, err := e.RunSuite(context.Background(), RunRequest{
		Template: "curl http://" + addr + "/?q=$PAYLOAD$",
		Suite:    "custom",
	})
	require.Error(t, err)
	assert.Empty(t, results)
	assert.ErrorIs(t, err, ErrBaseline)

	var be *BaselineError
	require.ErrorAs(t, err, &be)
	re, ok := executor.AsRequestError(err)
	require.True(t, ok)
	assert.Equal(t, executor.CodeConnRefused, re.Code)
}

func TestRunSuite_BaselineStripsMarker(t *testing.T) {
	s := &fakeSender{}
	_, err := newTestEngine(t, s).RunSuite(context.Background(), RunRequest{Template: template, Suite: "custom"})
	require.NoError(t, err)

	require.Equal(t, 4, s.count())
	assert.Equal(t, "http://target.test/search?q=", s.calls[0].URL)
	assert.Equal(t, "http://target.test/search?q=one", s.calls[1].URL)
	assert.Equal(t, "http://target.test/search?q=BOOM", s.calls[2].URL)
	assert.Equal(t, "http://target.test/search?q=three", s.calls[3].URL)
}

func TestRunSuite_PayloadFailureDoesNotAbort(t *testing.T) {
	s := &fakeSender{fn: func(r *curl.Request) (*executor.Response, error) {
		if strings.Contains(r.URL, "BOOM") {
			return nil, &executor.RequestError{
				Method: r.Method, URL: r.URL,
				Reason: "read: connection reset by peer",
				Code:   executor.CodeConnReset,
			}
		}
		return okResponse("fine"), nil
	}}

	results, err := newTestEngine(t, s).RunSuite(context.Background(), RunRequest{Template: template, Suite: "custom"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"one", "BOOM", "three"}, []string{results[0].Payload, results[1].Payload, results[2].Payload})

	failed := results[1]
	assert.True(t, failed.Failed())
	assert.Equal(t, finding.ModeError, failed.AnalysisMode)
	assert.Equal(t, finding.NameExecutionError, failed.Vulnerability.Name)
	assert.Equal(t, finding.High, failed.Vulnerability.Severity)
	assert.True(t, failed.Response.Status.IsError())
	assert.Zero(t, failed.Response.Size)
	assert.Contains(t, failed.Response.StatusText, "(Cause: ECONNRESET)")
	require.NotNil(t, failed.Request)
	assert.Equal(t, "http://target.test/search?q=BOOM", failed.Request.URL)

	for _, i := range []int{0, 2} {
		assert.False(t, results[i].Failed())
		assert.Equal(t, finding.ModeHeuristic, results[i].AnalysisMode)
		assert.Equal(t, finding.NameNoneDetected, results[i].Vulnerability.Name)
	}

	sum := Summarize(results)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Errors)
	assert.Equal(t, 1, sum.Detected, "execution errors carry a detected name")
}

func TestRunSuite_PayloadBreaksParse(t *testing.T) {
	// Spaces in an unquoted template split the payload into arguments,
	// leaving -d without a value.
	s := &fakeSender{}
	c, err := payloads.Parse([]byte(`{"suites":[{"name":"bodies","payloads":["ok","x -d","done"]}]}`))
	require.NoError(t, err)
	e, err := NewEngine(s, EngineConfig{}, WithCatalog(c))
	require.NoError(t, err)

	results, err := e.RunSuite(context.Background(), RunRequest{
		Template: "curl http://base.test/?q=$PAYLOAD$",
		Suite:    "bodies",
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.False(t, results[0].Failed())
	assert.True(t, results[1].Failed())
	assert.Nil(t, results[1].Request)
	assert.Contains(t, results[1].Vulnerability.Explanation, "requires a value")
	assert.False(t, results[2].Failed())
	assert.Equal(t, 3, s.count(), "baseline plus two payloads reach the sender")
}

func TestRunSuite_HeuristicScenarios(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		switch {
		case strings.Contains(q, "'"):
			_, _ = w.Write([]byte("You have an error in your SQL syntax; check the manual that corresponds to your MySQL server version"))
		case strings.Contains(q, "crash"):
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<p>results for " + q + "</p>"))
		}
	}))
	defer srv.Close()

	c, err := payloads.Parse([]byte(`{"suites":[
		{"name":"sqlInjection","payloads":["'","crash","safe"]},
		{"name":"xss","payloads":["<i>x</i>","plain"]}
	]}`))
	require.NoError(t, err)
	exec, err := executor.New(executor.DefaultConfig())
	require.NoError(t, err)
	e, err := NewEngine(exec, EngineConfig{}, WithCatalog(c))
	require.NoError(t, err)

	tmpl := "curl '" + srv.URL + "/search?q=$PAYLOAD$'"
	results, err := e.RunSuite(context.Background(), RunRequest{Template: tmpl, Suite: "sqlInjection"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, finding.NameSQLiErrorBased, results[0].Vulnerability.Name)
	assert.Equal(t, finding.NameUnhandledException, results[1].Vulnerability.Name)
	assert.Equal(t, executor.Status(503), results[1].Response.Status)
	assert.Equal(t, finding.NameNoneDetected, results[2].Vulnerability.Name)

	results, err = e.RunSuite(context.Background(), RunRequest{Template: tmpl, Suite: "xss"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, finding.NameReflectedXSS, results[0].Vulnerability.Name)
	assert.Equal(t, finding.NameNoneDetected, results[1].Vulnerability.Name)
	for _, r := range results {
		assert.Equal(t, finding.ModeHeuristic, r.AnalysisMode)
	}
}

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (f *fakeGenerator) Name() string { return "Gemini" }

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func TestRunSuite_AIClassification(t *testing.T) {
	s := &fakeSender{fn: func(r *curl.Request) (*executor.Response, error) {
		if strings.Contains(r.URL, "%3Cb%3E") || strings.Contains(r.URL, "<b>") {
			return okResponse("a very different page that reflects <b>x</b> back to the caller"), nil
		}
		return okResponse("page"), nil
	}}
	gen := &fakeGenerator{reply: "```json\n" + `{"name":"Reflected XSS","severity":"high","confidence":"High","explanation":"reflected","remediation":"encode"}` + "\n```"}

	e := newTestEngine(t, s, WithGenerator(gen))
	assert.True(t, e.AIEnabled())

	results, err := e.RunSuite(context.Background(), RunRequest{Template: template, Suite: "xss", UseAI: true})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// "plain" produced the baseline body, so the service is not consulted.
	assert.Equal(t, finding.NameNoneDetected, results[0].Vulnerability.Name)
	assert.Equal(t, "AI (Gemini)", results[0].AnalysisMode)

	assert.Equal(t, "Reflected XSS", results[1].Vulnerability.Name)
	assert.Equal(t, "AI (Gemini)", results[1].AnalysisMode)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "<b>x</b>")
}

func TestRunSuite_AIFailureFallsBack(t *testing.T) {
	s := &fakeSender{fn: func(r *curl.Request) (*executor.Response, error) {
		if strings.Contains(r.URL, "three") {
			return okResponse("a much longer body that certainly differs from the baseline"), nil
		}
		return okResponse("ok"), nil
	}}
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	m := metrics.New()

	results, err := newTestEngine(t, s, WithGenerator(gen), WithMetrics(m)).
		RunSuite(context.Background(), RunRequest{Template: template, Suite: "custom", UseAI: true})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, finding.ModeHeuristic, results[2].AnalysisMode)
	assert.Equal(t, finding.NameNoneDetected, results[2].Vulnerability.Name)
}

func TestRunSuite_UseAIWithoutService(t *testing.T) {
	e := newTestEngine(t, &fakeSender{})
	assert.False(t, e.AIEnabled())

	results, err := e.RunSuite(context.Background(), RunRequest{Template: template, Suite: "custom", UseAI: true})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, finding.ModeHeuristic, r.AnalysisMode)
	}
}

type recordingObserver struct {
	states  []State
	indexes []int
	total   int
	runIDs  map[string]bool
}

func (o *recordingObserver) OnState(id string, s State) {
	o.runIDs[id] = true
	o.states = append(o.states, s)
}

func (o *recordingObserver) OnResult(id string, index, total int, _ *TestResult) {
	o.runIDs[id] = true
	o.indexes = append(o.indexes, index)
	o.total = total
}

func TestRunSuite_Observer(t *testing.T) {
	obs := &recordingObserver{runIDs: map[string]bool{}}
	_, err := newTestEngine(t, &fakeSender{}, WithObserver(obs)).
		RunSuite(context.Background(), RunRequest{Template: template, Suite: "custom"})
	require.NoError(t, err)

	assert.Equal(t, []State{StateBaselineExecuting, StatePayloadLoop, StateDone}, obs.states)
	assert.Equal(t, []int{0, 1, 2}, obs.indexes)
	assert.Equal(t, 3, obs.total)
	assert.Len(t, obs.runIDs, 1)

	obs = &recordingObserver{runIDs: map[string]bool{}}
	failing := &fakeSender{fn: func(*curl.Request) (*executor.Response, error) {
		return nil, errors.New("down")
	}}
	_, err = newTestEngine(t, failing, WithObserver(obs)).
		RunSuite(context.Background(), RunRequest{Template: template, Suite: "custom"})
	require.Error(t, err)
	assert.Equal(t, []State{StateBaselineExecuting, StateBaselineFailed}, obs.states)
	assert.Empty(t, obs.indexes)
}

func TestRunSuite_Tracing(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	_, err := newTestEngine(t, &fakeSender{}, WithTelemetry(telemetry.FromTracerProvider(tp))).
		RunSuite(context.Background(), RunRequest{Template: template, Suite: "custom"})
	require.NoError(t, err)

	names := map[string]int{}
	for _, s := range rec.Ended() {
		names[s.Name()]++
	}
	assert.Equal(t, 1, names["greenapi.run"])
	assert.Equal(t, 1, names["greenapi.baseline"])
	assert.Equal(t, 3, names["greenapi.payload"])
}

func TestRunSuite_RateLimit(t *testing.T) {
	e, err := NewEngine(&fakeSender{}, EngineConfig{RateLimit: 20}, WithCatalog(testCatalog(t)))
	require.NoError(t, err)

	start := time.Now()
	_, err = e.RunSuite(context.Background(), RunRequest{Template: template, Suite: "custom"})
	require.NoError(t, err)
	// Four requests at 20/s with a burst of one need at least 150ms.
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}

func TestRunSuite_CanceledContextRecordsErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	s := &fakeSender{fn: func(*curl.Request) (*executor.Response, error) {
		calls++
		if calls == 1 {
			cancel()
			return okResponse("ok"), nil
		}
		return nil, context.Canceled
	}}

	results, err := newTestEngine(t, s).RunSuite(ctx, RunRequest{Template: template, Suite: "custom"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.Failed())
	}
}

func TestExecuteOne(t *testing.T) {
	s := &fakeSender{}
	e := newTestEngine(t, s)

	_, err := e.ExecuteOne(context.Background(), nil)
	assert.ErrorIs(t, err, ErrMissingURL)
	_, err = e.ExecuteOne(context.Background(), &curl.Request{Method: "GET"})
	assert.ErrorIs(t, err, ErrMissingURL)
	assert.Zero(t, s.count())

	in := &curl.Request{Method: "post", URL: "http://target.test/"}
	ex, err := e.ExecuteOne(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "POST", ex.Request.Method)
	assert.NotNil(t, ex.Request.Headers)
	assert.Equal(t, "post", in.Method, "caller's request is not modified")
	assert.Equal(t, "ok", ex.Response.Body)

	s.fn = func(*curl.Request) (*executor.Response, error) {
		return nil, &executor.RequestError{Reason: "no such host", Code: executor.CodeNotFound}
	}
	_, err = e.ExecuteOne(context.Background(), &curl.Request{URL: "http://nowhere.invalid/"})
	re, ok := executor.AsRequestError(err)
	require.True(t, ok)
	assert.Equal(t, executor.CodeNotFound, re.Code)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "baseline_failed", StateBaselineFailed.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestRunSuite_PerRunObserver(t *testing.T) {
	engineObs := &recordingObserver{runIDs: map[string]bool{}}
	runObs := &recordingObserver{runIDs: map[string]bool{}}
	e := newTestEngine(t, &fakeSender{}, WithObserver(engineObs))

	_, err := e.RunSuite(context.Background(), RunRequest{Template: template, Suite: "custom", Observer: runObs})
	require.NoError(t, err)
	assert.Equal(t, engineObs.indexes, runObs.indexes)
	assert.Equal(t, engineObs.states, runObs.states)

	_, err = e.RunSuite(context.Background(), RunRequest{Template: template, Suite: "custom"})
	require.NoError(t, err)
	assert.Len(t, runObs.indexes, 3, "per-run observer only sees its own run")
	assert.Len(t, engineObs.indexes, 6)
}
