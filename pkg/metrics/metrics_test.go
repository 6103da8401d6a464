package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.RunFinished("xss", OutcomeCompleted, 2*time.Second)
	m.RunFinished("xss", OutcomeRejected, 0)
	m.PayloadExecuted("xss", true, 120)
	m.PayloadExecuted("xss", false, 0)
	m.Verdict("xss", "Reflected XSS", "high", "Heuristic")
	m.AIFallback("xss")

	out := scrape(t, m)
	assert.Contains(t, out, `greenapi_runs_total{outcome="completed",suite="xss"} 1`)
	assert.Contains(t, out, `greenapi_runs_total{outcome="rejected",suite="xss"} 1`)
	assert.Contains(t, out, `greenapi_payloads_total{result="ok",suite="xss"} 1`)
	assert.Contains(t, out, `greenapi_payloads_total{result="error",suite="xss"} 1`)
	assert.Contains(t, out, `greenapi_verdicts_total{mode="Heuristic",name="Reflected XSS",severity="high",suite="xss"} 1`)
	assert.Contains(t, out, `greenapi_ai_fallbacks_total{suite="xss"} 1`)
	assert.Contains(t, out, `greenapi_run_duration_seconds_count{suite="xss"} 1`)
	assert.Contains(t, out, `greenapi_response_time_seconds_count{suite="xss"} 1`)
}

func TestMetrics_VerdictNamesBounded(t *testing.T) {
	m := New()
	m.Verdict("xss", "Stored XSS via profile field", "high", "AI (Gemini)")
	m.Verdict("xss", "Stored XSS in comments", "high", "AI (Gemini)")
	m.Verdict("xss", "None Detected", "info", "AI (Gemini)")

	out := scrape(t, m)
	assert.Contains(t, out, `greenapi_verdicts_total{mode="AI (Gemini)",name="other",severity="high",suite="xss"} 2`)
	assert.Contains(t, out, `greenapi_verdicts_total{mode="AI (Gemini)",name="None Detected",severity="info",suite="xss"} 1`)
	assert.NotContains(t, out, "Stored XSS")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RunFinished("xss", OutcomeCompleted, time.Second)
	m.PayloadExecuted("xss", true, 1)
	m.Verdict("xss", "n", "info", "Heuristic")
	m.AIFallback("xss")
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.AIFallback("xss")
	assert.NotContains(t, scrape(t, b), "greenapi_ai_fallbacks_total{")
	assert.NotSame(t, a.Registry(), b.Registry())
}
