package executor

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/greenapi/pkg/curl"
	"github.com/waftester/greenapi/pkg/httpclient"
	"github.com/waftester/greenapi/pkg/jsonutil"
)

func newTestExecutor(t *testing.T, mutate func(*Config)) *Executor {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func TestExecute_NormalizesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "tenant-a", r.Header.Get("X-Tenant"))
		w.Header().Add("Set-Cookie", "a=1")
		w.Header().Add("Set-Cookie", "b=2")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("héllo"))
	}))
	defer srv.Close()

	e := newTestExecutor(t, nil)
	resp, err := e.Execute(context.Background(), &curl.Request{
		Method:  "post",
		URL:     srv.URL + "/items",
		Headers: map[string]string{"content-type": "application/json", "X-Tenant": "tenant-a"},
		Body:    `{"a":1}`,
	})
	require.NoError(t, err)

	assert.Equal(t, Status(201), resp.Status)
	assert.Equal(t, "Created", resp.StatusText)
	assert.Equal(t, "héllo", resp.Body)
	assert.Equal(t, len("héllo"), resp.Size)
	assert.Equal(t, "a=1, b=2", resp.Header("SET-COOKIE"))
	assert.Equal(t, "a=1, b=2", resp.Headers["set-cookie"])
	assert.NotContains(t, resp.Headers, "Content-Type")
	assert.Equal(t, "text/plain", resp.ContentType())
	assert.GreaterOrEqual(t, resp.Duration, int64(0))
}

func TestExecute_DoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusMovedPermanently)
	}))
	defer srv.Close()

	resp, err := newTestExecutor(t, nil).Execute(context.Background(), &curl.Request{Method: "GET", URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, Status(301), resp.Status)
	assert.Equal(t, "/login", resp.Header("Location"))
}

func TestExecute_DurationCoversBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(60 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	resp, err := newTestExecutor(t, nil).Execute(context.Background(), &curl.Request{Method: "GET", URL: srv.URL})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, resp.Duration, int64(50))
	assert.Equal(t, "late", resp.Body)
}

func TestExecute_HostHeaderOverride(t *testing.T) {
	var gotHost string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
	}))
	defer srv.Close()

	_, err := newTestExecutor(t, nil).Execute(context.Background(), &curl.Request{
		Method: "GET", URL: srv.URL, Headers: map[string]string{"Host": "internal.example"},
	})
	require.NoError(t, err)
	assert.Equal(t, "internal.example", gotHost)
}

func TestExecute_EscapesUnsafeQuery(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(r.URL.Query().Get("q")))
	}))
	defer srv.Close()

	resp, err := newTestExecutor(t, nil).Execute(context.Background(), &curl.Request{
		Method: "GET", URL: srv.URL + "/?q=<script>alert('x')</script>",
	})
	require.NoError(t, err)
	assert.NotContains(t, rawQuery, "<")
	assert.Equal(t, "<script>alert('x')</script>", resp.Body)
}

func TestEscapeQuery(t *testing.T) {
	tests := map[string]string{
		"a=1&b=2":     "a=1&b=2",
		"q=a b":       "q=a%20b",
		"q=..%2f":     "q=..%2f",
		`q="x"`:       "q=%22x%22",
		"q=é":         "q=%C3%A9",
		"q=' OR 1=1-": "q=%27%20OR%201=1-",
	}
	for in, want := range tests {
		assert.Equal(t, want, escapeQuery(in), in)
	}
}

func TestExecute_ConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	_, err = newTestExecutor(t, nil).Execute(context.Background(), &curl.Request{Method: "GET", URL: "http://" + addr})
	require.Error(t, err)

	re, ok := AsRequestError(err)
	require.True(t, ok)
	assert.Equal(t, CodeConnRefused, re.Code)
	assert.Contains(t, re.Details(), "Failed to fetch. Reason: ")
	assert.Contains(t, re.Details(), "(Underlying cause: ECONNREFUSED)")
	assert.NotContains(t, re.Reason, `Get "`)
}

func TestExecute_DNSFailure(t *testing.T) {
	_, err := newTestExecutor(t, nil).Execute(context.Background(), &curl.Request{Method: "GET", URL: "http://greenapi-test.invalid/"})
	require.Error(t, err)
	assert.ErrorIs(t, err, httpclient.ErrDNS)

	re, _ := AsRequestError(err)
	assert.Equal(t, CodeNotFound, re.Code)
}

func TestExecute_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	e := newTestExecutor(t, func(c *Config) { c.HTTP.Timeout = 50 * time.Millisecond })
	_, err := e.Execute(context.Background(), &curl.Request{Method: "GET", URL: srv.URL})
	require.Error(t, err)
	re, _ := AsRequestError(err)
	assert.Equal(t, CodeTimeout, re.Code)
}

func TestExecute_TLSVerificationPerExecutor(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("secure"))
	}))
	defer srv.Close()

	insecure := newTestExecutor(t, nil)
	resp, err := insecure.Execute(context.Background(), &curl.Request{Method: "GET", URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "secure", resp.Body)

	strict := newTestExecutor(t, func(c *Config) { c.HTTP.InsecureSkipVerify = false })
	_, err = strict.Execute(context.Background(), &curl.Request{Method: "GET", URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, httpclient.ErrTLS)
	re, _ := AsRequestError(err)
	assert.Equal(t, CodeCertInvalid, re.Code)
}

func TestExecute_InvalidInput(t *testing.T) {
	e := newTestExecutor(t, nil)
	tests := []*curl.Request{
		nil,
		{Method: "GET", URL: "ftp://host"},
		{Method: "BAD METHOD", URL: "http://127.0.0.1"},
		{Method: "GET", URL: "http://"},
	}
	for _, req := range tests {
		_, err := e.Execute(context.Background(), req)
		re, ok := AsRequestError(err)
		require.True(t, ok, "%v", req)
		assert.Equal(t, CodeInvalid, re.Code)
	}
}

func TestStatusJSON(t *testing.T) {
	data, err := jsonutil.Marshal(&Response{Status: StatusError, Headers: map[string]string{}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{"status":"Error"`), string(data))

	data, err = jsonutil.Marshal(&Response{Status: 200})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{"status":200`), string(data))

	var r Response
	require.NoError(t, jsonutil.Unmarshal([]byte(`{"status":"Error"}`), &r))
	assert.True(t, r.Status.IsError())
	require.NoError(t, jsonutil.Unmarshal([]byte(`{"status":503}`), &r))
	assert.Equal(t, Status(503), r.Status)
}

func TestErrorResponse(t *testing.T) {
	re := &RequestError{Method: "GET", URL: "http://x", Reason: "connect: connection refused", Code: CodeConnRefused}
	resp := ErrorResponse(re)
	assert.True(t, resp.Status.IsError())
	assert.Equal(t, "Fetch Error: connect: connection refused (Cause: ECONNREFUSED)", resp.StatusText)
	assert.Equal(t, 0, resp.Size)

	plain := ErrorResponse(errors.New("boom"))
	assert.Equal(t, "Fetch Error: boom", plain.StatusText)

	noCode := &RequestError{Reason: "odd"}
	assert.Equal(t, "Fetch Error: odd (Cause: N/A)", noCode.StatusText())
}
