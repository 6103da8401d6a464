package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/waftester/greenapi/pkg/core"
	"github.com/waftester/greenapi/pkg/curl"
	"github.com/waftester/greenapi/pkg/defaults"
	"github.com/waftester/greenapi/pkg/executor"
	"github.com/waftester/greenapi/pkg/jsonutil"
	"github.com/waftester/greenapi/pkg/report"
)

// Error messages returned to API clients.
const (
	msgBadJSON        = "Request body must be valid JSON."
	msgTooLarge       = "Request body is too large."
	msgNeedURL        = "Request object with a URL is required."
	msgExecuteFailed  = "Failed to execute request."
	msgUnknownSuite   = "A valid test suite must be selected."
	msgMissingMarker  = "The request template must contain the $PAYLOAD$ marker."
	msgParseFailed    = "Failed to parse cURL command."
	msgBaselineFailed = "Baseline request failed."
	msgNeedResults    = "A non-empty results array is required."
	msgExportFailed   = "Failed to generate the report."
)

// Export file names.
const (
	exportHTMLName = "GreenAPI-Test-Results.html"
	exportPDFName  = "GreenAPI-Test-Results.pdf"
)

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type executeRequest struct {
	Request *curl.Request `json:"request"`
}

type runRequest struct {
	CurlCommand string `json:"curlCommand"`
	TestSuite   string `json:"testSuite"`
	UseAI       bool   `json:"useAI"`
}

type exportRequest struct {
	Title   string            `json:"title"`
	Results []core.TestResult `json:"results"`
}

func (s *Server) handleExecuteCurl(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Request == nil || req.Request.URL == "" {
		writeError(w, http.StatusBadRequest, msgNeedURL, "")
		return
	}

	ex, err := s.engine.ExecuteOne(r.Context(), req.Request)
	switch {
	case errors.Is(err, core.ErrMissingURL):
		writeError(w, http.StatusBadRequest, msgNeedURL, "")
		return
	case err != nil:
		details := err.Error()
		if re, ok := executor.AsRequestError(err); ok {
			details = re.Details()
		}
		writeError(w, http.StatusBadRequest, msgExecuteFailed, details)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) handleRunTests(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !s.decode(w, r, &req) {
		return
	}

	results, err := s.engine.RunSuite(r.Context(), core.RunRequest{
		Template: req.CurlCommand,
		Suite:    req.TestSuite,
		UseAI:    req.UseAI,
	})
	if err != nil {
		status, body := runError(err)
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// runError maps a RunSuite failure to a status and body.
func runError(err error) (int, errorBody) {
	switch {
	case errors.Is(err, core.ErrUnknownSuite):
		return http.StatusBadRequest, errorBody{Error: msgUnknownSuite}
	case errors.Is(err, core.ErrMissingMarker):
		return http.StatusBadRequest, errorBody{Error: msgMissingMarker}
	case errors.Is(err, curl.ErrParse):
		return http.StatusBadRequest, errorBody{Error: msgParseFailed, Details: err.Error()}
	case errors.Is(err, core.ErrBaseline):
		details := err.Error()
		if re, ok := executor.AsRequestError(err); ok {
			details = re.Details()
		}
		return http.StatusBadGateway, errorBody{Error: msgBaselineFailed, Details: details}
	case errors.Is(err, core.ErrInput):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Error: msgExecuteFailed, Details: err.Error()}
	}
}

func (s *Server) handleSuites(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Catalog().Suites())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": defaults.ToolName,
		"version": defaults.Version,
	})
}

func (s *Server) handleExportHTML(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, defaults.ContentTypeHTML, exportHTMLName, report.WriteHTML)
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, defaults.ContentTypePDF, exportPDFName, report.WritePDF)
}

type renderFunc func(w io.Writer, rep *report.Report) error

func (s *Server) export(w http.ResponseWriter, r *http.Request, contentType, filename string, render renderFunc) {
	var req exportRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Results) == 0 {
		writeError(w, http.StatusBadRequest, msgNeedResults, "")
		return
	}

	// Render into a buffer so a failure can still produce a clean 500.
	var buf bytes.Buffer
	if err := render(&buf, report.New(req.Results, report.WithTitle(req.Title))); err != nil {
		s.logger.Error("report export failed", slog.String("content_type", contentType), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, msgExportFailed, "")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// decode reads a JSON body into v, answering 400 or 413 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge, "")
			return false
		}
		writeError(w, http.StatusBadRequest, msgBadJSON, err.Error())
		return false
	}
	if err := jsonutil.Unmarshal(data, v); err != nil {
		writeError(w, http.StatusBadRequest, msgBadJSON, err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := jsonutil.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error":"Internal server error."}`)
	}
	w.Header().Set("Content-Type", defaults.ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorBody{Error: msg, Details: details})
}
