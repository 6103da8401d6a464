package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/waftester/greenapi/pkg/core"
	"github.com/waftester/greenapi/pkg/curl"
	"github.com/waftester/greenapi/pkg/executor"
	"github.com/waftester/greenapi/pkg/finding"
)

// registerTools adds all tools to the MCP server.
func (s *Server) registerTools() {
	s.addListSuitesTool()
	s.addExecuteRequestTool()
	s.addRunSuiteTool()
}

// ═══════════════════════════════════════════════════════════════════════════
// list_suites
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addListSuitesTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "list_suites",
			Title: "List Payload Suites",
			Description: `List the payload suites available to run_suite WITHOUT sending any traffic.

USE THIS TOOL WHEN:
• The user asks which attack types can be tested
• You need a suite name for run_suite

Returns: an array of {name, label, count}.`,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
				OpenWorldHint:  boolPtr(false),
				Title:          "List Payload Suites",
			},
		},
		s.handleListSuites,
	)
}

func (s *Server) handleListSuites(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.engine.Catalog().Suites())
}

// ═══════════════════════════════════════════════════════════════════════════
// execute_request
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addExecuteRequestTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "execute_request",
			Title: "Execute HTTP Request",
			Description: `Send ONE HTTP request and return the normalized response. No payloads are injected.

Provide either 'curl_command' or 'url' (with optional method, headers, body).

EXAMPLE INPUTS:
• {"curl_command": "curl -X POST https://api.example.com/login -H 'Content-Type: application/json' -d '{\"user\":\"a\"}'"}
• {"url": "https://api.example.com/health"}

Returns: {request, response} where response has status, statusText, duration (ms), size (bytes), headers, body.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"curl_command": map[string]any{
						"type":        "string",
						"description": "A curl command. Supports -X, -H, -d/--data/--data-raw.",
					},
					"url": map[string]any{
						"type":        "string",
						"description": "Target URL, used when curl_command is empty.",
					},
					"method": map[string]any{
						"type":        "string",
						"description": "HTTP method (default GET).",
					},
					"headers": map[string]any{
						"type":                 "object",
						"description":          "Request headers.",
						"additionalProperties": map[string]any{"type": "string"},
					},
					"body": map[string]any{
						"type":        "string",
						"description": "Request body.",
					},
				},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:  false,
				OpenWorldHint: boolPtr(true),
				Title:         "Execute HTTP Request",
			},
		},
		s.handleExecuteRequest,
	)
}

type executeArgs struct {
	CurlCommand string            `json:"curl_command"`
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers"`
	Body        string            `json:"body"`
}

func (s *Server) handleExecuteRequest(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args executeArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	var request *curl.Request
	if strings.TrimSpace(args.CurlCommand) != "" {
		parsed, _, err := curl.ParseCommand(args.CurlCommand, false)
		if err != nil {
			return errorResult(fmt.Sprintf("%v. The command needs an argument starting with http.", err)), nil
		}
		request = parsed
	} else {
		request = &curl.Request{Method: args.Method, URL: args.URL, Headers: args.Headers, Body: args.Body}
	}

	ex, err := s.engine.ExecuteOne(ctx, request)
	if err != nil {
		if errors.Is(err, core.ErrMissingURL) {
			return errorResult(`a URL is required. Example: {"url": "https://example.com/"}`), nil
		}
		if re, ok := executor.AsRequestError(err); ok {
			return errorResult(re.Details()), nil
		}
		return errorResult(err.Error()), nil
	}
	return jsonResult(ex)
}

// ═══════════════════════════════════════════════════════════════════════════
// run_suite
// ═══════════════════════════════════════════════════════════════════════════

func (s *Server) addRunSuiteTool() {
	s.mcp.AddTool(
		&mcp.Tool{
			Name:  "run_suite",
			Title: "Run Payload Suite",
			Description: `Run an injection suite: send the template once with the marker removed (baseline), then once per payload with $PAYLOAD$ replaced, and classify every response.

USE THIS TOOL WHEN:
• The user wants to test an endpoint for SQL injection, XSS, command injection or path traversal

DO NOT USE THIS TOOL WHEN:
• You only want to see one response (use 'execute_request')

The template MUST contain $PAYLOAD$ in the URL, a header value, or the body.

EXAMPLE INPUTS:
• {"curl_command": "curl 'https://api.example.com/items?id=$PAYLOAD$'", "suite": "sqlInjection"}
• {"curl_command": "curl -X POST https://api.example.com/search -d '{\"q\":\"$PAYLOAD$\"}'", "suite": "xss", "use_ai": true}

Returns: a summary plus one entry per payload in catalog order. Bodies are omitted unless include_bodies is true.`,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"curl_command": map[string]any{
						"type":        "string",
						"description": "curl command containing the $PAYLOAD$ marker.",
					},
					"suite": map[string]any{
						"type":        "string",
						"description": "Suite name from list_suites.",
					},
					"use_ai": map[string]any{
						"type":        "boolean",
						"description": "Classify with the configured AI service. Falls back to rules when unavailable.",
						"default":     false,
					},
					"include_bodies": map[string]any{
						"type":        "boolean",
						"description": "Include full requests and responses in the output.",
						"default":     false,
					},
				},
				"required": []string{"curl_command", "suite"},
			},
			Annotations: &mcp.ToolAnnotations{
				ReadOnlyHint:  false,
				OpenWorldHint: boolPtr(true),
				Title:         "Run Payload Suite",
			},
		},
		s.handleRunSuite,
	)
}

type runSuiteArgs struct {
	CurlCommand   string `json:"curl_command"`
	Suite         string `json:"suite"`
	UseAI         bool   `json:"use_ai"`
	IncludeBodies bool   `json:"include_bodies"`
}

type resultEntry struct {
	Payload       string                `json:"payload"`
	Status        string                `json:"status"`
	StatusText    string                `json:"statusText,omitempty"`
	DurationMs    int64                 `json:"duration"`
	Size          int                   `json:"size"`
	Vulnerability finding.Vulnerability `json:"vulnerability"`
	AnalysisMode  string                `json:"analysisMode"`
}

type runSuiteResult struct {
	Suite   string            `json:"suite"`
	Summary core.Summary      `json:"summary"`
	Results []resultEntry     `json:"results,omitempty"`
	Full    []core.TestResult `json:"full_results,omitempty"`
}

func (s *Server) handleRunSuite(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args runSuiteArgs
	if err := parseArgs(req, &args); err != nil {
		return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	results, err := s.engine.RunSuite(ctx, core.RunRequest{
		Template: args.CurlCommand,
		Suite:    args.Suite,
		UseAI:    args.UseAI,
		Observer: &progressObserver{ctx: ctx, req: req},
	})
	if err != nil {
		s.logger.Warn("run_suite failed", slog.String("suite", args.Suite), slog.String("error", err.Error()))
		return errorResult(runErrorMessage(s, err)), nil
	}

	out := runSuiteResult{Suite: args.Suite, Summary: core.Summarize(results)}
	if args.IncludeBodies {
		out.Full = results
	} else {
		out.Results = make([]resultEntry, 0, len(results))
		for _, r := range results {
			e := resultEntry{
				Payload:       r.Payload,
				Vulnerability: r.Vulnerability,
				AnalysisMode:  r.AnalysisMode,
			}
			if r.Response != nil {
				e.Status = r.Response.Status.String()
				e.DurationMs = r.Response.Duration
				e.Size = r.Response.Size
				if r.Response.Status.IsError() {
					e.StatusText = r.Response.StatusText
				}
			}
			out.Results = append(out.Results, e)
		}
	}
	return jsonResult(out)
}

func runErrorMessage(s *Server, err error) string {
	switch {
	case errors.Is(err, core.ErrUnknownSuite):
		return fmt.Sprintf("unknown suite. Valid suites: %s", strings.Join(s.engine.Catalog().Names(), ", "))
	case errors.Is(err, core.ErrMissingMarker):
		return "the curl command must contain the $PAYLOAD$ marker in the URL, a header value, or the body"
	case errors.Is(err, core.ErrBaseline):
		if re, ok := executor.AsRequestError(err); ok {
			return "baseline request failed: " + re.Details()
		}
	}
	return err.Error()
}

// progressObserver forwards payload progress to the client when it sent a
// progress token.
type progressObserver struct {
	ctx context.Context
	req *mcp.CallToolRequest
}

func (p *progressObserver) OnState(string, core.State) {}

func (p *progressObserver) OnResult(_ string, index, total int, r *core.TestResult) {
	token := p.req.Params.GetProgressToken()
	if token == nil || p.req.Session == nil {
		return
	}
	// Progress is advisory; a failed notification does not affect the run.
	_ = p.req.Session.NotifyProgress(p.ctx, &mcp.ProgressNotificationParams{
		ProgressToken: token,
		Progress:      float64(index + 1),
		Total:         float64(total),
		Message:       fmt.Sprintf("%s: %s", r.Payload, r.Vulnerability.Name),
	})
}
