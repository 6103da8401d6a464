package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/waftester/greenapi/pkg/core"
	"github.com/waftester/greenapi/pkg/defaults"
	"github.com/waftester/greenapi/pkg/jsonutil"
)

// Server wraps the MCP server around an engine.
type Server struct {
	mcp    *mcp.Server
	engine *core.Engine
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an MCP server with all tools registered.
func New(engine *core.Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    defaults.ToolName,
			Title:   "GreenAPI Payload Injection Tester",
			Version: defaults.Version,
		},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying MCP server for direct access (e.g., testing).
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

// RunStdio serves over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("mcp stdio transport started")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns the streamable HTTP transport with a /health probe.
func (s *Server) HTTPHandler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return s.mcp },
		&mcp.StreamableHTTPOptions{Stateless: false},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", defaults.ContentTypeJSON)
		_, _ = w.Write([]byte(`{"status":"ok","service":"greenapi-mcp"}`))
	})
	mux.Handle("/mcp", streamable)
	mux.Handle("/", streamable)

	return s.recoveryMiddleware(securityHeaders(mux))
}

// recoveryMiddleware catches panics in HTTP handlers and returns a 500 error
// instead of killing the connection.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic in MCP HTTP handler",
					slog.String("panic", fmt.Sprint(err)),
					slog.String("stack", string(debug.Stack())),
				)
				w.Header().Set("Content-Type", defaults.ContentTypeJSON)
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// textResult creates a CallToolResult with a single text content block.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// jsonResult marshals v to indented JSON and wraps it in a CallToolResult.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := jsonutil.MarshalIndent(v, "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult creates an IsError CallToolResult so the model can see the
// error and self-correct rather than raising a protocol-level exception.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments from a tool call into dst.
func parseArgs(req *mcp.CallToolRequest, dst any) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := jsonutil.Unmarshal(req.Params.Arguments, dst); err != nil {
		return fmt.Errorf("parsing tool arguments: %w", err)
	}
	return nil
}

// boolPtr returns a pointer to b. Used for optional bool fields in the SDK.
func boolPtr(b bool) *bool { return &b }

const serverInstructions = `You are operating GreenAPI, a payload injection tester for HTTP APIs.

## SAFETY

Only send requests to targets the user is authorized to test. Every run_suite call sends one baseline request plus one request per payload in the chosen suite.

## TOOLS

| Intent | Tool |
|---|---|
| See available payload suites | list_suites |
| Send a single request and inspect the response | execute_request |
| Inject every payload of a suite and classify each response | run_suite |

## REQUEST TEMPLATES

Requests are written as curl commands. Supported flags: -X/--request, -H/--header, -d/--data/--data-raw. The first argument starting with "http" is the URL.
For run_suite, put the literal marker $PAYLOAD$ where payloads should be injected: in the URL, a header value, or the body.

Example: curl 'https://api.example.com/search?q=$PAYLOAD$' -H 'Authorization: Bearer TOKEN'

## READING RESULTS

Each result has a vulnerability verdict with name, severity and confidence. "None Detected" means no rule fired. "Execution Error" means that payload could not be delivered; the rest of the run is unaffected.`
