// Package mcpserver exposes greenapi as a Model Context Protocol (MCP) server,
// so AI assistants can list payload suites, send single requests, and run
// injection suites against a request template.
//
// # Tools
//
//   - list_suites:     the payload catalog, no network traffic
//   - execute_request: send one request, given as a curl command or fields
//   - run_suite:       baseline plus one request per payload, classified
//
// Tool failures are returned as IsError results so the calling model can
// read the message and correct its input.
//
// # Transports
//
//   - stdio: RunStdio, for IDE integrations.
//   - HTTP:  HTTPHandler, streamable HTTP for remote deployments.
//
// # Usage
//
//	srv := mcpserver.New(engine)
//	err := srv.RunStdio(ctx)
package mcpserver
