package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/waftester/greenapi/pkg/defaults"
	"github.com/waftester/greenapi/pkg/jsonutil"
)

const (
	versionURI = "greenapi://version"
	suitesURI  = "greenapi://suites"
)

func (s *Server) registerResources() {
	s.addVersionResource()
	s.addSuitesResource()
}

func (s *Server) addVersionResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         versionURI,
			Name:        "GreenAPI Version",
			Description: "Server version, classifier mode, and tool inventory.",
			MIMEType:    defaults.ContentTypeJSON,
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			info := map[string]any{
				"name":       defaults.ToolName,
				"version":    defaults.Version,
				"ai_enabled": s.engine.AIEnabled(),
				"tools":      []string{"list_suites", "execute_request", "run_suite"},
			}
			return jsonResource(versionURI, info)
		},
	)
}

// addSuitesResource exposes the full catalog including payload strings.
func (s *Server) addSuitesResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			URI:         suitesURI,
			Name:        "Payload Suites",
			Description: "Every payload suite with its payloads in execution order.",
			MIMEType:    defaults.ContentTypeJSON,
		},
		func(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			catalog := s.engine.Catalog()
			out := make(map[string][]string, len(catalog.Names()))
			for _, name := range catalog.Names() {
				list, _ := catalog.ListFor(name)
				out[name] = list
			}
			return jsonResource(suitesURI, out)
		},
	)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := jsonutil.MarshalIndent(v, "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: defaults.ContentTypeJSON, Text: string(data)},
		},
	}, nil
}
