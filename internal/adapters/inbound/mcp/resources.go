package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/openkraft/issuegate/internal/domain"
)

// registerResources registers all issuegate MCP resources on the given server.
func registerResources(s *server.MCPServer, opts Options) {
	s.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"issuegate://jobs/{job}/last",
			"Last Result",
			mcplib.WithTemplateDescription("Analysis result of the most recent finished build of a job"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		handleLastResultResource(opts),
	)
}

func handleLastResultResource(opts Options) server.ResourceTemplateHandlerFunc {
	return func(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		job := templateArg(request.Params.Arguments["job"])
		if job == "" {
			return nil, fmt.Errorf("job is required")
		}

		action, err := domain.NewJobAction(job, opts.Trend).LastAction(ctx)
		if err != nil {
			return nil, err
		}
		if action == nil {
			return nil, fmt.Errorf("no results for job %s", job)
		}

		data, err := json.MarshalIndent(action, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling result: %w", err)
		}

		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	}
}

// templateArg unwraps a URI template variable, which arrives either as a
// string or as a single-element list.
func templateArg(v any) string {
	switch arg := v.(type) {
	case string:
		return arg
	case []string:
		if len(arg) > 0 {
			return arg[0]
		}
	}
	return ""
}
