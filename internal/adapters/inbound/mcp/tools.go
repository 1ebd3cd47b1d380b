package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/openkraft/issuegate/internal/domain"
)

const defaultTrendLimit = 10

// registerTools registers all issuegate MCP tools on the given server.
func registerTools(s *server.MCPServer, opts Options) {
	// 1. issuegate_last_result
	s.AddTool(
		mcplib.NewTool("issuegate_last_result",
			mcplib.WithDescription("Returns the analysis result of the most recent finished build of a job as JSON"),
			mcplib.WithString("job",
				mcplib.Required(),
				mcplib.Description("Name of the CI job"),
			),
		),
		handleLastResult(opts),
	)

	// 2. issuegate_trend
	s.AddTool(
		mcplib.NewTool("issuegate_trend",
			mcplib.WithDescription("Returns issue counts and quality gate results of the latest builds of a job, newest first"),
			mcplib.WithString("job",
				mcplib.Required(),
				mcplib.Description("Name of the CI job"),
			),
			mcplib.WithNumber("limit", mcplib.Description("Maximum number of builds (default: 10, 0 for all)")),
		),
		handleTrend(opts),
	)

	// 3. issuegate_source
	s.AddTool(
		mcplib.NewTool("issuegate_source",
			mcplib.WithDescription("Returns the stored content of the file affected by an issue, as captured during the build"),
			mcplib.WithString("job", mcplib.Required(), mcplib.Description("Name of the CI job")),
			mcplib.WithNumber("build", mcplib.Required(), mcplib.Description("Build number")),
			mcplib.WithString("fingerprint", mcplib.Required(), mcplib.Description("Fingerprint of the issue")),
		),
		handleSource(opts),
	)
}

func handleLastResult(opts Options) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		job, err := request.RequireString("job")
		if err != nil {
			return errorResult(err.Error()), nil
		}

		action, err := domain.NewJobAction(job, opts.Trend).LastAction(ctx)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		if action == nil {
			return errorResult(fmt.Sprintf("no results for job %s", job)), nil
		}
		return jsonResult(action)
	}
}

func handleTrend(opts Options) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		job, err := request.RequireString("job")
		if err != nil {
			return errorResult(err.Error()), nil
		}
		limit := defaultTrendLimit
		if n, ok := intArg(request.GetArguments(), "limit"); ok {
			limit = n
		}

		actions, err := domain.NewJobAction(job, opts.Trend).Trend(ctx, limit)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		summaries := make([]domain.ActionSummary, 0, len(actions))
		for _, a := range actions {
			summaries = append(summaries, a.Summary())
		}
		return jsonResult(summaries)
	}
}

// sourceView is the issuegate_source payload.
type sourceView struct {
	FilePath string `json:"file_path"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
	Content  string `json:"content"`
}

func handleSource(opts Options) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		job, err := request.RequireString("job")
		if err != nil {
			return errorResult(err.Error()), nil
		}
		number, ok := intArg(request.GetArguments(), "build")
		if !ok || number <= 0 {
			return errorResult("build must be a positive number"), nil
		}
		fingerprint, err := request.RequireString("fingerprint")
		if err != nil {
			return errorResult(err.Error()), nil
		}

		build := domain.BuildRef{Job: job, Number: number}
		content, err := opts.Content.Get(ctx, domain.ContentKey{Build: build, Fingerprint: fingerprint})
		if errors.Is(err, domain.ErrContentNotFound) {
			return errorResult(fmt.Sprintf("no stored file for issue %s of %s", fingerprint, build)), nil
		}
		if err != nil {
			return errorResult(err.Error()), nil
		}

		view := sourceView{Content: string(content)}
		if action, err := opts.Trend.Action(ctx, build); err == nil && action != nil {
			for _, f := range action.Result.Issues {
				if f.Fingerprint == fingerprint {
					view.FilePath, view.Line, view.Message = f.FilePath, f.Line, f.Message
					break
				}
			}
		}
		return jsonResult(view)
	}
}

// intArg reads a numeric argument. JSON numbers arrive as float64.
func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// jsonResult marshals v to JSON and returns it as a text content result.
func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(string(data))},
	}, nil
}

// errorResult returns a tool result that indicates an error occurred.
func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(msg)},
		IsError: true,
	}
}
