package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/openkraft/issuegate/internal/domain"
)

// Options gives the MCP server read access to analysis results.
type Options struct {
	Trend   domain.TrendStore
	Content domain.ContentStore
	Version string
}

// NewIssueGateMCPServer creates an MCP server with all issuegate tools and
// resources registered.
func NewIssueGateMCPServer(opts Options) *server.MCPServer {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := server.NewMCPServer(
		"issuegate",
		opts.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	registerTools(s, opts)
	registerResources(s, opts)

	return s
}
