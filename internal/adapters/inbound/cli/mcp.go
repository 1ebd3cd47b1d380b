package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mcpadapter "github.com/openkraft/issuegate/internal/adapters/inbound/mcp"
)

func newMCPCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server commands",
		Long:  "Commands for running the issuegate MCP (Model Context Protocol) server.",
	}
	cmd.AddCommand(newMCPServeCmd(s))
	return cmd
}

func newMCPServeCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start issuegate MCP server (stdio)",
		Long:  "Start the issuegate MCP server using stdio transport. This allows AI coding assistants to query build results, trends, and captured source files.",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStores(s)
			if err != nil {
				return err
			}
			defer st.Close()

			srv := mcpadapter.NewIssueGateMCPServer(mcpadapter.Options{
				Trend:   st.trend,
				Content: st.content,
				Version: version,
			})
			return server.ServeStdio(srv)
		},
	}
}
