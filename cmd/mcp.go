package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ldsgroups225/taskora/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Long: `Exposes projects, issues, and triage workflows as MCP tools over
stdin/stdout, for use by MCP-capable clients.`,
	RunE: mcpRun,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(cmd *cobra.Command, args []string) error {
	svc, err := getTriage()
	if err != nil {
		return err
	}

	var parser mcp.QueryParser
	if c := newLLMClient(); c != nil {
		parser = c
	}

	server := mcp.NewServer(dataStore, svc, parser)
	return server.ServeStdio(cmd.Context())
}
