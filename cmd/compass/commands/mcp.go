// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Lets LLM agents ingest, classify and query contacts via stdio
package commands

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harper/contact-compass/internal/mcp"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs Compass as an MCP (Model Context Protocol) server, so LLM agents
like Claude can ingest contact exports, classify tags and query the
contact store via stdio.

Logs go to stderr; stdout carries the protocol.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  compass mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "compass": {
  #       "command": "compass",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	server := mcpserver.NewMCPServer(
		"Contact Compass",
		currentVersion(debug.ReadBuildInfo).Version,
	)
	mcp.RegisterTools(server, a.store, a.classifier, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("MCP server starting on stdio", zap.String("db", a.cfg.DBPath))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}
