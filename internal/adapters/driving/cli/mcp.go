package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexcheck/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can run
compliance analyses and read stored results.

By default, the server communicates over stdio using JSON-RPC.
Use --port to start an HTTP server instead.

Prompt templates in the data directory are reloaded while the server runs.

Examples:
  # Stdio mode (default, for desktop assistants)
  lexcheck mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  lexcheck mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "lexcheck": {
        "command": "/path/to/lexcheck",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	ports := &mcp.Ports{
		Analysis: analysisService,
		Chunking: chunkingService,
		Corpus:   corpusService,
	}
	if documentReader != nil {
		ports.Extractor = documentReader
	}

	server, err := mcp.NewServer(ports, mcp.WithVersion(version), mcp.WithLogger(cliLogger.With("mcp")))
	if err != nil {
		return err
	}

	if promptWatcher != nil {
		if err := promptWatcher.Start(cmd.Context()); err != nil {
			cliLogger.Warn("prompt hot reload disabled: %v", err)
		} else {
			defer promptWatcher.Close() //nolint:errcheck // shutdown
		}
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
