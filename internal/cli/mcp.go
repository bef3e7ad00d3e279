package cli

import (
	"context"
	"fmt"

	"github.com/akolanti/GoRAG/internal/bootstrap"
	"github.com/akolanti/GoRAG/internal/mcpserver"
	"github.com/akolanti/GoRAG/internal/rag/ingest"
	"github.com/spf13/cobra"
)

var mcpPort int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve ask, ingest_file, list_assets and reembed as MCP tools",
	Long: `Starts a Model Context Protocol server backed by the configured providers.

By default it speaks JSON-RPC over stdio. Use --port for the streamable HTTP transport.

  ragctl mcp
  ragctl mcp --port 8090`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 = stdio)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	a, err := ensureApp(cmd)
	if err != nil {
		return err
	}
	server, err := mcpserver.NewServer(mcpserver.Ports{
		RAG:      a.RAG,
		Registry: a.Registry,
		Reembed:  a.Ingest,
		Ingest: func(ctx context.Context, projectId, path string, chunkSize, overlapSize int) (ingest.IngestResult, error) {
			return a.IngestFile(ctx, projectId, path, bootstrap.IngestFileOptions{ChunkSize: chunkSize, OverlapSize: overlapSize})
		},
	})
	if err != nil {
		return err
	}
	if mcpPort > 0 {
		addr := fmt.Sprintf(":%d", mcpPort)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}
	return server.Run(cmd.Context())
}
